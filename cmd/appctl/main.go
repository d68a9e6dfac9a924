package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var databaseURL string

	root := &cobra.Command{
		Use:           "appctl",
		Short:         "Operator tasks for the app-scaffold backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL URL (env DATABASE_URL)")

	dbURL := func() (string, error) {
		if databaseURL == "" {
			return "", fmt.Errorf("--database-url or DATABASE_URL is required")
		}
		return databaseURL, nil
	}

	root.AddCommand(
		newMigrateCmd(dbURL),
		newResetCmd(dbURL),
		newSeedCmd(),
		newValidateEnvCmd(),
		newUserCmd(dbURL),
	)
	return root
}
