package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prperemyshlev/app-scaffold/internal/config"
	"github.com/prperemyshlev/app-scaffold/internal/domain"
	"github.com/prperemyshlev/app-scaffold/internal/dto"
	"github.com/prperemyshlev/app-scaffold/internal/repository"
	"github.com/prperemyshlev/app-scaffold/internal/service"
	"github.com/prperemyshlev/app-scaffold/internal/utils"
	"github.com/prperemyshlev/app-scaffold/pkg/database"
	"github.com/spf13/cobra"
)

type urlFunc func() (string, error)

func newMigrateCmd(dbURL urlFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				url, err := dbURL()
				if err != nil {
					return err
				}
				if err := database.RunMigrations(url); err != nil {
					return err
				}
				cmd.Println("migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				url, err := dbURL()
				if err != nil {
					return err
				}
				if err := database.RollbackMigrations(url); err != nil {
					return err
				}
				cmd.Println("migrations rolled back")
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				url, err := dbURL()
				if err != nil {
					return err
				}
				version, dirty, err := database.MigrationVersion(url)
				if err != nil {
					return err
				}
				cmd.Printf("version=%d dirty=%t\n", version, dirty)
				return nil
			},
		},
	)
	return cmd
}

func newResetCmd(dbURL urlFunc) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset-db",
		Short: "Drop every table and re-apply the schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				return errors.New("reset-db deletes all data, pass --force to continue")
			}
			url, err := dbURL()
			if err != nil {
				return err
			}
			if err := database.RollbackMigrations(url); err != nil {
				return err
			}
			if err := database.RunMigrations(url); err != nil {
				return err
			}
			cmd.Println("database reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm that all data may be deleted")
	return cmd
}

// validate-env prints every configuration problem at once, the same check the server runs at startup
func newValidateEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-env",
		Short: "Check the environment configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("configuration is valid (env=%s, redis=%t, oauth google=%t apple=%t)\n",
				cfg.Env, cfg.Redis.Enabled, cfg.OAuth.Google.Enabled(), cfg.OAuth.Apple.Enabled())
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo user with a few items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}

			db, err := database.NewPostgres(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := seed(ctx, repository.NewRepositories(db), cfg.Security.BCryptCost, email, password)
			if err != nil {
				return err
			}
			cmd.Printf("seeded %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "demo@example.com", "demo account email")
	cmd.Flags().StringVar(&password, "password", "demo-password", "demo account password")
	return cmd
}

var demoItems = []dto.ItemRequest{
	{Name: "Notebook", Description: strPtr("Squared paper, A5"), Price: floatPtr(4.5)},
	{Name: "Fountain pen", Description: strPtr("Medium nib"), Price: floatPtr(32)},
	{Name: "Desk lamp"},
}

// seed is idempotent for the user: an existing account is reused and gets the demo items again
func seed(ctx context.Context, repos *repository.Repositories, bcryptCost int, email, password string) (*domain.User, error) {
	email = utils.SanitizeEmail(email)
	if problem := utils.ValidatePassword(password); problem != "" {
		return nil, errors.New(problem)
	}

	hash, err := utils.HashPassword(password, bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{Email: email, PasswordHash: &hash, IsActive: true}
	if err := repos.User.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, fmt.Errorf("failed to create demo user: %w", err)
		}
		if user, err = repos.User.GetByEmail(ctx, email); err != nil {
			return nil, fmt.Errorf("failed to load demo user: %w", err)
		}
	}

	items := service.NewItemService(repos.Item)
	for i := range demoItems {
		if _, err := items.Create(ctx, user.ID, &demoItems[i]); err != nil {
			return nil, fmt.Errorf("failed to create demo item: %w", err)
		}
	}

	return user, nil
}

func newUserCmd(dbURL urlFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "deactivate <email>",
		Short: "Block an account from signing in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			url, err := dbURL()
			if err != nil {
				return err
			}
			db, err := database.NewPostgres(ctx, url)
			if err != nil {
				return err
			}
			defer db.Close()

			email := utils.SanitizeEmail(args[0])
			if err := repository.NewUserRepository(db).Deactivate(ctx, email); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("no user with email %s", email)
				}
				return err
			}
			cmd.Printf("deactivated %s\n", email)
			return nil
		},
	})
	return cmd
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
