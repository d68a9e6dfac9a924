package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/prperemyshlev/app-scaffold/internal/repository"
	"github.com/prperemyshlev/app-scaffold/internal/repository/repotest"
	"github.com/prperemyshlev/app-scaffold/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedCreatesDemoUserAndItems(t *testing.T) {
	ctx := context.Background()
	items := repotest.NewItems()
	repos := &repository.Repositories{User: repotest.NewUsers(), Item: items}

	user, err := seed(ctx, repos, 4, " Demo@Example.com ", "demo-password")
	require.NoError(t, err)
	assert.Equal(t, "demo@example.com", user.Email)
	require.NotNil(t, user.PasswordHash)
	assert.True(t, utils.CheckPasswordHash("demo-password", *user.PasswordHash))

	_, total, err := items.ListByUser(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, len(demoItems), total)

	again, err := seed(ctx, repos, 4, "demo@example.com", "demo-password")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestSeedRejectsShortPassword(t *testing.T) {
	repos := &repository.Repositories{User: repotest.NewUsers(), Item: repotest.NewItems()}

	_, err := seed(context.Background(), repos, 4, "demo@example.com", "short")
	assert.Error(t, err)
}

func TestCommandsRequireDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	for _, args := range [][]string{
		{"migrate", "up"},
		{"migrate", "version"},
		{"user", "deactivate", "someone@example.com"},
	} {
		root := newRootCmd()
		root.SetArgs(args)
		root.SetOut(&bytes.Buffer{})

		err := root.Execute()
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	}
}

func TestResetRequiresForce(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"reset-db", "--database-url", "postgres://localhost/app"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}
