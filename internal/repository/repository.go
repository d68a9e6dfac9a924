package repository

import (
	"github.com/prperemyshlev/app-scaffold/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User UserRepository
	Item ItemRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User: NewUserRepository(db),
		Item: NewItemRepository(db),
	}
}
