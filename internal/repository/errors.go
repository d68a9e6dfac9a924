package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when trying to create a user with an existing email
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrDuplicateOAuthIdentity is returned when a provider identity is already linked to a user
	ErrDuplicateOAuthIdentity = errors.New("oauth identity already linked to a user")
)

const (
	uniqueViolation = "23505"

	constraintUsersEmail   = "users_email_key"
	constraintOAuthAccount = "unique_oauth_account"
)

// mapUniqueViolation turns a unique-constraint failure into the matching sentinel.
// Any other error is returned unchanged.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}

	switch pqErr.Constraint {
	case constraintUsersEmail:
		return fmt.Errorf("%s: %w", pqErr.Detail, ErrDuplicateEmail)
	case constraintOAuthAccount:
		return fmt.Errorf("%s: %w", pqErr.Detail, ErrDuplicateOAuthIdentity)
	default:
		return err
	}
}
