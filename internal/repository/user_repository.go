package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/app-scaffold/internal/domain"
	"github.com/prperemyshlev/app-scaffold/pkg/database"
)

const userColumns = `id, email, password_hash, oauth_provider, oauth_subject, display_name, avatar_url,
	is_active, created_at, updated_at, last_login_at`

// userRepository implements UserRepository interface
type userRepository struct {
	db *database.Postgres
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Postgres) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a user. Uniqueness of email and oauth identity is left to the
// database; violations come back as ErrDuplicateEmail or ErrDuplicateOAuthIdentity.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, oauth_provider, oauth_subject, display_name, avatar_url,
			is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.OAuthProvider,
		user.OAuthSubject,
		user.DisplayName,
		user.AvatarURL,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by normalized email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user with email %s not found: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// GetByOAuthIdentity retrieves the user linked to a provider subject
func (r *userRepository) GetByOAuthIdentity(ctx context.Context, provider, subject string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE oauth_provider = $1 AND oauth_subject = $2`

	user, err := scanUser(r.db.DB.QueryRowContext(ctx, query, provider, subject))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s identity not found: %w", provider, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by oauth identity: %w", err)
	}

	return user, nil
}

// Update writes the mutable profile and identity columns
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET password_hash = $1, oauth_provider = $2, oauth_subject = $3, display_name = $4,
			avatar_url = $5, is_active = $6, updated_at = $7
		WHERE id = $8
	`

	user.UpdatedAt = time.Now().UTC()

	result, err := r.db.DB.ExecContext(ctx, query,
		user.PasswordHash,
		user.OAuthProvider,
		user.OAuthSubject,
		user.DisplayName,
		user.AvatarURL,
		user.IsActive,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	return expectOneRow(result, "user", user.ID)
}

// UpdateLastLogin updates the last login timestamp
func (r *userRepository) UpdateLastLogin(ctx context.Context, userID string) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2`

	result, err := r.db.DB.ExecContext(ctx, query, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return expectOneRow(result, "user", userID)
}

// Deactivate disables the account with the given email. Rows are never deleted.
func (r *userRepository) Deactivate(ctx context.Context, email string) error {
	query := `UPDATE users SET is_active = FALSE, updated_at = $1 WHERE email = $2`

	result, err := r.db.DB.ExecContext(ctx, query, time.Now().UTC(), email)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	return expectOneRow(result, "user", email)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var (
		passwordHash, provider, subject, displayName, avatarURL sql.NullString
		lastLoginAt                                             sql.NullTime
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&passwordHash,
		&provider,
		&subject,
		&displayName,
		&avatarURL,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = nullableString(passwordHash)
	user.OAuthProvider = nullableString(provider)
	user.OAuthSubject = nullableString(subject)
	user.DisplayName = nullableString(displayName)
	user.AvatarURL = nullableString(avatarURL)
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}

	return user, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func expectOneRow(result sql.Result, entity, key string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %s not found: %w", entity, key, ErrNotFound)
	}
	return nil
}
