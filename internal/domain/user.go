package domain

import "time"

// OAuth providers a user identity may be linked to
const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// User represents a user in the system
type User struct {
	ID            string     `json:"id" db:"id"`
	Email         string     `json:"email" db:"email"`
	PasswordHash  *string    `json:"-" db:"password_hash"`
	OAuthProvider *string    `json:"oauth_provider" db:"oauth_provider"`
	OAuthSubject  *string    `json:"-" db:"oauth_subject"`
	DisplayName   *string    `json:"display_name" db:"display_name"`
	AvatarURL     *string    `json:"avatar_url" db:"avatar_url"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt   *time.Time `json:"last_login_at" db:"last_login_at"`
}

// HasPassword reports whether the account can sign in with a password
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// HasOAuthIdentity reports whether the account is linked to an external provider
func (u *User) HasOAuthIdentity() bool {
	return u.OAuthProvider != nil && u.OAuthSubject != nil
}
