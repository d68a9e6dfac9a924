package dto

import (
	"time"

	"github.com/prperemyshlev/app-scaffold/internal/domain"
)

// UserResponse is the public view of a user
type UserResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	DisplayName   *string    `json:"display_name"`
	AvatarURL     *string    `json:"avatar_url"`
	OAuthProvider *string    `json:"oauth_provider"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastLoginAt   *time.Time `json:"last_login_at"`
}

// NewUserResponse builds the public view of u
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		AvatarURL:     u.AvatarURL,
		OAuthProvider: u.OAuthProvider,
		IsActive:      u.IsActive,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
		LastLoginAt:   u.LastLoginAt,
	}
}

// AuthResponse is returned after register, login and oauth callback.
// The token itself travels only in the access_token cookie.
type AuthResponse struct {
	User      UserResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// ItemListResponse is one page of items
type ItemListResponse struct {
	Items   []*domain.Item `json:"items"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	HasNext bool           `json:"has_next"`
	HasPrev bool           `json:"has_prev"`
}

// HealthResponse is the body of /healthz
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
