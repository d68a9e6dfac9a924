package service

import (
	"fmt"

	"github.com/prperemyshlev/app-scaffold/internal/domain"
)

// AuthResult is a signed-in user together with the freshly issued access token
type AuthResult struct {
	User  *domain.User
	Token domain.IssuedToken
}

// AuthorizationRedirect is where to send the browser to start an oauth flow
type AuthorizationRedirect struct {
	URL string
	// FormPost is set when the provider returns with a cross-site POST
	FormPost bool
}

func (s *authService) issue(user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	return &AuthResult{User: user, Token: token}, nil
}
