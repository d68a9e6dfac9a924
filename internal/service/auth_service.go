package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prperemyshlev/app-scaffold/internal/domain"
	"github.com/prperemyshlev/app-scaffold/internal/dto"
	"github.com/prperemyshlev/app-scaffold/internal/oauth"
	"github.com/prperemyshlev/app-scaffold/internal/repository"
	"github.com/prperemyshlev/app-scaffold/internal/utils"
	"github.com/prperemyshlev/app-scaffold/pkg/observability"
	"go.uber.org/zap"
)

const (
	displayNameMaxLength = 255
	avatarURLMaxLength   = 500
)

// authService implements AuthService interface
type authService struct {
	userRepo   repository.UserRepository
	tokens     *utils.TokenManager
	providers  *oauth.Registry
	denylist   Denylist
	guard      LoginGuard
	bcryptCost int
	logger     *zap.Logger
	metrics    *observability.AuthMetrics
}

// NewAuthService creates a new auth service. A nil denylist disables revocation,
// a nil guard disables lockout.
func NewAuthService(
	userRepo repository.UserRepository,
	tokens *utils.TokenManager,
	providers *oauth.Registry,
	denylist Denylist,
	guard LoginGuard,
	bcryptCost int,
	logger *zap.Logger,
	metrics *observability.AuthMetrics,
) AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &authService{
		userRepo:   userRepo,
		tokens:     tokens,
		providers:  providers,
		denylist:   denylist,
		guard:      guard,
		bcryptCost: bcryptCost,
		logger:     logger,
		metrics:    metrics,
	}
}

// Register creates a password account. Email uniqueness is decided by the store.
func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*AuthResult, error) {
	email := utils.SanitizeEmail(req.Email)

	v := validation{}
	if !utils.ValidateEmail(email) {
		v.add("email", "must be a valid email address")
	}
	if problem := utils.ValidatePassword(req.Password); problem != "" {
		v.add("password", problem)
	}
	displayName := cleanDisplayName(req.DisplayName, v)
	if err := v.err(); err != nil {
		s.metrics.Registration(ctx, "invalid")
		return nil, err
	}

	passwordHash, err := utils.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: &passwordHash,
		DisplayName:  displayName,
		IsActive:     true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.Registration(ctx, "conflict")
			return nil, fmt.Errorf("email already registered: %w", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.Registration(ctx, "created")
	s.logger.Info("user registered", zap.String("user_id", user.ID))

	return s.issue(user)
}

// Login checks a password. Every kind of failure looks the same to the caller.
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*AuthResult, error) {
	email := utils.SanitizeEmail(req.Email)

	if s.guard != nil {
		locked, err := s.guard.Locked(ctx, email)
		if err != nil {
			s.logger.Warn("login guard unavailable", zap.Error(err))
		} else if locked {
			s.metrics.Login(ctx, "locked")
			return nil, ErrLocked
		}
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	switch {
	case user == nil || !user.HasPassword():
		utils.BurnPasswordCheck(req.Password, s.bcryptCost)
		return nil, s.loginFailed(ctx, email)
	case !utils.CheckPasswordHash(req.Password, *user.PasswordHash):
		return nil, s.loginFailed(ctx, email)
	case !user.IsActive:
		return nil, s.loginFailed(ctx, email)
	}

	if s.guard != nil {
		if err := s.guard.Reset(ctx, email); err != nil {
			s.logger.Warn("failed to reset login failures", zap.Error(err))
		}
	}
	s.touchLogin(ctx, user)
	s.metrics.Login(ctx, "success")

	return s.issue(user)
}

func (s *authService) loginFailed(ctx context.Context, email string) error {
	s.metrics.Login(ctx, "failure")
	if s.guard != nil {
		if err := s.guard.RecordFailure(ctx, email); err != nil {
			s.logger.Warn("failed to record login failure", zap.Error(err))
		}
	}
	return fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
}

// AuthorizationURL returns where to send the browser for the given provider
func (s *authService) AuthorizationURL(provider, state string) (*AuthorizationRedirect, error) {
	p, ok := s.providers.Lookup(provider)
	if !ok {
		return nil, fmt.Errorf("%q: %w", provider, ErrUnknownProvider)
	}

	return &AuthorizationRedirect{
		URL:      p.AuthCodeURL(state),
		FormPost: p.FormPost(),
	}, nil
}

// OAuthCallback completes the code flow and signs the matching local account in,
// linking or provisioning it when needed.
func (s *authService) OAuthCallback(ctx context.Context, provider, code string) (*AuthResult, error) {
	p, ok := s.providers.Lookup(provider)
	if !ok {
		return nil, fmt.Errorf("%q: %w", provider, ErrUnknownProvider)
	}

	identity, err := p.Exchange(ctx, code)
	if err != nil {
		fault := FaultProvider
		if errors.Is(err, oauth.ErrInvalidGrant) {
			fault = FaultCaller
		}
		s.metrics.OAuthCallback(ctx, provider, "exchange_failed")
		return nil, &ExternalAuthError{Provider: provider, Fault: fault, Err: err}
	}

	user, err := s.resolveIdentity(ctx, identity)
	if err != nil {
		s.metrics.OAuthCallback(ctx, provider, "rejected")
		return nil, err
	}

	s.touchLogin(ctx, user)
	s.metrics.OAuthCallback(ctx, provider, "success")

	return s.issue(user)
}

func (s *authService) resolveIdentity(ctx context.Context, identity *oauth.Identity) (*domain.User, error) {
	user, err := s.userRepo.GetByOAuthIdentity(ctx, identity.Provider, identity.Subject)
	switch {
	case err == nil:
		if !user.IsActive {
			return nil, fmt.Errorf("account is inactive: %w", ErrUnauthorized)
		}
		if fillProfile(user, identity) {
			if err := s.userRepo.Update(ctx, user); err != nil {
				s.logger.Warn("failed to refresh oauth profile", zap.String("user_id", user.ID), zap.Error(err))
			}
		}
		return user, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to get user by identity: %w", err)
	}

	email := utils.SanitizeEmail(identity.Email)
	if !utils.ValidateEmail(email) {
		return nil, &ExternalAuthError{
			Provider: identity.Provider,
			Fault:    FaultProvider,
			Err:      errors.New("provider did not return a usable email"),
		}
	}

	if identity.EmailVerified {
		linked, err := s.linkByEmail(ctx, email, identity)
		if err == nil || !errors.Is(err, repository.ErrNotFound) {
			return linked, err
		}
	}

	return s.provision(ctx, email, identity)
}

// linkByEmail attaches the identity to an existing local account with the same verified email
func (s *authService) linkByEmail(ctx context.Context, email string, identity *oauth.Identity) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user.HasOAuthIdentity() {
		return nil, fmt.Errorf("email is linked to another %s account: %w", *user.OAuthProvider, ErrConflict)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("account is inactive: %w", ErrUnauthorized)
	}

	user.OAuthProvider = &identity.Provider
	user.OAuthSubject = &identity.Subject
	fillProfile(user, identity)

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateOAuthIdentity) {
			return s.reread(ctx, identity)
		}
		return nil, fmt.Errorf("failed to link oauth identity: %w", err)
	}

	s.logger.Info("linked oauth identity",
		zap.String("user_id", user.ID),
		zap.String("provider", identity.Provider),
	)
	return user, nil
}

func (s *authService) provision(ctx context.Context, email string, identity *oauth.Identity) (*domain.User, error) {
	user := &domain.User{
		Email:         email,
		OAuthProvider: &identity.Provider,
		OAuthSubject:  &identity.Subject,
		IsActive:      true,
	}
	fillProfile(user, identity)

	err := s.userRepo.Create(ctx, user)
	switch {
	case err == nil:
		s.metrics.Registration(ctx, "created_oauth")
		s.logger.Info("user provisioned from oauth",
			zap.String("user_id", user.ID),
			zap.String("provider", identity.Provider),
		)
		return user, nil
	case errors.Is(err, repository.ErrDuplicateOAuthIdentity), errors.Is(err, repository.ErrDuplicateEmail):
		// a concurrent callback for the same identity may have won the insert,
		// which can surface as either constraint
		if existing, rerr := s.reread(ctx, identity); rerr == nil {
			return existing, nil
		}
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, fmt.Errorf("email already registered: %w", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create oauth user: %w", err)
	default:
		return nil, fmt.Errorf("failed to create oauth user: %w", err)
	}
}

func (s *authService) reread(ctx context.Context, identity *oauth.Identity) (*domain.User, error) {
	user, err := s.userRepo.GetByOAuthIdentity(ctx, identity.Provider, identity.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read user by identity: %w", err)
	}
	return user, nil
}

// fillProfile copies provider profile data into empty fields and reports whether anything changed
func fillProfile(user *domain.User, identity *oauth.Identity) bool {
	changed := false
	if user.DisplayName == nil {
		if name := providerDisplayName(identity.Name); name != "" {
			user.DisplayName = &name
			changed = true
		}
	}
	if user.AvatarURL == nil && identity.AvatarURL != "" && utf8.RuneCountInString(identity.AvatarURL) <= avatarURLMaxLength {
		avatar := identity.AvatarURL
		user.AvatarURL = &avatar
		changed = true
	}
	return changed
}

// providerDisplayName sanitizes a provider-supplied name and cuts it to the
// column limit instead of failing the sign-in.
func providerDisplayName(raw string) string {
	name := utils.SanitizeText(raw)
	if utf8.RuneCountInString(name) <= displayNameMaxLength {
		return name
	}
	return strings.TrimSpace(string([]rune(name)[:displayNameMaxLength]))
}

// CurrentUser resolves the account behind a token
func (s *authService) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, claims.UserID())
}

// Authenticate verifies the token and checks it has not been revoked
func (s *authService) Authenticate(ctx context.Context, token string) (*domain.TokenClaims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.TokenID())
		if err != nil {
			return nil, fmt.Errorf("failed to check token denylist: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("token has been revoked: %w", ErrUnauthorized)
		}
	}

	return claims, nil
}

// Logout revokes the token until its natural expiry when revocation is enabled
func (s *authService) Logout(ctx context.Context, claims *domain.TokenClaims) error {
	if s.denylist == nil || claims == nil || claims.TokenID() == "" {
		return nil
	}

	ttl := time.Until(claims.ExpiresAtTime())
	if ttl <= 0 {
		return nil
	}

	if err := s.denylist.Revoke(ctx, claims.TokenID(), ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// GetUser returns an active user. Missing and inactive accounts are unauthorized.
func (s *authService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("user no longer exists: %w", ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsActive {
		return nil, fmt.Errorf("account is inactive: %w", ErrUnauthorized)
	}

	return user, nil
}

// UpdateProfile changes display name and avatar
func (s *authService) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*domain.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	v := validation{}
	if req.DisplayName != nil {
		user.DisplayName = cleanDisplayName(req.DisplayName, v)
	}
	if req.AvatarURL != nil {
		user.AvatarURL = cleanAvatarURL(*req.AvatarURL, v)
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return user, nil
}

func (s *authService) touchLogin(ctx context.Context, user *domain.User) {
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	now := time.Now().UTC()
	user.LastLoginAt = &now
}

func cleanDisplayName(raw *string, v validation) *string {
	if raw == nil {
		return nil
	}
	name := utils.SanitizeText(*raw)
	if name == "" {
		return nil
	}
	if utf8.RuneCountInString(name) > displayNameMaxLength {
		v.add("display_name", "must be at most 255 characters long")
		return nil
	}
	return &name
}

func cleanAvatarURL(raw string, v validation) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") || parsed.Host == "" {
		v.add("avatar_url", "must be an http or https URL")
		return nil
	}
	if utf8.RuneCountInString(raw) > avatarURLMaxLength {
		v.add("avatar_url", "must be at most 500 characters long")
		return nil
	}
	return &raw
}
