package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prperemyshlev/app-scaffold/internal/domain"
	"github.com/prperemyshlev/app-scaffold/internal/dto"
	"github.com/prperemyshlev/app-scaffold/internal/oauth"
	"github.com/prperemyshlev/app-scaffold/internal/oauth/oauthtest"
	"github.com/prperemyshlev/app-scaffold/internal/repository/repotest"
	"github.com/prperemyshlev/app-scaffold/internal/utils"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const (
	testSecret   = "test-secret-key-that-is-at-least-32-characters-long"
	testPassword = "correct-horse-battery"
	testTTL      = 30 * time.Minute
	maxFailures  = 3
)

type AuthServiceSuite struct {
	suite.Suite

	ctx      context.Context
	users    *repotest.Users
	clock    *fakeClock
	tokens   *utils.TokenManager
	google   *oauthtest.Provider
	apple    *oauthtest.Provider
	denylist *MemoryDenylist
	service  AuthService
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.users = repotest.NewUsers()
	s.clock = &fakeClock{now: time.Now()}
	s.tokens = utils.NewTokenManager(testSecret, testTTL, utils.WithClock(s.clock.Now))
	s.google = oauthtest.NewProvider(domain.ProviderGoogle, oauth.Identity{
		Subject:       "google-sub-1",
		Email:         "Alice@Example.com",
		EmailVerified: true,
		Name:          "Alice",
		AvatarURL:     "https://example.com/alice.png",
	})
	s.apple = oauthtest.NewProvider(domain.ProviderApple, oauth.Identity{
		Subject: "apple-sub-1",
		Email:   "relay@privaterelay.appleid.com",
	})
	s.apple.Post = true
	s.denylist = NewMemoryDenylist()

	s.service = NewAuthService(
		s.users,
		s.tokens,
		oauth.NewRegistry(s.google, s.apple),
		s.denylist,
		NewMemoryLoginGuard(maxFailures, 15*time.Minute),
		4,
		zap.NewNop(),
		nil,
	)
}

func (s *AuthServiceSuite) register(email string) *AuthResult {
	result, err := s.service.Register(s.ctx, &dto.RegisterRequest{Email: email, Password: testPassword})
	s.Require().NoError(err)
	return result
}

func (s *AuthServiceSuite) TestRegisterLoginCurrentUserRoundTrip() {
	registered := s.register("  Alice@Example.com ")
	s.Equal("alice@example.com", registered.User.Email)
	s.True(registered.User.IsActive)
	s.NotEmpty(registered.Token.Value)

	loggedIn, err := s.service.Login(s.ctx, &dto.LoginRequest{Email: "alice@example.com", Password: testPassword})
	s.Require().NoError(err)
	s.Equal(registered.User.ID, loggedIn.User.ID)
	s.NotNil(loggedIn.User.LastLoginAt)

	current, err := s.service.CurrentUser(s.ctx, loggedIn.Token.Value)
	s.Require().NoError(err)
	s.Equal(registered.User.ID, current.ID)
	s.Equal("alice@example.com", current.Email)
}

func (s *AuthServiceSuite) TestRegisterDuplicateEmail() {
	s.register("alice@example.com")

	_, err := s.service.Register(s.ctx, &dto.RegisterRequest{Email: "ALICE@example.com", Password: testPassword})
	s.ErrorIs(err, ErrConflict)
	s.Equal(1, s.users.Len())
}

func (s *AuthServiceSuite) TestRegisterConcurrentSameEmail() {
	const attempts = 2

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Register(s.ctx, &dto.RegisterRequest{Email: "race@example.com", Password: testPassword})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, created)
	s.Equal(1, conflicts)
	s.Equal(1, s.users.Len())
}

func (s *AuthServiceSuite) TestRegisterValidation() {
	_, err := s.service.Register(s.ctx, &dto.RegisterRequest{Email: "not-an-email", Password: "short"})

	var validationErr *ValidationError
	s.Require().ErrorAs(err, &validationErr)
	s.Contains(validationErr.Fields, "email")
	s.Contains(validationErr.Fields, "password")
	s.Equal(0, s.users.Len())
}

func (s *AuthServiceSuite) TestRegisterSanitizesDisplayName() {
	name := "<b>Alice</b><script>alert(1)</script>"
	result, err := s.service.Register(s.ctx, &dto.RegisterRequest{
		Email:       "alice@example.com",
		Password:    testPassword,
		DisplayName: &name,
	})
	s.Require().NoError(err)
	s.Require().NotNil(result.User.DisplayName)
	s.Equal("Alice", *result.User.DisplayName)
}

func (s *AuthServiceSuite) TestLoginFailuresAreIndistinguishable() {
	s.register("alice@example.com")

	cases := []*dto.LoginRequest{
		{Email: "alice@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: testPassword},
	}
	for _, req := range cases {
		_, err := s.service.Login(s.ctx, req)
		s.ErrorIs(err, ErrUnauthorized)
		s.Equal("invalid email or password: invalid credentials", err.Error())
	}
}

func (s *AuthServiceSuite) TestLoginInactiveAccount() {
	s.register("alice@example.com")
	s.Require().NoError(s.users.Deactivate(s.ctx, "alice@example.com"))

	_, err := s.service.Login(s.ctx, &dto.LoginRequest{Email: "alice@example.com", Password: testPassword})
	s.ErrorIs(err, ErrUnauthorized)
}

func (s *AuthServiceSuite) TestLoginOAuthOnlyAccount() {
	_, err := s.service.OAuthCallback(s.ctx, domain.ProviderGoogle, "code")
	s.Require().NoError(err)

	_, err = s.service.Login(s.ctx, &dto.LoginRequest{Email: "alice@example.com", Password: testPassword})
	s.ErrorIs(err, ErrUnauthorized)
}

func (s *AuthServiceSuite) TestLoginLockout() {
	s.register("alice@example.com")

	for i := 0; i < maxFailures; i++ {
		_, err := s.service.Login(s.ctx, &dto.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
		s.ErrorIs(err, ErrUnauthorized)
	}

	_, err := s.service.Login(s.ctx, &dto.LoginRequest{Email: "alice@example.com", Password: testPassword})
	s.ErrorIs(err, ErrLocked)
}

func (s *AuthServiceSuite) TestSuccessfulLoginResetsFailures() {
	s.register("alice@example.com")

	for i := 0; i < maxFailures-1; i++ {
		_, _ = s.service.Login(s.ctx, &dto.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	}
	_, err := s.service.Login(s.ctx, &dto.LoginRequest{Email: "alice@example.com", Password: testPassword})
	s.Require().NoError(err)

	for i := 0; i < maxFailures-1; i++ {
		_, _ = s.service.Login(s.ctx, &dto.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	}
	_, err = s.service.Login(s.ctx, &dto.LoginRequest{Email: "alice@example.com", Password: testPassword})
	s.NoError(err)
}

func (s *AuthServiceSuite) TestAuthenticateRejectsExpiredToken() {
	result := s.register("alice@example.com")

	s.clock.Advance(testTTL + time.Second)

	_, err := s.service.Authenticate(s.ctx, result.Token.Value)
	s.ErrorIs(err, ErrUnauthorized)
	s.ErrorIs(err, utils.ErrTokenExpired)
}

func (s *AuthServiceSuite) TestLogoutRevokesToken() {
	result := s.register("alice@example.com")

	claims, err := s.service.Authenticate(s.ctx, result.Token.Value)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Logout(s.ctx, claims))

	_, err = s.service.Authenticate(s.ctx, result.Token.Value)
	s.ErrorIs(err, ErrUnauthorized)

	other, err := s.service.Login(s.ctx, &dto.LoginRequest{Email: "alice@example.com", Password: testPassword})
	s.Require().NoError(err)
	_, err = s.service.Authenticate(s.ctx, other.Token.Value)
	s.NoError(err, "only the logged out token is revoked")
}

func (s *AuthServiceSuite) TestCurrentUserRejectsMissingAndInactiveUsers() {
	orphan, err := s.tokens.Issue("00000000-0000-0000-0000-000000000000", "ghost@example.com")
	s.Require().NoError(err)

	_, err = s.service.CurrentUser(s.ctx, orphan.Value)
	s.ErrorIs(err, ErrUnauthorized)

	result := s.register("alice@example.com")
	s.Require().NoError(s.users.Deactivate(s.ctx, "alice@example.com"))

	_, err = s.service.CurrentUser(s.ctx, result.Token.Value)
	s.ErrorIs(err, ErrUnauthorized)
}

func (s *AuthServiceSuite) TestAuthorizationURL() {
	redirect, err := s.service.AuthorizationURL(domain.ProviderApple, "state-123")
	s.Require().NoError(err)
	s.Contains(redirect.URL, "state=state-123")
	s.True(redirect.FormPost)

	_, err = s.service.AuthorizationURL("github", "state-123")
	s.ErrorIs(err, ErrUnknownProvider)
}

func (s *AuthServiceSuite) TestOAuthCallbackProvisionsThenReuses() {
	first, err := s.service.OAuthCallback(s.ctx, domain.ProviderGoogle, "code")
	s.Require().NoError(err)
	s.Equal("alice@example.com", first.User.Email)
	s.Require().NotNil(first.User.DisplayName)
	s.Equal("Alice", *first.User.DisplayName)
	s.False(first.User.HasPassword())

	second, err := s.service.OAuthCallback(s.ctx, domain.ProviderGoogle, "code")
	s.Require().NoError(err)
	s.Equal(first.User.ID, second.User.ID)
	s.Equal(1, s.users.Len())
}

func (s *AuthServiceSuite) TestOAuthCallbackCutsLongProviderName() {
	s.google.SetIdentity(func(i *oauth.Identity) { i.Name = strings.Repeat("名", displayNameMaxLength+40) })

	result, err := s.service.OAuthCallback(s.ctx, domain.ProviderGoogle, "code")
	s.Require().NoError(err)
	s.Require().NotNil(result.User.DisplayName)
	s.Equal(displayNameMaxLength, len([]rune(*result.User.DisplayName)))
}

func (s *AuthServiceSuite) TestOAuthCallbackSkipsEmptyProviderName() {
	s.google.SetIdentity(func(i *oauth.Identity) { i.Name = "<script>alert(1)</script>" })

	result, err := s.service.OAuthCallback(s.ctx, domain.ProviderGoogle, "code")
	s.Require().NoError(err)
	s.Nil(result.User.DisplayName)
}

func (s *AuthServiceSuite) TestUpdateProfileLimitCountsCharacters() {
	result := s.register("alice@example.com")

	name := strings.Repeat("名", displayNameMaxLength)
	updated, err := s.service.UpdateProfile(s.ctx, result.User.ID, &dto.UpdateProfileRequest{DisplayName: &name})
	s.Require().NoError(err)
	s.Equal(name, *updated.DisplayName)

	tooLong := name + "名"
	_, err = s.service.UpdateProfile(s.ctx, result.User.ID, &dto.UpdateProfileRequest{DisplayName: &tooLong})
	var validationErr *ValidationError
	s.Require().ErrorAs(err, &validationErr)
	s.Contains(validationErr.Fields, "display_name")
}

func (s *AuthServiceSuite) TestOAuthCallbackLinksVerifiedEmail() {
	registered := s.register("alice@example.com")

	result, err := s.service.OAuthCallback(s.ctx, domain.ProviderGoogle, "code")
	s.Require().NoError(err)
	s.Equal(registered.User.ID, result.User.ID)
	s.True(result.User.HasOAuthIdentity())
	s.True(result.User.HasPassword())

	_, err = s.service.Login(s.ctx, &dto.LoginRequest{Email: "alice@example.com", Password: testPassword})
	s.NoError(err, "password sign-in keeps working after linking")
}

func (s *AuthServiceSuite) TestOAuthCallbackUnverifiedEmailConflicts() {
	s.register("alice@example.com")
	s.google.SetIdentity(func(i *oauth.Identity) { i.EmailVerified = false })

	_, err := s.service.OAuthCallback(s.ctx, domain.ProviderGoogle, "code")
	s.ErrorIs(err, ErrConflict)
	s.Equal(1, s.users.Len())
}

func (s *AuthServiceSuite) TestOAuthCallbackEmailLinkedElsewhereConflicts() {
	_, err := s.service.OAuthCallback(s.ctx, domain.ProviderGoogle, "code")
	s.Require().NoError(err)

	s.google.SetIdentity(func(i *oauth.Identity) { i.Subject = "google-sub-2" })
	_, err = s.service.OAuthCallback(s.ctx, domain.ProviderGoogle, "code")
	s.ErrorIs(err, ErrConflict)
}

func (s *AuthServiceSuite) TestOAuthCallbackLosesInsertRace() {
	first, err := s.service.OAuthCallback(s.ctx, domain.ProviderApple, "code")
	s.Require().NoError(err)

	s.users.HideIdentityOnce = true
	second, err := s.service.OAuthCallback(s.ctx, domain.ProviderApple, "code")
	s.Require().NoError(err)
	s.Equal(first.User.ID, second.User.ID)
	s.Equal(1, s.users.Len())
}

func (s *AuthServiceSuite) TestOAuthCallbackExchangeFaults() {
	s.google.Fail(fmt.Errorf("exchange: %w", oauth.ErrInvalidGrant))
	_, err := s.service.OAuthCallback(s.ctx, domain.ProviderGoogle, "bad-code")

	var extErr *ExternalAuthError
	s.Require().ErrorAs(err, &extErr)
	s.Equal(FaultCaller, extErr.Fault)
	s.Equal(domain.ProviderGoogle, extErr.Provider)

	s.google.Fail(errors.New("connection refused"))
	_, err = s.service.OAuthCallback(s.ctx, domain.ProviderGoogle, "code")
	s.Require().ErrorAs(err, &extErr)
	s.Equal(FaultProvider, extErr.Fault)

	_, err = s.service.OAuthCallback(s.ctx, "github", "code")
	s.ErrorIs(err, ErrUnknownProvider)
}

func (s *AuthServiceSuite) TestOAuthCallbackWithoutEmail() {
	s.apple.SetIdentity(func(i *oauth.Identity) { i.Email = "" })

	_, err := s.service.OAuthCallback(s.ctx, domain.ProviderApple, "code")

	var extErr *ExternalAuthError
	s.Require().ErrorAs(err, &extErr)
	s.Equal(FaultProvider, extErr.Fault)
}

func (s *AuthServiceSuite) TestUpdateProfile() {
	result := s.register("alice@example.com")

	name := "  Alice Liddell "
	avatar := "https://example.com/a.png"
	updated, err := s.service.UpdateProfile(s.ctx, result.User.ID, &dto.UpdateProfileRequest{
		DisplayName: &name,
		AvatarURL:   &avatar,
	})
	s.Require().NoError(err)
	s.Equal("Alice Liddell", *updated.DisplayName)
	s.Equal(avatar, *updated.AvatarURL)

	bad := "javascript:alert(1)"
	_, err = s.service.UpdateProfile(s.ctx, result.User.ID, &dto.UpdateProfileRequest{AvatarURL: &bad})
	var validationErr *ValidationError
	s.Require().ErrorAs(err, &validationErr)
	s.Contains(validationErr.Fields, "avatar_url")

	empty := ""
	cleared, err := s.service.UpdateProfile(s.ctx, result.User.ID, &dto.UpdateProfileRequest{DisplayName: &empty})
	s.Require().NoError(err)
	s.Nil(cleared.DisplayName)
	s.NotNil(cleared.AvatarURL, "absent fields stay unchanged")
}
