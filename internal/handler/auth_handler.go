package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/app-scaffold/internal/dto"
	"github.com/prperemyshlev/app-scaffold/internal/oauth"
	"github.com/prperemyshlev/app-scaffold/internal/service"
	"go.uber.org/zap"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService service.AuthService
	cookies     CookieSettings
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService service.AuthService, cookies CookieSettings, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookies:     cookies,
		logger:      logger,
	}
}

func (h *AuthHandler) signedIn(c *gin.Context, status int, result *service.AuthResult) {
	h.cookies.setAccessToken(c, result.Token)
	c.JSON(status, dto.AuthResponse{
		User:      dto.NewUserResponse(result.User),
		ExpiresAt: result.Token.ExpiresAt,
	})
}

// Register handles user registration
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration request"
// @Success 201 {object} dto.AuthResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.signedIn(c, http.StatusCreated, result)
}

// Login handles user login
// @Summary Login user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			respondUnauthorized(c, "invalid email or password")
			return
		}
		writeError(c, h.logger, err)
		return
	}

	h.signedIn(c, http.StatusOK, result)
}

// OAuthStart redirects to the provider's consent screen
// @Summary Start sign-in with an external provider
// @Tags auth
// @Param provider path string true "google or apple"
// @Success 302
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/{provider} [get]
func (h *AuthHandler) OAuthStart(c *gin.Context) {
	state, err := oauth.NewState()
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	redirect, err := h.authService.AuthorizationURL(c.Param("provider"), state)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.cookies.setOAuthState(c, state, redirect.FormPost)
	c.Redirect(http.StatusFound, redirect.URL)
}

// OAuthCallback completes sign-in with an external provider. Apple posts the form,
// Google redirects with a query.
// @Summary Complete sign-in with an external provider
// @Tags auth
// @Param provider path string true "google or apple"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /auth/{provider}/callback [get]
// @Router /auth/{provider}/callback [post]
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	provider := c.Param("provider")

	var req dto.OAuthCallbackRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	expected, _ := c.Cookie(oauthStateCookie)
	h.cookies.clearOAuthState(c)

	if req.Error != "" {
		writeError(c, h.logger, &service.ExternalAuthError{
			Provider: provider,
			Fault:    service.FaultCaller,
			Err:      errors.New("provider returned error: " + req.Error),
		})
		return
	}

	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(req.State)) != 1 {
		writeError(c, h.logger, &service.ExternalAuthError{
			Provider: provider,
			Fault:    service.FaultCaller,
			Err:      errors.New("state mismatch"),
		})
		return
	}

	result, err := h.authService.OAuthCallback(c.Request.Context(), provider, req.Code)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.signedIn(c, http.StatusOK, result)
}

// Logout revokes the current token and clears the cookie
// @Summary Logout user
// @Tags auth
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		respondUnauthorized(c, "authentication required")
		return
	}

	claims := identityClaims(id)
	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		// the cookie is cleared regardless, the token just stays valid until expiry
		h.logger.Warn("failed to revoke token on logout", zap.String("user_id", id.UserID), zap.Error(err))
	}

	h.cookies.clearAccessToken(c)
	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Successfully logged out",
	})
}

// GetMe returns the current user
// @Summary Get current user
// @Tags auth
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		respondUnauthorized(c, "authentication required")
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// UpdateMe changes the current user's profile
// @Summary Update current user
// @Tags auth
// @Accept json
// @Param request body dto.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /auth/me [patch]
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		respondUnauthorized(c, "authentication required")
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), id.UserID, &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}
