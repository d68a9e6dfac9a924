package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prperemyshlev/app-scaffold/internal/domain"
	"github.com/prperemyshlev/app-scaffold/internal/service"
	"github.com/prperemyshlev/app-scaffold/internal/utils"
	"github.com/prperemyshlev/app-scaffold/pkg/observability"
	"go.uber.org/zap"
)

// AccessTokenCookie carries the access token. It is the only accepted transport.
const AccessTokenCookie = "access_token"

// Identity is the authenticated caller of a request
type Identity struct {
	UserID    string
	Email     string
	Scope     []string
	TokenID   string
	ExpiresAt time.Time
}

type identityKey struct{}

const identityGinKey = "identity"

// IdentityFrom returns the identity attached by AuthMiddleware
func IdentityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

func withIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// Authenticator verifies an access token
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.TokenClaims, error)
}

// RoutePolicy is the set of routes reachable without a token,
// keyed by "METHOD /full/path" with gin path parameters as registered
type RoutePolicy map[string]struct{}

// NewRoutePolicy creates a policy from "METHOD /path" entries
func NewRoutePolicy(routes ...string) RoutePolicy {
	p := make(RoutePolicy, len(routes))
	for _, r := range routes {
		p[r] = struct{}{}
	}
	return p
}

// IsPublic reports whether the route may be served without authentication.
// Unmatched routes have an empty full path and are never public.
func (p RoutePolicy) IsPublic(method, fullPath string) bool {
	if fullPath == "" {
		return false
	}
	_, ok := p[method+" "+fullPath]
	return ok
}

// PublicRoutes lists every API route that does not require authentication
var PublicRoutes = NewRoutePolicy(
	"POST /api/auth/register",
	"POST /api/auth/login",
	"GET /api/auth/:provider",
	"GET /api/auth/:provider/callback",
	"POST /api/auth/:provider/callback",
)

type gateOptions struct {
	metrics *observability.AuthMetrics
}

// GateOption configures AuthMiddleware
type GateOption func(*gateOptions)

// WithGateMetrics counts rejections
func WithGateMetrics(metrics *observability.AuthMetrics) GateOption {
	return func(o *gateOptions) {
		o.metrics = metrics
	}
}

// AuthMiddleware admits a request only with a valid access token cookie, unless
// the route is public under policy. It is installed on the whole API group so new
// routes are protected by default.
func AuthMiddleware(authenticator Authenticator, policy RoutePolicy, logger *zap.Logger, opts ...GateOption) gin.HandlerFunc {
	var o gateOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *gin.Context) {
		if policy.IsPublic(c.Request.Method, c.FullPath()) {
			c.Next()
			return
		}

		token, err := c.Cookie(AccessTokenCookie)
		if err != nil || token == "" {
			o.metrics.GateRejection(c.Request.Context(), "missing_token")
			respondUnauthorized(c, "authentication required")
			return
		}

		claims, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, service.ErrUnauthorized) {
				writeError(c, logger, err)
				return
			}
			reason := rejectionReason(err)
			o.metrics.GateRejection(c.Request.Context(), reason)
			logger.Debug("request rejected by auth gate",
				zap.String("path", c.Request.URL.Path),
				zap.String("reason", reason),
			)
			respondUnauthorized(c, "authentication required")
			return
		}

		identity := Identity{
			UserID:    claims.UserID(),
			Email:     claims.Email,
			Scope:     claims.Scope,
			TokenID:   claims.TokenID(),
			ExpiresAt: claims.ExpiresAtTime(),
		}
		c.Request = c.Request.WithContext(withIdentity(c.Request.Context(), identity))
		c.Set(identityGinKey, identity)

		c.Next()
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, utils.ErrTokenExpired):
		return "expired"
	case errors.Is(err, utils.ErrTokenBadSignature):
		return "bad_signature"
	case errors.Is(err, utils.ErrTokenMalformed):
		return "malformed"
	default:
		return "revoked"
	}
}

// NoRoute answers unknown paths. Under /api the gate runs first, so without a
// valid token the caller learns nothing about which paths exist.
func NoRoute(gate gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			gate(c)
			if c.IsAborted() {
				return
			}
		}
		respondError(c, http.StatusNotFound, CodeNotFound, "resource not found", nil)
	}
}

// identity returns the caller attached by the gate. Handlers behind the gate always have one.
func identity(c *gin.Context) (Identity, bool) {
	return IdentityFrom(c.Request.Context())
}

func identityClaims(id Identity) *domain.TokenClaims {
	return &domain.TokenClaims{
		Email: id.Email,
		Scope: id.Scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.TokenID,
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(id.ExpiresAt),
		},
	}
}
