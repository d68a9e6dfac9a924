package web

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/app-scaffold/internal/domain"
	"github.com/prperemyshlev/app-scaffold/internal/utils"
)

// accessTokenCookie must match the cookie set by the API
const accessTokenCookie = "access_token"

const (
	loginPath   = "/login"
	landingPath = "/dashboard"
	claimsKey   = "page_claims"
)

// Verifier checks an access token
type Verifier interface {
	Authenticate(ctx context.Context, token string) (*domain.TokenClaims, error)
}

// Access is how a page treats signed-in and anonymous visitors
type Access int

const (
	// Protected pages require a session. Pages not listed in PageRoutes are protected.
	Protected Access = iota
	// Public pages are served to everyone
	Public
	// AuthOnly pages (sign-in, sign-up) make no sense with a session and send it on
	AuthOnly
)

// PageRoutes maps registered page paths to their access rule
type PageRoutes map[string]Access

// Access returns the rule for path
func (r PageRoutes) Access(path string) Access {
	if a, ok := r[path]; ok {
		return a
	}
	return Protected
}

// DefaultPages is the access table of the bundled pages
var DefaultPages = PageRoutes{
	"/":         Public,
	"/login":    AuthOnly,
	"/register": AuthOnly,
}

// PageGate redirects instead of rendering errors: anonymous visitors of a
// protected page go to the sign-in page, signed-in visitors of an auth-only
// page go to their redirect target or the landing page.
func PageGate(verifier Verifier, routes PageRoutes) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := sessionClaims(c, verifier)

		switch routes.Access(c.FullPath()) {
		case Protected:
			if claims == nil {
				target := loginPath + "?" + url.Values{"redirect": {c.Request.URL.RequestURI()}}.Encode()
				c.Redirect(http.StatusFound, target)
				c.Abort()
				return
			}
		case AuthOnly:
			if claims != nil {
				c.Redirect(http.StatusFound, SafeRedirect(c.Query("redirect")))
				c.Abort()
				return
			}
		}

		if claims != nil {
			c.Set(claimsKey, claims)
		}
		c.Next()
	}
}

// SafeRedirect returns target when it stays on this site, the landing page otherwise
func SafeRedirect(target string) string {
	if utils.IsLocalPath(target) {
		return target
	}
	return landingPath
}

// a verifier failure of any kind counts as signed out here
func sessionClaims(c *gin.Context, verifier Verifier) *domain.TokenClaims {
	token, err := c.Cookie(accessTokenCookie)
	if err != nil || token == "" {
		return nil
	}
	claims, err := verifier.Authenticate(c.Request.Context(), token)
	if err != nil {
		return nil
	}
	return claims
}

func claimsFrom(c *gin.Context) *domain.TokenClaims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*domain.TokenClaims); ok {
			return claims
		}
	}
	return nil
}
