package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/app-scaffold/internal/domain"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStatePath   = "/api/auth/"
	oauthStateMaxAge = 10 * 60
)

// CookieSettings controls the attributes of the cookies the API sets
type CookieSettings struct {
	Secure bool
	Domain string
}

func (s CookieSettings) setAccessToken(c *gin.Context, token domain.IssuedToken) {
	maxAge := int(token.TTL(time.Now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, token.Value, maxAge, "/", s.Domain, s.Secure, true)
}

func (s CookieSettings) clearAccessToken(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, "", -1, "/", s.Domain, s.Secure, true)
}

// setOAuthState stores the state for the callback. A provider returning with a
// cross-site POST only gets the cookie back with SameSite=None, which requires Secure.
func (s CookieSettings) setOAuthState(c *gin.Context, state string, formPost bool) {
	secure := s.Secure
	if formPost {
		c.SetSameSite(http.SameSiteNoneMode)
		secure = true
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(oauthStateCookie, state, oauthStateMaxAge, oauthStatePath, s.Domain, secure, true)
}

func (s CookieSettings) clearOAuthState(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, "", -1, oauthStatePath, s.Domain, s.Secure, true)
}
