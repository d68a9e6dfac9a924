package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/app-scaffold/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRoutePolicy(t *testing.T) {
	assert.True(t, PublicRoutes.IsPublic(http.MethodPost, "/api/auth/login"))
	assert.True(t, PublicRoutes.IsPublic(http.MethodPost, "/api/auth/:provider/callback"))
	assert.False(t, PublicRoutes.IsPublic(http.MethodGet, "/api/auth/login"))
	assert.False(t, PublicRoutes.IsPublic(http.MethodGet, "/api/auth/me"))
	assert.False(t, PublicRoutes.IsPublic(http.MethodGet, "/api/items"))
	assert.False(t, PublicRoutes.IsPublic(http.MethodGet, ""))
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware(
		[]string{"https://app.example.com"},
		[]string{"GET", "POST"},
		[]string{"Content-Type"},
	))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := serve(router, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := serve(router, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := serve(router, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
	})
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(limiter service.RateLimiter) *gin.Engine {
		router := gin.New()
		router.POST("/login", RateLimitMiddleware(limiter, 2, time.Minute, IPBasedKey, zap.NewNop()),
			func(c *gin.Context) { c.Status(http.StatusOK) })
		return router
	}

	t.Run("rejects above the limit", func(t *testing.T) {
		router := newRouter(service.NewMemoryRateLimiter())

		for i := 0; i < 2; i++ {
			rec := serve(router, httptest.NewRequest(http.MethodPost, "/login", nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		}

		rec := serve(router, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), CodeRateLimited)
	})

	t.Run("fails open", func(t *testing.T) {
		router := newRouter(failingLimiter{})

		rec := serve(router, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveryMiddleware(zap.NewNop()))
	router.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeInternalError)
}
