package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/app-scaffold/internal/service"
	"go.uber.org/zap"
)

// RateLimitMiddleware admits at most limit requests per key within window.
// When the limiter store fails the request is let through.
func RateLimitMiddleware(limiter service.RateLimiter, limit int, window time.Duration, keyFunc func(*gin.Context) string, logger *zap.Logger) gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return func(c *gin.Context) {
		key := keyFunc(c)

		allowed, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Error("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if !allowed {
			c.Header("Retry-After", retryAfter)
			respondError(c, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded", nil)
			return
		}

		c.Next()
	}
}

// IPBasedKey keys the limit by client address and route, so login attempts
// don't eat into the registration budget
func IPBasedKey(c *gin.Context) string {
	return c.FullPath() + ":" + c.ClientIP()
}
