package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/app-scaffold/internal/dto"
	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck is one dependency probed by /healthz
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthChecker struct {
	checks []HealthCheck
}

func NewHealthChecker(checks ...HealthCheck) *HealthChecker {
	return &HealthChecker{
		checks: checks,
	}
}

func infraChecks(infra Infrastructure) []HealthCheck {
	checks := []HealthCheck{{Name: "database", Ping: infra.Postgres().Ping}}
	if redis := infra.Redis(); redis != nil {
		checks = append(checks, HealthCheck{Name: "redis", Ping: redis.Ping})
	}
	return checks
}

// check probes every dependency concurrently. A failing probe does not cancel the others.
func (h *HealthChecker) check(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var (
		g      errgroup.Group
		mu     sync.Mutex
		status = make(map[string]string, len(h.checks))
	)
	for _, c := range h.checks {
		g.Go(func() error {
			err := c.Ping(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				status[c.Name] = "disconnected"
				return err
			}
			status[c.Name] = "connected"
			return nil
		})
	}

	return status, g.Wait()
}

func (h *HealthChecker) Handler(c *gin.Context) {
	checks, err := h.check(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.HealthResponse{
			Status: "fail",
			Checks: checks,
		})
		return
	}

	c.JSON(http.StatusOK, dto.HealthResponse{
		Status: "pass",
		Checks: checks,
	})
}
