package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/app-scaffold/internal/config"
	"github.com/prperemyshlev/app-scaffold/internal/handler"
	"github.com/prperemyshlev/app-scaffold/internal/repository"
	"github.com/prperemyshlev/app-scaffold/internal/service"
	"github.com/prperemyshlev/app-scaffold/internal/utils"
	"github.com/prperemyshlev/app-scaffold/internal/web"
	"github.com/prperemyshlev/app-scaffold/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	serviceName     = "app-scaffold"
	shutdownTimeout = 5 * time.Second
)

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	return newApp(infra, cfg, repository.NewRepositories(infra.Postgres()), infraChecks(infra))
}

func newApp(infra Infrastructure, cfg *config.Config, repos *repository.Repositories, checks []HealthCheck) (*App, error) {
	logger := infra.Logger()

	metrics, err := observability.NewAuthMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to register auth metrics: %w", err)
	}

	tokens := utils.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL.Duration)
	stores := newStores(infra.Redis(), cfg.Security)

	authService := service.NewAuthService(
		repos.User,
		tokens,
		newProviderRegistry(cfg.OAuth),
		stores.denylist,
		stores.loginGuard,
		cfg.Security.BCryptCost,
		logger,
		metrics,
	)
	itemService := service.NewItemService(repos.Item)

	authHandler := handler.NewAuthHandler(authService, handler.CookieSettings{
		Secure: cfg.Cookie.Secure,
		Domain: cfg.Cookie.Domain,
	}, logger)
	itemHandler := handler.NewItemHandler(itemService, logger)

	router := gin.New()
	// handlers read the identity from the request context
	router.ContextWithFallback = true
	router.Use(handler.RecoveryMiddleware(logger))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	router.GET("/metrics", observability.PrometheusHandler(infra.MetricsHandler()))
	router.GET("/healthz", NewHealthChecker(checks...).Handler)

	gate := handler.AuthMiddleware(authService, handler.PublicRoutes, logger, handler.WithGateMetrics(metrics))
	api := router.Group("/api", gate)
	handler.RegisterRoutes(api, authHandler, itemHandler, handler.RateLimitMiddleware(
		stores.rateLimiter,
		cfg.Security.RateLimitRequests,
		cfg.Security.RateLimitWindow.Duration,
		handler.IPBasedKey,
		logger,
	))

	if err := web.Register(router, authService); err != nil {
		return nil, fmt.Errorf("failed to load page templates: %w", err)
	}

	router.NoRoute(handler.NoRoute(gate))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
			zap.String("env", a.config.Env),
		)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

// Shutdown drains in-flight requests before closing the infrastructure they use
func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := errors.Join(a.server.Shutdown(ctx), a.infra.Shutdown(ctx))
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
