package observability

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/prperemyshlev/app-scaffold"

// AuthMetrics counts authentication outcomes
type AuthMetrics struct {
	registrations  metric.Int64Counter
	logins         metric.Int64Counter
	oauthCallbacks metric.Int64Counter
	gateRejections metric.Int64Counter
}

// NewAuthMetrics registers the counters on the global meter provider
func NewAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter(meterName)

	registrations, err := meter.Int64Counter("auth_registrations_total",
		metric.WithDescription("Registration attempts by outcome"))
	if err != nil {
		return nil, err
	}
	logins, err := meter.Int64Counter("auth_logins_total",
		metric.WithDescription("Password login attempts by outcome"))
	if err != nil {
		return nil, err
	}
	oauthCallbacks, err := meter.Int64Counter("auth_oauth_callbacks_total",
		metric.WithDescription("OAuth callbacks by provider and outcome"))
	if err != nil {
		return nil, err
	}
	gateRejections, err := meter.Int64Counter("auth_gate_rejections_total",
		metric.WithDescription("Requests rejected by the authentication gate"))
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		registrations:  registrations,
		logins:         logins,
		oauthCallbacks: oauthCallbacks,
		gateRejections: gateRejections,
	}, nil
}

// Registration records a registration outcome. A nil receiver is a no-op.
func (m *AuthMetrics) Registration(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.registrations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *AuthMetrics) Login(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *AuthMetrics) OAuthCallback(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	m.oauthCallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

func (m *AuthMetrics) GateRejection(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.gateRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// PrometheusHandler returns a Gin handler for Prometheus metrics
func PrometheusHandler(handler http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if handler == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "metrics handler not initialized",
			})
			return
		}
		handler.ServeHTTP(c.Writer, c.Request)
	}
}
