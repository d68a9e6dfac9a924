package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prperemyshlev/app-scaffold/internal/dto"
	"github.com/prperemyshlev/app-scaffold/internal/service"
	"go.uber.org/zap"
)

// Stable error codes of the JSON error body
const (
	CodeValidationFailed   = "validation_failed"
	CodeConflict           = "conflict"
	CodeUnauthorized       = "unauthorized"
	CodeExternalAuthFailed = "external_auth_failed"
	CodeRateLimited        = "rate_limited"
	CodeNotFound           = "not_found"
	CodeInternalError      = "internal_error"
)

func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Message: message,
		Details: details,
	})
}

func respondUnauthorized(c *gin.Context, message string) {
	respondError(c, http.StatusUnauthorized, CodeUnauthorized, message, nil)
}

// writeError maps a service error to its HTTP representation.
// Only external and unexpected failures are logged.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		validationErr *service.ValidationError
		externalErr   *service.ExternalAuthError
	)

	switch {
	case errors.As(err, &validationErr):
		respondError(c, http.StatusUnprocessableEntity, CodeValidationFailed, "request validation failed", validationErr.Fields)
	case errors.Is(err, service.ErrConflict):
		respondError(c, http.StatusConflict, CodeConflict, "email is already registered", nil)
	case errors.Is(err, service.ErrUnauthorized):
		respondUnauthorized(c, "authentication required")
	case errors.Is(err, service.ErrLocked):
		respondError(c, http.StatusTooManyRequests, CodeRateLimited, "too many attempts, try again later", nil)
	case errors.Is(err, service.ErrUnknownProvider):
		respondError(c, http.StatusNotFound, CodeNotFound, "unknown sign-in provider", nil)
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, CodeNotFound, "resource not found", nil)
	case errors.As(err, &externalErr):
		logger.Warn("external sign-in failed",
			zap.String("provider", externalErr.Provider),
			zap.Stringer("fault", externalErr.Fault),
			zap.Error(externalErr.Err),
		)
		status := http.StatusUnauthorized
		if externalErr.Fault == service.FaultProvider {
			status = http.StatusBadGateway
		}
		respondError(c, status, CodeExternalAuthFailed, fmt.Sprintf("sign-in with %s failed", externalErr.Provider), nil)
	default:
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		respondError(c, http.StatusInternalServerError, CodeInternalError, "internal server error", nil)
	}
}

// bindError reports a request that could not be bound or failed its binding tags
func bindError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fieldMessage(fe)
		}
		respondError(c, http.StatusUnprocessableEntity, CodeValidationFailed, "request validation failed", details)
		return
	}

	respondError(c, http.StatusUnprocessableEntity, CodeValidationFailed, "request body is malformed",
		map[string]string{"body": err.Error()})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "email":
		return "must be a valid email address"
	default:
		return "is invalid"
	}
}

// RecoveryMiddleware turns a panic into the standard 500 body
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Stack("stack"),
		)
		respondError(c, http.StatusInternalServerError, CodeInternalError, "internal server error", nil)
	})
}
