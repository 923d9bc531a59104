package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/editorhub/editors/internal/models"
	"github.com/editorhub/editors/pkg/auth"
	"github.com/editorhub/editors/pkg/logging"
	"github.com/editorhub/editors/pkg/telemetry"
)

const (
	// RequestIDHeader carries the request ID in and out
	RequestIDHeader = "X-Request-ID"
	// ContextUserKey holds the authenticated *models.User in the gin context
	ContextUserKey = "user"
)

// UserLoader resolves the user a token refers to
type UserLoader interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// RequestID assigns an ID to each request and binds a request-scoped logger
// to the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		logger := logging.GetLogger().With(zap.String("request_id", id))
		c.Request = c.Request.WithContext(logging.IntoContext(c.Request.Context(), logger))
		c.Next()
	}
}

// AccessLog logs one line per request
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		// Authenticate has already bound user_id to the context logger.
		logger := logging.FromContext(c.Request.Context())
		if c.Writer.Status() >= 500 {
			logger.Error("HTTP request", fields...)
			return
		}
		logger.Info("HTTP request", fields...)
	}
}

// Tracing wraps each request in a server span, continuing any incoming trace.
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := telemetry.StartSpan(ctx, fmt.Sprintf("%s %s", c.Request.Method, route),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
		}
	}
}

// Authenticate requires a valid bearer token and loads its user
func Authenticate(tokens *auth.Tokens, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			abortWithError(c, fmt.Errorf("%w: missing bearer token", ErrUnauthorized))
			return
		}

		claims, err := tokens.Parse(parts[1])
		if err != nil {
			abortWithError(c, fmt.Errorf("%w: %v", ErrUnauthorized, err))
			return
		}

		user, err := users.GetUser(c.Request.Context(), claims.UserID)
		if err != nil {
			abortWithError(c, fmt.Errorf("failed to load user %d: %w", claims.UserID, err))
			return
		}
		if user == nil || !user.IsActive {
			abortWithError(c, fmt.Errorf("%w: unknown or inactive user", ErrUnauthorized))
			return
		}

		c.Set(ContextUserKey, user)
		logger := logging.FromContext(c.Request.Context()).With(zap.Int64("user_id", user.ID))
		c.Request = c.Request.WithContext(logging.IntoContext(c.Request.Context(), logger))
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
