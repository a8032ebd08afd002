// src/handlers/middleware.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/security"
	"github.com/hivefund/reconciler/src/utils"
	"golang.org/x/time/rate"
)

type contextKey string

const (
	requestIDContextKey contextKey = "requestID"
	adminContextKey     contextKey = "adminSubject"
)

// ContextualLoggerMiddleware creates a logger carrying a requestID for every request.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		ctxLogger := logger.L.With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimitMiddleware rejects requests beyond the limiter's budget with 429.
func RateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				logger.FromContext(r.Context()).Warn("Rate limit exceeded", "path", r.URL.Path)
				utils.SendJSONError(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminMiddleware requires a valid admin bearer token. With no secret configured the admin
// routes answer 404.
func AdminMiddleware(auth *security.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxLogger := logger.FromContext(r.Context())

			if !auth.Enabled() {
				utils.SendJSONError(w, "not found", http.StatusNotFound)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				ctxLogger.Debug("AdminMiddleware: Authorization header missing", "path", r.URL.Path)
				utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if tokenString == "" {
				utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
				return
			}

			subject, err := auth.ValidateToken(tokenString)
			if err != nil {
				ctxLogger.Warn("AdminMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
				utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			enrichedLogger := ctxLogger.With(slog.String("admin", subject))
			ctx := logger.ToContext(r.Context(), enrichedLogger)
			ctx = context.WithValue(ctx, adminContextKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
