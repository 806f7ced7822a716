package middleware

import (
	"context"
	"net/http"
	"strings"

	"finhealth/internal/shared/auth"
	"finhealth/internal/shared/logger"
)

type ContextKey string

const UserIDKey ContextKey = "user_id"

// UserIDFromContext returns the authenticated user id set by Auth.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

// WithUserID is used by tests and background jobs that act for a user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func Auth(jwt *auth.JWT) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "authentication required")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeUnauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := jwt.Validate(parts[1])
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID())
			l := logger.FromContext(ctx).With().Str("user_id", claims.UserID()).Logger()
			ctx = logger.WithContext(ctx, l)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"code":"UNAUTHORIZED","message":"` + msg + `"}`))
}
