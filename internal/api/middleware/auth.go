package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/aifai-labs/aifai/internal/api"
)

type contextKey string

const InstanceIDKey contextKey = "instance_id"

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (int64, error)
}

// InstanceAuth resolves the Bearer API token to the calling AI instance and
// stores its id on the request context.
func InstanceAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			instanceID, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api token")
				return
			}

			ctx := context.WithValue(r.Context(), InstanceIDKey, instanceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetInstanceID returns the authenticated instance id from context, or zero
// when the request is unauthenticated.
func GetInstanceID(ctx context.Context) int64 {
	instanceID, _ := ctx.Value(InstanceIDKey).(int64)
	return instanceID
}
