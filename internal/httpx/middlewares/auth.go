package middlewares

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jcmexdev/storefront-fulfillment/internal/auth"
	"github.com/jcmexdev/storefront-fulfillment/internal/pkg/constants"
)

// RequireAPIKey rejects requests without the shared integration key. It runs
// before any handler touches the body.
func RequireAPIKey(v *auth.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := v.CheckAPIKey(r.Header.Get(constants.HeaderXAPIKey)); err != nil {
				slog.WarnContext(r.Context(), "rejected integration call", "path", r.URL.Path, "error", err)
				unauthorized(w, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireBearer validates the storefront token and stores the caller in the
// request context.
func RequireBearer(v *auth.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := v.ParseBearer(r.Header.Get("Authorization"))
			if err != nil {
				slog.WarnContext(r.Context(), "rejected bearer token", "path", r.URL.Path, "error", err)
				unauthorized(w, "Invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), constants.ContextKeyCaller, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func CallerFrom(ctx context.Context) (auth.Caller, bool) {
	c, ok := ctx.Value(constants.ContextKeyCaller).(auth.Caller)
	return c, ok
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": msg})
}
