package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
)

type identityKey int

const userIDKey identityKey = 0

// Identity extracts the authenticated user ID set by the upstream gateway.
// The platform handles authentication; by the time a request reaches this
// service the X-User-ID header is trusted. Requests without it are rejected.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			http.Error(w, `{"error":"missing user identity"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID returns the authenticated user ID from the context, or "" if absent.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// AdminKey gates a route behind a shared admin API key supplied in the
// X-Admin-Key header. The comparison is constant-time.
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				http.Error(w, `{"error":"admin access not configured"}`, http.StatusForbidden)
				return
			}
			got := r.Header.Get("X-Admin-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
