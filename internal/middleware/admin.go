package middleware

import (
	"context"
	"net/http"
)

type RoleStore interface {
	GetRole(ctx context.Context, userID string) (string, error)
}

// RequireAdmin gates market administration and credit endpoints on the
// caller's role column.
func RequireAdmin(roles RoleStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			role, err := roles.GetRole(r.Context(), userID)
			if err != nil {
				http.Error(w, "unable to verify role", http.StatusInternalServerError)
				return
			}
			if role != "admin" {
				http.Error(w, "admin privileges required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
