// Package middleware holds HTTP middleware for the tracker API.
package middleware

import (
	"context"
	"net/http"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/alert"
)

type contextKey string

const roleKey contextKey = "role"

// RoleHeader names the header carrying the caller's role. There is no
// credential store behind it; deployments put authentication in front of
// this service and pass the resolved role through.
const RoleHeader = "X-Role"

// WithRole extracts the caller role from the request header and stores the
// typed value in the request context. Missing or unknown roles become
// citizen, the least privileged.
func WithRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, err := alert.ParseRole(r.Header.Get(RoleHeader))
		if err != nil {
			role = alert.RoleCitizen
		}
		ctx := context.WithValue(r.Context(), roleKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RoleFromContext returns the caller role placed by WithRole, citizen when
// the middleware did not run.
func RoleFromContext(ctx context.Context) alert.Role {
	if role, ok := ctx.Value(roleKey).(alert.Role); ok {
		return role
	}
	return alert.RoleCitizen
}
