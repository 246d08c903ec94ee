package gateway

import (
	"net/http"

	"github.com/coreledger/platform/internal/common"
)

// requireAuth rejects requests the AuthMiddleware could not authenticate.
// Mirrors the teacher's RequireAuthentication() wrapper shape: a guard is a
// http.Handler decorator declared per operation, not a blanket middleware.
func requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !common.IsAuthenticated(r.Context()) {
			err := AuthError(r.Context())
			if err == nil {
				err = common.NewUnauthenticated("authentication required")
			}
			writeMutation(w, nil, err)
			return
		}
		next(w, r)
	}
}

// hasAnyRole rejects authenticated callers who hold none of roles. Spec
// §4.11's `hasAnyRole("admin","system")` declarative guard.
func hasAnyRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return requireAuth(func(w http.ResponseWriter, r *http.Request) {
			if !common.HasAnyRole(r.Context(), roles...) {
				writeMutation(w, nil, common.NewForbidden("caller lacks a required role", "roles", roles))
				return
			}
			next(w, r)
		})
	}
}
