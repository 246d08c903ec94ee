package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/session"
)

// AuthMiddleware validates the bearer access token's signature and exp
// (spec §6) and, on success, attaches the resolved resource owner plus
// roles/permissions to the request context. Following the teacher's
// context-propagation pattern, a missing or invalid token is not written to
// the response here: it is recorded on the context for downstream guards
// (requireAuth) to act on, so public routes keep working unauthenticated.
type AuthMiddleware struct {
	issuer *session.TokenIssuer
}

func NewAuthMiddleware(issuer *session.TokenIssuer) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer}
}

func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r.WithContext(setAuthError(r.Context(), common.NewUnauthenticated("missing bearer token"))))
			return
		}

		parts := strings.SplitN(header, "Bearer ", 2)
		if len(parts) != 2 || parts[1] == "" {
			next.ServeHTTP(w, r.WithContext(setAuthError(r.Context(), common.NewUnauthenticated("malformed authorization header"))))
			return
		}

		claims, err := am.issuer.Verify(parts[1])
		if err != nil {
			next.ServeHTTP(w, r.WithContext(setAuthError(r.Context(), err)))
			return
		}

		next.ServeHTTP(w, r.WithContext(attachClaims(r.Context(), claims)))
	})
}

type authErrorKey struct{}

func setAuthError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, authErrorKey{}, err)
}

// AuthError returns the authentication failure recorded by AuthMiddleware,
// if any.
func AuthError(ctx context.Context) error {
	err, _ := ctx.Value(authErrorKey{}).(error)
	return err
}

func attachClaims(ctx context.Context, claims *session.Claims) context.Context {
	userID, _ := uuid.Parse(claims.UserID)
	tenantID, _ := uuid.Parse(claims.TenantID)
	ctx = common.WithResourceOwner(ctx, common.ResourceOwner{UserID: userID, TenantID: tenantID})
	ctx = context.WithValue(ctx, common.RolesKey, claims.Roles)
	perms := make([]string, 0, len(claims.Permissions))
	for p, granted := range claims.Permissions {
		if granted {
			perms = append(perms, p)
		}
	}
	ctx = context.WithValue(ctx, common.PermissionsKey, perms)
	return ctx
}
