package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coreledger/platform/internal/common"
)

func withRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, common.RolesKey, roles)
}

func okHandler(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func TestRequireAuth_RejectsUnauthenticatedCaller(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/wallets", nil)
	rec := httptest.NewRecorder()

	requireAuth(okHandler)(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_AllowsAuthenticatedCaller(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/wallets", nil)
	ctx := common.WithResourceOwner(req.Context(), common.ResourceOwner{})
	rec := httptest.NewRecorder()

	requireAuth(okHandler)(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHasAnyRole_ForbidsCallerWithoutTheRole(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/bonuses/forfeit", nil)
	ctx := common.WithResourceOwner(req.Context(), common.ResourceOwner{})
	ctx = withRoles(ctx, []string{"player"})
	rec := httptest.NewRecorder()

	hasAnyRole("admin", "system")(okHandler)(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHasAnyRole_AllowsCallerWithOneOfTheRoles(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/bonuses/forfeit", nil)
	ctx := common.WithResourceOwner(req.Context(), common.ResourceOwner{})
	ctx = withRoles(ctx, []string{"admin"})
	rec := httptest.NewRecorder()

	hasAnyRole("admin", "system")(okHandler)(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
}
