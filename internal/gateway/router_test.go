package gateway_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/platform/internal/gateway"
	"github.com/coreledger/platform/internal/session"
)

func TestRouter_HealthIsReachableWithoutAuthentication(t *testing.T) {
	issuer := session.NewTokenIssuer([]byte("secret"), time.Hour)
	handlers := gateway.NewHandlers(nil, nil, nil, gateway.NewCircuitBreaker())
	router := gateway.NewRouter(issuer, handlers, gateway.NewRateLimiter(100, time.Minute))

	req := httptest.NewRequest(http.MethodGet, gateway.RouteHealth, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ProtectedRouteRejectsMissingToken(t *testing.T) {
	issuer := session.NewTokenIssuer([]byte("secret"), time.Hour)
	handlers := gateway.NewHandlers(nil, nil, nil, gateway.NewCircuitBreaker())
	router := gateway.NewRouter(issuer, handlers, gateway.NewRateLimiter(100, time.Minute))

	req := httptest.NewRequest(http.MethodPost, gateway.RouteWallets, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AdminRouteRejectsNonAdminToken(t *testing.T) {
	issuer := session.NewTokenIssuer([]byte("secret"), time.Hour)
	handlers := gateway.NewHandlers(nil, nil, nil, gateway.NewCircuitBreaker())
	router := gateway.NewRouter(issuer, handlers, gateway.NewRateLimiter(100, time.Minute))

	token, _, err := issuer.Issue("user-1", "tenant-1", []string{"player"}, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, gateway.RouteBonusForfeit, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_EnforcesRateLimitAcrossRequests(t *testing.T) {
	issuer := session.NewTokenIssuer([]byte("secret"), time.Hour)
	handlers := gateway.NewHandlers(nil, nil, nil, gateway.NewCircuitBreaker())
	router := gateway.NewRouter(issuer, handlers, gateway.NewRateLimiter(1, time.Minute))

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, gateway.RouteHealth, nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, gateway.RouteHealth, nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
