package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/coreledger/platform/internal/session"
)

const requestTimeout = 30 * time.Second

// Routes, mirroring the teacher's router.go const-block of path literals.
const (
	RouteHealth          = "/health"
	RouteLogin           = "/auth/login"
	RouteRefresh         = "/auth/refresh"
	RouteLogout          = "/auth/logout"
	RouteWallets         = "/wallets"
	RouteWalletTxns      = "/wallets/transactions"
	RouteTransfers       = "/transfers"
	RouteBonusClaim      = "/bonuses/claim"
	RouteBonusForfeit    = "/bonuses/forfeit"
)

// NewRouter assembles the gateway's HTTP surface. Every non-public route
// runs through the auth middleware (signature+exp) and the fixed-window
// rate limiter, per spec §4.11; individual handlers additionally declare
// requireAuth/hasAnyRole guards.
func NewRouter(issuer *session.TokenIssuer, handlers *Handlers, limiter *RateLimiter) http.Handler {
	r := mux.NewRouter()

	auth := NewAuthMiddleware(issuer)
	r.Use(auth.Handler)
	r.Use(limiter.Middleware)

	r.HandleFunc(RouteHealth, handlers.Health).Methods(http.MethodGet)

	r.HandleFunc(RouteLogin, handlers.Login).Methods(http.MethodPost)
	r.HandleFunc(RouteRefresh, handlers.Refresh).Methods(http.MethodPost)
	r.HandleFunc(RouteLogout, requireAuth(handlers.Logout)).Methods(http.MethodPost)

	r.HandleFunc(RouteWallets, requireAuth(handlers.CreateWallet)).Methods(http.MethodPost)
	r.HandleFunc(RouteWalletTxns, requireAuth(handlers.CreateWalletTransaction)).Methods(http.MethodPost)
	r.HandleFunc(RouteTransfers, requireAuth(handlers.CreateTransfer)).Methods(http.MethodPost)

	r.HandleFunc(RouteBonusClaim, requireAuth(handlers.ClaimBonus)).Methods(http.MethodPost)
	r.HandleFunc(RouteBonusForfeit, hasAnyRole("admin", "system")(handlers.ForfeitBonus)).Methods(http.MethodPost)

	return http.TimeoutHandler(r, requestTimeout, `{"success":false,"errors":["Fatal: request timed out"]}`)
}
