// Package gateway implements the multi-service entry point of spec §4.11:
// token validation, per-service database-context resolution, declarative
// auth/role guards, fixed-window rate limiting and an outbound circuit
// breaker, fronting the ledger/wallet/session/bonus services behind a
// single JSON-over-HTTP surface.
package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/coreledger/platform/internal/common"
)

// statusFor maps an abstract error Kind (spec §7) to its HTTP status.
func statusFor(err error) int {
	e, ok := err.(*common.Error)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case common.KindInvalidInput:
		return http.StatusBadRequest
	case common.KindUnauthenticated:
		return http.StatusUnauthorized
	case common.KindForbidden:
		return http.StatusForbidden
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindConflict, common.KindDuplicateOperation:
		return http.StatusConflict
	case common.KindInsufficientFunds, common.KindCurrencyMismatch:
		return http.StatusUnprocessableEntity
	case common.KindTransientConflict, common.KindDependencyUnavailable:
		return http.StatusServiceUnavailable
	case common.KindExpired:
		return http.StatusGone
	case common.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeMutation writes a MutationResponse body with the HTTP status derived
// from err (200 on success). The wire shape never changes on failure; only
// the status code and the Errors field do.
func writeMutation(w http.ResponseWriter, data any, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(statusFor(err))
		_ = json.NewEncoder(w).Encode(common.Fail(err))
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(common.OK(data))
}

func writeSagaMutation(w http.ResponseWriter, data any, sagaID string, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(statusFor(err))
		_ = json.NewEncoder(w).Encode(common.Fail(err))
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(common.OKWithSaga(data, sagaID))
}
