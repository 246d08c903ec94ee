package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/bonus"
	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/observability"
	"github.com/coreledger/platform/internal/session"
	"github.com/coreledger/platform/internal/wallet"
)

// Handlers wires the session/wallet/bonus services behind the JSON-over-HTTP
// query/mutation surface of spec §6. Calls to services that back onto an
// external dependency (the ledger/wallet store, the payment provider) are
// routed through a CircuitBreaker per spec §7's DependencyUnavailable
// propagation policy.
type Handlers struct {
	sessions *session.Engine
	wallets  *wallet.Service
	bonuses  *bonus.Service
	breaker  *CircuitBreaker
}

func NewHandlers(sessions *session.Engine, wallets *wallet.Service, bonuses *bonus.Service, breaker *CircuitBreaker) *Handlers {
	return &Handlers{sessions: sessions, wallets: wallets, bonuses: bonuses, breaker: breaker}
}

type loginRequest struct {
	Identifier    string `json:"identifier"`
	Password      string `json:"password"`
	TenantID      string `json:"tenantId"`
	TwoFactorCode string `json:"twoFactorCode"`
	DeviceID      string `json:"deviceId"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMutation(w, nil, common.NewInvalidInput("malformed request body"))
		return
	}

	device := session.DeviceInfo{
		DeviceID:  req.DeviceID,
		UserAgent: r.Header.Get("User-Agent"),
		IPAddress: r.RemoteAddr,
	}

	result, err := h.sessions.Login(r.Context(), req.Identifier, req.Password, req.TenantID, device, req.TwoFactorCode)
	writeMutation(w, result, err)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	TenantID     string `json:"tenantId"`
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMutation(w, nil, common.NewInvalidInput("malformed request body"))
		return
	}

	result, err := h.sessions.RefreshToken(r.Context(), req.RefreshToken, req.TenantID)
	writeMutation(w, result, err)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	owner := common.GetResourceOwner(r.Context())

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMutation(w, nil, common.NewInvalidInput("malformed request body"))
		return
	}

	err := h.sessions.Logout(r.Context(), owner.UserID, req.RefreshToken)
	writeMutation(w, nil, err)
}

type createWalletRequest struct {
	Currency string `json:"currency"`
	Category string `json:"category"`
}

func (h *Handlers) CreateWallet(w http.ResponseWriter, r *http.Request) {
	owner := common.GetResourceOwner(r.Context())

	var req createWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMutation(w, nil, common.NewInvalidInput("malformed request body"))
		return
	}

	var result *wallet.Wallet
	err := h.breaker.Call(func() error {
		var callErr error
		result, callErr = h.wallets.CreateWallet(r.Context(), owner, owner.UserID, req.Currency, req.Category)
		return callErr
	})
	writeMutation(w, result, err)
}

type walletTransactionRequest struct {
	WalletID    string `json:"walletId"`
	Type        string `json:"type"`
	BalanceType string `json:"balanceType"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

func (h *Handlers) CreateWalletTransaction(w http.ResponseWriter, r *http.Request) {
	owner := common.GetResourceOwner(r.Context())

	var req walletTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMutation(w, nil, common.NewInvalidInput("malformed request body"))
		return
	}

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		writeMutation(w, nil, common.NewInvalidInput("malformed walletId"))
		return
	}

	var result *wallet.WalletTransaction
	callErr := h.breaker.Call(func() error {
		var inner error
		result, inner = h.wallets.CreateWalletTransaction(r.Context(), walletID, owner.UserID,
			wallet.TransactionType(req.Type), wallet.BalanceType(req.BalanceType), req.Amount, req.Currency, req.Description)
		return inner
	})
	writeMutation(w, result, callErr)
}

type createTransferRequest struct {
	ToUserID        string `json:"toUserId"`
	Amount          int64  `json:"amount"`
	FeeAmount       int64  `json:"feeAmount"`
	Currency        string `json:"currency"`
	FromBalanceType string `json:"fromBalanceType"`
	ToBalanceType   string `json:"toBalanceType"`
	ExternalRef     string `json:"externalRef"`
}

func (h *Handlers) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	owner := common.GetResourceOwner(r.Context())

	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMutation(w, nil, common.NewInvalidInput("malformed request body"))
		return
	}

	toUserID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		writeMutation(w, nil, common.NewInvalidInput("malformed toUserId"))
		return
	}

	start := time.Now()
	var result *wallet.Transfer
	callErr := h.breaker.Call(func() error {
		var inner error
		result, inner = h.wallets.CreateTransfer(r.Context(), owner, owner.UserID, toUserID, req.Amount, req.FeeAmount,
			req.Currency, wallet.BalanceType(req.FromBalanceType), wallet.BalanceType(req.ToBalanceType), req.ExternalRef)
		return inner
	})

	status := "ok"
	if callErr != nil {
		status = "error"
	}
	observability.RecordTransferAttempt(status)
	observability.RecordTransferDuration(status, time.Since(start))

	sagaID := ""
	if result != nil {
		sagaID = result.GetID().String()
	}
	writeSagaMutation(w, result, sagaID, callErr)
}

type claimBonusRequest struct {
	TemplateCode  string         `json:"templateCode"`
	ReferralCount int            `json:"referralCount"`
	Params        map[string]any `json:"params"`
}

func (h *Handlers) ClaimBonus(w http.ResponseWriter, r *http.Request) {
	owner := common.GetResourceOwner(r.Context())

	var req claimBonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMutation(w, nil, common.NewInvalidInput("malformed request body"))
		return
	}

	var result *bonus.UserBonus
	callErr := h.breaker.Call(func() error {
		var inner error
		result, inner = h.bonuses.Claim(r.Context(), owner, owner.UserID, req.TemplateCode, req.ReferralCount, req.Params)
		return inner
	})
	if callErr != nil {
		observability.RecordBonusClaim("error")
	} else {
		observability.RecordBonusClaim("ok")
	}
	writeMutation(w, result, callErr)
}

type forfeitBonusRequest struct {
	BonusID string `json:"bonusId"`
}

// ForfeitBonus is an operator-only mutation (spec §4.11's
// hasAnyRole("admin","system") guard), used to void an active bonus outside
// the normal turnover/expiry lifecycle.
func (h *Handlers) ForfeitBonus(w http.ResponseWriter, r *http.Request) {
	var req forfeitBonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMutation(w, nil, common.NewInvalidInput("malformed request body"))
		return
	}

	bonusID, err := uuid.Parse(req.BonusID)
	if err != nil {
		writeMutation(w, nil, common.NewInvalidInput("malformed bonusId"))
		return
	}

	var result *bonus.UserBonus
	callErr := h.breaker.Call(func() error {
		var inner error
		result, inner = h.bonuses.Forfeit(r.Context(), bonusID)
		return inner
	})
	writeMutation(w, result, callErr)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeMutation(w, map[string]string{"status": "ok", "breaker": h.breaker.State()}, nil)
}
