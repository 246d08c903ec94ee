package wallet

import (
	"context"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/ledger"
	"github.com/coreledger/platform/internal/recovery"
	"github.com/coreledger/platform/internal/repository"
)

// TransferRecoveryHandler adapts Service to recovery.Handler[Transfer] so
// the Recovery Framework (C9) can find and reverse a transfer left
// inconsistent by a crash between saga steps.
type TransferRecoveryHandler struct {
	svc      *Service
	postings ledger.PostingRepository
}

// NewTransferRecoveryHandler builds a TransferRecoveryHandler over svc.
func NewTransferRecoveryHandler(svc *Service, postings ledger.PostingRepository) *TransferRecoveryHandler {
	return &TransferRecoveryHandler{svc: svc, postings: postings}
}

func (h *TransferRecoveryHandler) GetOperationType() string { return operationTypeTransfer }

func (h *TransferRecoveryHandler) FindOperation(ctx context.Context, operationID string) (*Transfer, error) {
	id, err := uuid.Parse(operationID)
	if err != nil {
		return nil, common.NewInvalidInput("operation id is not a valid transfer id", "operation_id", operationID)
	}
	return h.svc.transfers.FindById(ctx, id, nil)
}

// FindRelatedPostings looks up the transfer's debit leg by its externalRef
// convention (":debit" suffix); a hit means at least the first leg
// committed before the crash.
func (h *TransferRecoveryHandler) FindRelatedPostings(ctx context.Context, t *Transfer) ([]ledger.Posting, error) {
	if t.ExternalRef == "" {
		return nil, nil
	}
	fromWallet, err := h.svc.wallets.FindByOwner(ctx, t.FromUserID, t.Currency, "default", nil)
	if err != nil {
		return nil, nil
	}
	hold, err := h.svc.systemAccount(ctx, t.ResourceOwner.TenantID, ledger.SubtypeHold, t.Currency)
	if err != nil {
		return nil, nil
	}
	posting, err := h.postings.FindByExternalRef(ctx, fromWallet.AccountID(t.FromBalanceType), hold.ID, string(TxTransferOut), t.ExternalRef+":debit", nil)
	if err != nil {
		if common.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return []ledger.Posting{*posting}, nil
}

func (h *TransferRecoveryHandler) StatusOf(t *Transfer) recovery.Status {
	switch t.Status {
	case TransferApproved:
		return recovery.StatusApproved
	case TransferFailed:
		return recovery.StatusFailed
	default:
		return recovery.StatusPending
	}
}

func (h *TransferRecoveryHandler) NeedsRecovery(t *Transfer, postings []ledger.Posting) bool {
	return recovery.DefaultNeedsRecovery(h.StatusOf(t), postings)
}

// ReverseOperation re-runs CreateTransfer's saga in reverse by crediting the
// source and debiting the destination for amount (and refunding any fee
// collected), returning a synthetic recovery operation id.
func (h *TransferRecoveryHandler) ReverseOperation(ctx context.Context, t *Transfer, sess repository.Session) (string, error) {
	fromWallet, err := h.svc.wallets.FindByOwner(ctx, t.FromUserID, t.Currency, "default", nil)
	if err != nil {
		return "", err
	}
	toWallet, err := h.svc.wallets.FindByOwner(ctx, t.ToUserID, t.Currency, "default", nil)
	if err != nil {
		return "", err
	}
	hold, err := h.svc.systemAccount(ctx, t.ResourceOwner.TenantID, ledger.SubtypeHold, t.Currency)
	if err != nil {
		return "", err
	}

	fromAccountID := fromWallet.AccountID(t.FromBalanceType)
	toAccountID := toWallet.AccountID(t.ToBalanceType)

	if _, err := h.svc.ledger.Post(ctx, toAccountID, hold.ID, t.Amount, t.Currency, "transfer_reversal", t.ExternalRef+":recovery:credit", t.ToUserID, t.ResourceOwner); err != nil && !common.IsInsufficientFunds(err) {
		return "", err
	}
	if t.FeeAmount > 0 {
		fee, err := h.svc.systemAccount(ctx, t.ResourceOwner.TenantID, ledger.SubtypeFee, t.Currency)
		if err != nil {
			return "", err
		}
		if _, err := h.postings.FindByExternalRef(ctx, hold.ID, fee.ID, "fee", t.ExternalRef+":fee", nil); err == nil {
			if _, err := h.svc.ledger.Post(ctx, fee.ID, hold.ID, t.FeeAmount, t.Currency, "transfer_reversal", t.ExternalRef+":recovery:fee", t.FromUserID, t.ResourceOwner); err != nil {
				return "", err
			}
		}
	}
	posting, err := h.svc.ledger.Post(ctx, hold.ID, fromAccountID, t.Amount+t.FeeAmount, t.Currency, "transfer_reversal", t.ExternalRef+":recovery:debit", t.FromUserID, t.ResourceOwner)
	if err != nil {
		return "", err
	}
	return posting.ID.String(), nil
}

func (h *TransferRecoveryHandler) DeleteOperation(ctx context.Context, operationID string, sess repository.Session) error {
	id, err := uuid.Parse(operationID)
	if err != nil {
		return common.NewInvalidInput("operation id is not a valid transfer id", "operation_id", operationID)
	}
	t, err := h.svc.transfers.FindById(ctx, id, nil)
	if err != nil {
		return err
	}
	t.Status = TransferFailed
	t.FailureReason = "deleted by recovery: never produced any postings"
	_, err = h.svc.transfers.Update(ctx, t, nil)
	return err
}

func (h *TransferRecoveryHandler) UpdateStatus(ctx context.Context, operationID string, status recovery.Status, meta map[string]any, sess repository.Session) error {
	id, err := uuid.Parse(operationID)
	if err != nil {
		return common.NewInvalidInput("operation id is not a valid transfer id", "operation_id", operationID)
	}
	t, err := h.svc.transfers.FindById(ctx, id, nil)
	if err != nil {
		return err
	}
	if recoveryOpID, ok := meta["recovery_operation_id"].(string); ok {
		t.FailureReason = "recovered: " + recoveryOpID
	}
	t.Status = TransferFailed
	_, err = h.svc.transfers.Update(ctx, t, nil)
	return err
}

var _ recovery.Handler[Transfer] = (*TransferRecoveryHandler)(nil)
