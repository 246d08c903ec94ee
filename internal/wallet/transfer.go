package wallet

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/ledger"
	"github.com/coreledger/platform/internal/opstate"
	"github.com/coreledger/platform/internal/repository"
	"github.com/coreledger/platform/internal/saga"
)

// TransferStatus is a Transfer's lifecycle stage, per spec §4.6.
type TransferStatus string

const (
	TransferPending  TransferStatus = "pending"
	TransferApproved TransferStatus = "approved"
	TransferFailed   TransferStatus = "failed"
)

// Transfer is the compound debit-source/credit-destination/optional-fee
// operation of spec §4.6, recorded so its outcome survives a crash
// mid-saga.
type Transfer struct {
	common.BaseEntity `bson:",inline"`

	FromUserID      uuid.UUID      `json:"from_user_id" bson:"from_user_id"`
	ToUserID        uuid.UUID      `json:"to_user_id" bson:"to_user_id"`
	Amount          int64          `json:"amount" bson:"amount"`
	FeeAmount       int64          `json:"fee_amount" bson:"fee_amount"`
	Currency        string         `json:"currency" bson:"currency"`
	FromBalanceType BalanceType    `json:"from_balance_type" bson:"from_balance_type"`
	ToBalanceType   BalanceType    `json:"to_balance_type" bson:"to_balance_type"`
	Status          TransferStatus `json:"status" bson:"status"`
	ExternalRef     string         `json:"external_ref,omitempty" bson:"external_ref,omitempty"`
	FailureReason   string         `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
}

// TransferRepository is the narrow port Service drives Transfer persistence
// through.
type TransferRepository interface {
	FindById(ctx context.Context, id uuid.UUID, sess repository.Session) (*Transfer, error)
	Create(ctx context.Context, t *Transfer, sess repository.Session) (*Transfer, error)
	Update(ctx context.Context, t *Transfer, sess repository.Session) (*Transfer, error)
}

type transferRepoAdapter struct {
	repo repository.Repository[Transfer]
}

// NewTransferRepository wraps a generic repository.Repository[Transfer].
func NewTransferRepository(repo repository.Repository[Transfer]) TransferRepository {
	return &transferRepoAdapter{repo: repo}
}

func (r *transferRepoAdapter) FindById(ctx context.Context, id uuid.UUID, sess repository.Session) (*Transfer, error) {
	return r.repo.FindById(ctx, id.String(), sess)
}

func (r *transferRepoAdapter) Create(ctx context.Context, t *Transfer, sess repository.Session) (*Transfer, error) {
	return r.repo.Create(ctx, t, sess)
}

func (r *transferRepoAdapter) Update(ctx context.Context, t *Transfer, sess repository.Session) (*Transfer, error) {
	return r.repo.Update(ctx, t, sess)
}

const operationTypeTransfer = "transfer"

// CreateTransfer runs the compound operation of spec §4.6 as a C7 saga: the
// debit and credit legs route through the tenant's system "hold" account so
// each leg is independently postable and reversible by compensation, rather
// than hand-rolling rollback logic the way the teacher's SagaExecutor did
// per call site.
func (s *Service) CreateTransfer(ctx context.Context, owner common.ResourceOwner, fromUserID, toUserID uuid.UUID, amount, feeAmount int64, currency string, fromBalanceType, toBalanceType BalanceType, externalRef string) (*Transfer, error) {
	if amount <= 0 {
		return nil, common.NewInvalidInput("transfer amount must be strictly positive", "amount", amount)
	}

	fromWallet, err := s.wallets.FindByOwner(ctx, fromUserID, currency, "default", nil)
	if err != nil {
		return nil, err
	}
	toWallet, err := s.wallets.FindByOwner(ctx, toUserID, currency, "default", nil)
	if err != nil {
		return nil, err
	}

	transfer := &Transfer{
		BaseEntity:      common.NewEntity(owner),
		FromUserID:      fromUserID,
		ToUserID:        toUserID,
		Amount:          amount,
		FeeAmount:       feeAmount,
		Currency:        currency,
		FromBalanceType: fromBalanceType,
		ToBalanceType:   toBalanceType,
		Status:          TransferPending,
		ExternalRef:     externalRef,
	}
	transfer, err = s.transfers.Create(ctx, transfer, nil)
	if err != nil {
		return nil, err
	}

	sagaID := transfer.ID.String()
	if externalRef != "" {
		sagaID = "transfer:" + externalRef
	}

	_, _ = s.tracker.SetState(ctx, operationTypeTransfer, transfer.ID.String(), opstate.StatusInProgress, []string{"debit_source", "credit_destination", "credit_fee"}, "debit_source")

	hold, err := s.systemAccount(ctx, owner.TenantID, ledger.SubtypeHold, currency)
	if err != nil {
		return nil, err
	}
	fee, err := s.systemAccount(ctx, owner.TenantID, ledger.SubtypeFee, currency)
	if err != nil {
		return nil, err
	}

	fromAccountID := fromWallet.AccountID(fromBalanceType)
	toAccountID := toWallet.AccountID(toBalanceType)

	// debit_source moves amount+feeAmount off the source so the three legs
	// net hold to zero: crediting only `amount` here while credit_fee later
	// drains `feeAmount` out of hold would leave hold permanently negative
	// and the fee uncollected from the source.
	sourceDebit := amount + feeAmount

	steps := []saga.Step{
		{
			Name:     "debit_source",
			Critical: true,
			Execute: func(sctx context.Context, state map[string]any) (map[string]any, error) {
				_ = s.tracker.UpdateHeartbeat(sctx, operationTypeTransfer, transfer.ID.String())
				_, err := s.ledger.Post(sctx, fromAccountID, hold.ID, sourceDebit, currency, string(TxTransferOut), externalRef+":debit", fromUserID, owner)
				return state, err
			},
			Compensate: func(sctx context.Context, state map[string]any) error {
				_, err := s.ledger.Post(sctx, hold.ID, fromAccountID, sourceDebit, currency, "transfer_reversal", externalRef+":debit:reversal", fromUserID, owner)
				return err
			},
		},
		{
			Name:     "credit_destination",
			Critical: true,
			Execute: func(sctx context.Context, state map[string]any) (map[string]any, error) {
				_ = s.tracker.UpdateHeartbeat(sctx, operationTypeTransfer, transfer.ID.String())
				_, err := s.ledger.Post(sctx, hold.ID, toAccountID, amount, currency, string(TxTransferIn), externalRef+":credit", toUserID, owner)
				return state, err
			},
			Compensate: func(sctx context.Context, state map[string]any) error {
				_, err := s.ledger.Post(sctx, toAccountID, hold.ID, amount, currency, "transfer_reversal", externalRef+":credit:reversal", toUserID, owner)
				return err
			},
		},
	}
	if feeAmount > 0 {
		steps = append(steps, saga.Step{
			Name:     "credit_fee",
			Critical: true,
			Execute: func(sctx context.Context, state map[string]any) (map[string]any, error) {
				_ = s.tracker.UpdateHeartbeat(sctx, operationTypeTransfer, transfer.ID.String())
				_, err := s.ledger.Post(sctx, hold.ID, fee.ID, feeAmount, currency, "fee", externalRef+":fee", fromUserID, owner)
				return state, err
			},
			Compensate: func(sctx context.Context, state map[string]any) error {
				_, err := s.ledger.Post(sctx, fee.ID, hold.ID, feeAmount, currency, "transfer_reversal", externalRef+":fee:reversal", fromUserID, owner)
				return err
			},
		})
	}

	result, err := s.orchestrator.Run(ctx, sagaID, saga.New(steps...), map[string]any{"transfer_id": transfer.ID.String()})
	if err != nil {
		return nil, err
	}

	if result.Success {
		transfer.Status = TransferApproved
		_ = s.tracker.MarkCompleted(ctx, operationTypeTransfer, transfer.ID.String())
	} else {
		transfer.Status = TransferFailed
		transfer.FailureReason = strings.Join(result.Errors, "; ")
		_ = s.tracker.MarkFailed(ctx, operationTypeTransfer, transfer.ID.String(), transfer.FailureReason)
	}

	return s.transfers.Update(ctx, transfer, nil)
}
