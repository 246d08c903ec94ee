// Package wallet implements the Wallet/Transfer Engine (spec component C6):
// a thin three-account projection over the ledger (real, bonus, locked),
// wallet-transaction posting with per-type sign rules, and multi-leg
// transfers run as a saga so compensation is inherited rather than
// hand-rolled.
package wallet

import (
	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
)

// Status is a wallet's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusClosed    Status = "closed"
)

// BalanceType names which of a wallet's three ledger accounts an operation
// targets.
type BalanceType string

const (
	BalanceReal   BalanceType = "real"
	BalanceBonus  BalanceType = "bonus"
	BalanceLocked BalanceType = "locked"
)

// Wallet is a thin projection over three ledger.Account rows for the same
// (owner, currency): real, bonus and locked. The ledger accounts, not this
// record, are the source of truth for balances; LifetimeDeposited and
// LifetimeWithdrawn are convenience counters maintained alongside postings.
type Wallet struct {
	common.BaseEntity `bson:",inline"`

	OwnerID           uuid.UUID `json:"owner_id" bson:"owner_id"`
	Currency          string    `json:"currency" bson:"currency"`
	Category          string    `json:"category" bson:"category"`
	Status            Status    `json:"status" bson:"status"`
	RealAccountID     uuid.UUID `json:"real_account_id" bson:"real_account_id"`
	BonusAccountID    uuid.UUID `json:"bonus_account_id" bson:"bonus_account_id"`
	LockedAccountID   uuid.UUID `json:"locked_account_id" bson:"locked_account_id"`
	LifetimeDeposited int64     `json:"lifetime_deposited" bson:"lifetime_deposited"`
	LifetimeWithdrawn int64     `json:"lifetime_withdrawn" bson:"lifetime_withdrawn"`
}

// NewWallet stamps a fresh, active Wallet referencing three already-created
// ledger accounts.
func NewWallet(owner common.ResourceOwner, ownerID uuid.UUID, currency, category string, realID, bonusID, lockedID uuid.UUID) *Wallet {
	return &Wallet{
		BaseEntity:      common.NewEntity(owner),
		OwnerID:         ownerID,
		Currency:        currency,
		Category:        category,
		Status:          StatusActive,
		RealAccountID:   realID,
		BonusAccountID:  bonusID,
		LockedAccountID: lockedID,
	}
}

// AccountID returns the ledger account backing balanceType, or uuid.Nil for
// an unrecognized type.
func (w *Wallet) AccountID(balanceType BalanceType) uuid.UUID {
	switch balanceType {
	case BalanceReal:
		return w.RealAccountID
	case BalanceBonus:
		return w.BonusAccountID
	case BalanceLocked:
		return w.LockedAccountID
	default:
		return uuid.Nil
	}
}

// TransactionType is a WalletTransaction's kind, per spec §4.6's type enum.
type TransactionType string

const (
	TxDeposit     TransactionType = "deposit"
	TxWithdrawal  TransactionType = "withdrawal"
	TxTransferIn  TransactionType = "transfer_in"
	TxTransferOut TransactionType = "transfer_out"
	TxBonusCredit TransactionType = "bonus_credit"
	TxRefund      TransactionType = "refund"
	TxBet         TransactionType = "bet"
	TxWin         TransactionType = "win"
)

// isCredit reports whether txType increases the target account's balance,
// per spec §4.6's sign-rule mapping.
func (t TransactionType) isCredit() (bool, error) {
	switch t {
	case TxDeposit, TxTransferIn, TxWin, TxRefund, TxBonusCredit:
		return true, nil
	case TxWithdrawal, TxTransferOut, TxBet:
		return false, nil
	default:
		return false, common.NewInvalidInput("unknown wallet transaction type", "type", string(t))
	}
}

// WalletTransaction is one posted change to a wallet's balance, carrying
// the authoritative before/after balances read inside the same commit as
// the underlying ledger posting.
type WalletTransaction struct {
	common.BaseEntity `bson:",inline"`

	WalletID      uuid.UUID       `json:"wallet_id" bson:"wallet_id"`
	UserID        uuid.UUID       `json:"user_id" bson:"user_id"`
	Type          TransactionType `json:"type" bson:"type"`
	BalanceType   BalanceType     `json:"balance_type" bson:"balance_type"`
	Amount        int64           `json:"amount" bson:"amount"`
	BalanceBefore int64           `json:"balance_before" bson:"balance_before"`
	BalanceAfter  int64           `json:"balance_after" bson:"balance_after"`
	Currency      string          `json:"currency" bson:"currency"`
	Description   string          `json:"description,omitempty" bson:"description,omitempty"`
	PostingID     uuid.UUID       `json:"posting_id" bson:"posting_id"`
}
