// Package ledger implements the double-entry accounting core (spec
// component C5): accounts carry a signed integer balance in minor units,
// and every balance change is a Posting committed atomically by Engine.Post.
package ledger

import (
	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
)

// OwnerKind distinguishes who an Account is held on behalf of.
type OwnerKind string

const (
	OwnerUser     OwnerKind = "user"
	OwnerProvider OwnerKind = "provider"
	OwnerSystem   OwnerKind = "system"
)

// Subtype names an account's role within its owner's set of accounts.
type Subtype string

const (
	SubtypeMain     Subtype = "main"
	SubtypeBonus    Subtype = "bonus"
	SubtypeLocked   Subtype = "locked"
	SubtypeDeposit  Subtype = "deposit"
	SubtypeExternal Subtype = "external"
	// SubtypeFee and SubtypeHold are system accounts: SubtypeFee collects
	// transfer fees, SubtypeHold is the intermediary a transfer's debit and
	// credit legs route through so each leg is independently postable and
	// reversible by the saga orchestrator (C7).
	SubtypeFee  Subtype = "fee"
	SubtypeHold Subtype = "hold"
)

// Account is a ledger account. Balance is the signed sum of every committed
// Posting against it; it is created lazily on first posting and is never
// deleted once posted against.
type Account struct {
	common.BaseEntity `bson:",inline"`

	OwnerID       uuid.UUID `json:"owner_id" bson:"owner_id"`
	OwnerKind     OwnerKind `json:"owner_kind" bson:"owner_kind"`
	Subtype       Subtype   `json:"subtype" bson:"subtype"`
	Currency      string    `json:"currency" bson:"currency"`
	Balance       int64     `json:"balance" bson:"balance"`
	AllowNegative bool      `json:"allow_negative" bson:"allow_negative"`
	Version       int64     `json:"version" bson:"version"`
}

// NewAccount stamps a fresh, zero-balance Account.
func NewAccount(owner common.ResourceOwner, ownerID uuid.UUID, ownerKind OwnerKind, subtype Subtype, currency string, allowNegative bool) *Account {
	return &Account{
		BaseEntity:    common.NewEntity(owner),
		OwnerID:       ownerID,
		OwnerKind:     ownerKind,
		Subtype:       subtype,
		Currency:      currency,
		AllowNegative: allowNegative,
		Version:       1,
	}
}
