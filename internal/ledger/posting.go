package ledger

import (
	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
)

// Posting is one atomic debit/credit pair recorded against two accounts.
// Exactly one Posting is created per successful Engine.Post call.
type Posting struct {
	common.BaseEntity `bson:",inline"`

	FromAccountID uuid.UUID `json:"from_account_id" bson:"from_account_id"`
	ToAccountID   uuid.UUID `json:"to_account_id" bson:"to_account_id"`
	Amount        int64     `json:"amount" bson:"amount"`
	Currency      string    `json:"currency" bson:"currency"`
	Type          string    `json:"type" bson:"type"`
	ExternalRef   string    `json:"external_ref,omitempty" bson:"external_ref,omitempty"`
	CreatedBy     uuid.UUID `json:"created_by" bson:"created_by"`
}

// NewPosting stamps a fresh Posting record.
func NewPosting(owner common.ResourceOwner, from, to uuid.UUID, amount int64, currency, txType, externalRef string, createdBy uuid.UUID) *Posting {
	return &Posting{
		BaseEntity:    common.NewEntity(owner),
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        amount,
		Currency:      currency,
		Type:          txType,
		ExternalRef:   externalRef,
		CreatedBy:     createdBy,
	}
}
