// Package bonus implements the Bonus Engine (spec component C10): a
// handler-per-type registry running a validate/calculate/persist/award
// pipeline over bonus templates, crediting awards via the Wallet/Transfer
// Engine's (C6) bonus balance.
package bonus

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
)

// Status is a UserBonus's lifecycle stage.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusForfeited Status = "forfeited"
	StatusConverted Status = "converted"
)

// ReferralTier is one tier of a tiered_referral template: Multiplier applies
// to Template.Value once ReferralCount reaches MinReferrals.
type ReferralTier struct {
	MinReferrals int
	Multiplier   float64
}

// Template defines one claimable bonus type's parameters. Not every field
// applies to every Type; handlers read only the fields their type uses.
type Template struct {
	common.BaseEntity `bson:",inline"`

	Code               string
	Type               string
	Value              int64 // base award, integer minor units
	TurnoverMultiplier int64 // turnoverRequired = value * TurnoverMultiplier; 0 = no wagering requirement
	ExpiresAfter       time.Duration
	ValidFrom          time.Time
	ValidUntil         time.Time
	MaxUses            int // 0 = unlimited; flash templates' total-uses cap
	Tiers              []ReferralTier
	Currency           string
	RequiresKYC        bool // gate claims on the user's KYC status being approved
}

// UserBonus is one user's claim against a Template, per spec's Data Model.
type UserBonus struct {
	common.BaseEntity `bson:",inline"`

	UserID           uuid.UUID `json:"user_id" bson:"user_id"`
	TemplateCode     string    `json:"template_code" bson:"template_code"`
	Status           Status    `json:"status" bson:"status"`
	OriginalValue    int64     `json:"original_value" bson:"original_value"`
	CurrentValue     int64     `json:"current_value" bson:"current_value"`
	TurnoverRequired int64     `json:"turnover_required" bson:"turnover_required"`
	TurnoverProgress int64     `json:"turnover_progress" bson:"turnover_progress"`
	ExpiresAt        time.Time `json:"expires_at" bson:"expires_at"`
	RefereeID        uuid.UUID `json:"referee_id,omitempty" bson:"referee_id,omitempty"`
	ReferrerID       uuid.UUID `json:"referrer_id,omitempty" bson:"referrer_id,omitempty"`
	Currency         string    `json:"currency" bson:"currency"`
}

// NewUserBonus stamps a fresh, pending UserBonus.
func NewUserBonus(owner common.ResourceOwner, userID uuid.UUID, templateCode string, value, turnoverRequired int64, currency string, expiresAt time.Time) *UserBonus {
	return &UserBonus{
		BaseEntity:       common.NewEntity(owner),
		UserID:           userID,
		TemplateCode:     templateCode,
		Status:           StatusPending,
		OriginalValue:    value,
		CurrentValue:     value,
		TurnoverRequired: turnoverRequired,
		Currency:         currency,
		ExpiresAt:        expiresAt,
	}
}
