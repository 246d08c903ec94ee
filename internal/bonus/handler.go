package bonus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
)

// Context carries the per-claim facts a Handler needs, assembled by
// Service.Claim before dispatch so handlers stay free of repository
// dependencies.
type Context struct {
	Owner             common.ResourceOwner
	UserID            uuid.UUID
	Template          *Template
	Now               time.Time
	LastClaimAt       *time.Time // most recent prior claim of this template by this user, nil if none
	TemplateUsesCount int64      // total claims of this template across all users
	ReferralCount     int
	Params            map[string]any
}

// Eligibility is ValidateSpecific's verdict.
type Eligibility struct {
	Eligible bool
	Reason   string
}

// Handler implements one bonus type's claim pipeline, per spec §4.10's
// Validate→Calculate→Persist→Award stages. Every method is part of the
// interface rather than optional per-type hooks; BaseHandler supplies
// reasonable defaults so concrete handlers only override what differs.
type Handler interface {
	Type() string
	ValidateSpecific(ctx context.Context, bctx Context) (Eligibility, error)
	CalculateValue(ctx context.Context, bctx Context) (int64, error)
	CalculateExpiration(ctx context.Context, bctx Context) (time.Time, error)
	CalculateTurnover(ctx context.Context, bctx Context, value int64) (int64, error)
	BuildUserBonus(ctx context.Context, bctx Context, value, turnoverRequired int64, expiresAt time.Time) (*UserBonus, error)
	OnAwarded(ctx context.Context, b *UserBonus) error
}

// BaseHandler implements Handler's common-case defaults: fixed value from
// the template, expiry Template.ExpiresAfter out from now, turnover scaled
// by Template.TurnoverMultiplier, a plain BuildUserBonus, and a no-op
// OnAwarded. Concrete handlers embed BaseHandler and override ValidateSpecific
// plus whichever other method their type's rules require.
type BaseHandler struct{}

func (BaseHandler) CalculateValue(ctx context.Context, bctx Context) (int64, error) {
	return bctx.Template.Value, nil
}

func (BaseHandler) CalculateExpiration(ctx context.Context, bctx Context) (time.Time, error) {
	if bctx.Template.ExpiresAfter <= 0 {
		return bctx.Now.Add(30 * 24 * time.Hour), nil
	}
	return bctx.Now.Add(bctx.Template.ExpiresAfter), nil
}

func (BaseHandler) CalculateTurnover(ctx context.Context, bctx Context, value int64) (int64, error) {
	if bctx.Template.TurnoverMultiplier <= 0 {
		return 0, nil
	}
	return value * bctx.Template.TurnoverMultiplier, nil
}

func (BaseHandler) BuildUserBonus(ctx context.Context, bctx Context, value, turnoverRequired int64, expiresAt time.Time) (*UserBonus, error) {
	return NewUserBonus(bctx.Owner, bctx.UserID, bctx.Template.Code, value, turnoverRequired, bctx.Template.Currency, expiresAt), nil
}

func (BaseHandler) OnAwarded(ctx context.Context, b *UserBonus) error { return nil }

// Registry looks up the Handler for a Template's type, keyed exactly as
// spec §4.10 describes.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// Register adds h under h.Type(), overwriting any previous handler for that
// type.
func (r *Registry) Register(h Handler) {
	r.handlers[h.Type()] = h
}

// Get returns the handler registered for bonusType, or an error if none is.
func (r *Registry) Get(bonusType string) (Handler, error) {
	h, ok := r.handlers[bonusType]
	if !ok {
		return nil, common.NewInvalidInput(fmt.Sprintf("no bonus handler registered for type %q", bonusType), "type", bonusType)
	}
	return h, nil
}
