package bonus

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/eventbus"
	"github.com/coreledger/platform/internal/kyc"
	"github.com/coreledger/platform/internal/user"
	"github.com/coreledger/platform/internal/wallet"
)

// Service is the Bonus Engine's public API (spec §4.10).
type Service struct {
	templates TemplateRepository
	bonuses   UserBonusRepository
	registry  *Registry
	wallets   *wallet.Service
	events    eventbus.Bus
	users     user.Repository
}

// NewService wires a Service over the template/user-bonus repositories, the
// handler registry and the wallet service awards are credited through.
func NewService(templates TemplateRepository, bonuses UserBonusRepository, registry *Registry, wallets *wallet.Service) *Service {
	return &Service{templates: templates, bonuses: bonuses, registry: registry, wallets: wallets}
}

// WithEventBus publishes a `bonus.wagering_completed` event on the
// `integration:bonus` channel (spec §6) whenever RecordTurnover converts a
// bonus, for the Notification Dispatcher (C12) to act on.
func (s *Service) WithEventBus(bus eventbus.Bus) *Service {
	s.events = bus
	return s
}

// WithUsers gives Claim a collaborator to check RequiresKYC templates
// against: the KYC Service (internal/kyc) is the only writer of a user's
// KYCStatus, this just reads it back.
func (s *Service) WithUsers(users user.Repository) *Service {
	s.users = users
	return s
}

// Claim runs the common Validate→Calculate→Persist→Award pipeline for
// templateCode against userID: looks up the template and its handler,
// assembles Context from prior-claim history, checks eligibility,
// calculates value/turnover/expiry, persists the UserBonus, then credits
// the user's bonus wallet balance via C6.
func (s *Service) Claim(ctx context.Context, owner common.ResourceOwner, userID uuid.UUID, templateCode string, referralCount int, params map[string]any) (*UserBonus, error) {
	template, err := s.templates.FindByCode(ctx, templateCode)
	if err != nil {
		return nil, err
	}
	if err := s.checkKYC(ctx, userID, template); err != nil {
		return nil, err
	}
	handler, err := s.registry.Get(template.Type)
	if err != nil {
		return nil, err
	}

	bctx, err := s.buildContext(ctx, owner, userID, template, referralCount, params)
	if err != nil {
		return nil, err
	}

	eligibility, err := handler.ValidateSpecific(ctx, *bctx)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		return nil, common.NewConflict("not eligible for bonus", "template_code", templateCode, "reason", eligibility.Reason)
	}

	value, err := handler.CalculateValue(ctx, *bctx)
	if err != nil {
		return nil, err
	}
	if value <= 0 {
		return nil, common.NewInvalidInput("calculated bonus value must be positive", "template_code", templateCode, "value", value)
	}
	turnoverRequired, err := handler.CalculateTurnover(ctx, *bctx, value)
	if err != nil {
		return nil, err
	}
	expiresAt, err := handler.CalculateExpiration(ctx, *bctx)
	if err != nil {
		return nil, err
	}

	userBonus, err := handler.BuildUserBonus(ctx, *bctx, value, turnoverRequired, expiresAt)
	if err != nil {
		return nil, err
	}
	userBonus, err = s.bonuses.Create(ctx, userBonus, nil)
	if err != nil {
		return nil, err
	}

	if err := s.award(ctx, owner, userBonus); err != nil {
		return nil, err
	}

	if err := handler.OnAwarded(ctx, userBonus); err != nil {
		return nil, err
	}
	return userBonus, nil
}

// checkKYC enforces RequiresKYC templates against the user's stored
// KYCStatus. A nil users collaborator (the zero-value Service from
// NewService) treats every template as unrestricted, since without it
// there is nowhere to read the status from.
func (s *Service) checkKYC(ctx context.Context, userID uuid.UUID, template *Template) error {
	if !template.RequiresKYC || s.users == nil {
		return nil
	}
	u, err := s.users.FindById(ctx, userID.String())
	if err != nil {
		return err
	}
	if u.KYCStatus != string(kyc.StatusApproved) {
		return common.NewForbidden("bonus requires approved KYC status", "template_code", template.Code, "kyc_status", u.KYCStatus)
	}
	return nil
}

func (s *Service) buildContext(ctx context.Context, owner common.ResourceOwner, userID uuid.UUID, template *Template, referralCount int, params map[string]any) (*Context, error) {
	bctx := &Context{
		Owner:         owner,
		UserID:        userID,
		Template:      template,
		Now:           time.Now().UTC(),
		ReferralCount: referralCount,
		Params:        params,
	}

	if last, err := s.bonuses.FindLatestByUserAndTemplate(ctx, userID, template.Code); err == nil {
		t := last.CreatedAt
		bctx.LastClaimAt = &t
	} else if !common.IsNotFound(err) {
		return nil, err
	}

	count, err := s.bonuses.CountByTemplate(ctx, template.Code)
	if err != nil {
		return nil, err
	}
	bctx.TemplateUsesCount = count

	return bctx, nil
}

// award credits userBonus's value to the user's bonus wallet balance and
// transitions it from pending to active.
func (s *Service) award(ctx context.Context, owner common.ResourceOwner, userBonus *UserBonus) error {
	w, err := s.wallets.CreateWallet(ctx, owner, userBonus.UserID, userBonus.Currency, "default")
	if err != nil {
		return err
	}
	if _, err := s.wallets.CreateWalletTransaction(ctx, w.ID, userBonus.UserID, wallet.TxBonusCredit, wallet.BalanceBonus,
		userBonus.OriginalValue, userBonus.Currency, "bonus:"+userBonus.TemplateCode); err != nil {
		return err
	}

	userBonus.Status = StatusActive
	_, err = s.bonuses.Update(ctx, userBonus, nil)
	return err
}

// RecordTurnover adds amount to bonusID's wagering progress, clamped so it
// never exceeds TurnoverRequired (spec's "turnoverProgress monotonically
// non-decreasing while active" invariant). Once progress reaches the
// requirement, the bonus converts: its value moves from the bonus balance
// to the real balance and its status becomes converted.
func (s *Service) RecordTurnover(ctx context.Context, w *wallet.Wallet, bonusID uuid.UUID, amount int64) (*UserBonus, error) {
	if amount < 0 {
		return nil, common.NewInvalidInput("turnover amount must not be negative", "amount", amount)
	}
	b, err := s.bonuses.FindById(ctx, bonusID, nil)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusActive {
		return b, nil
	}

	b.TurnoverProgress += amount
	if b.TurnoverProgress > b.TurnoverRequired {
		b.TurnoverProgress = b.TurnoverRequired
	}

	if b.TurnoverRequired > 0 && b.TurnoverProgress >= b.TurnoverRequired {
		if _, err := s.wallets.ConvertBonusToReal(ctx, w, b.UserID, b.CurrentValue, b.Currency, "bonus-convert:"+b.ID.String()); err != nil {
			return nil, err
		}
		b.Status = StatusConverted
		s.publishWageringCompleted(b)
	}

	return s.bonuses.Update(ctx, b, nil)
}

func (s *Service) publishWageringCompleted(b *UserBonus) {
	if s.events == nil {
		return
	}
	env := eventbus.NewEnvelope("bonus.wagering_completed", map[string]any{
		"bonus_id":      b.ID,
		"template_code": b.TemplateCode,
		"current_value": b.CurrentValue,
		"currency":      b.Currency,
	})
	env.UserID = b.UserID
	_ = s.events.Publish(eventbus.ChannelBonus, env)
}

// Forfeit marks bonusID forfeited, e.g. when a user withdraws real funds
// before meeting its turnover requirement; forfeited bonuses keep their
// CurrentValue frozen rather than being converted or credited further.
func (s *Service) Forfeit(ctx context.Context, bonusID uuid.UUID) (*UserBonus, error) {
	b, err := s.bonuses.FindById(ctx, bonusID, nil)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusActive && b.Status != StatusPending {
		return b, nil
	}
	b.Status = StatusForfeited
	return s.bonuses.Update(ctx, b, nil)
}

// ExpireIfDue marks bonusID expired when Now is past its ExpiresAt and it
// is still pending or active.
func (s *Service) ExpireIfDue(ctx context.Context, bonusID uuid.UUID, now time.Time) (*UserBonus, error) {
	b, err := s.bonuses.FindById(ctx, bonusID, nil)
	if err != nil {
		return nil, err
	}
	if (b.Status != StatusActive && b.Status != StatusPending) || now.Before(b.ExpiresAt) {
		return b, nil
	}
	b.Status = StatusExpired
	return s.bonuses.Update(ctx, b, nil)
}
