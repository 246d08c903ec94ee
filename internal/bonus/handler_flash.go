package bonus

import "context"

// FlashHandler awards a fixed amount during a [ValidFrom, ValidUntil]
// window, capped at Template.MaxUses total claims across every user, and at
// most once per user.
type FlashHandler struct{ BaseHandler }

func (FlashHandler) Type() string { return "flash" }

func (FlashHandler) ValidateSpecific(ctx context.Context, bctx Context) (Eligibility, error) {
	if bctx.LastClaimAt != nil {
		return Eligibility{Eligible: false, Reason: "already claimed this flash bonus"}, nil
	}
	if !inWindow(bctx.Now, bctx.Template.ValidFrom, bctx.Template.ValidUntil) {
		return Eligibility{Eligible: false, Reason: "outside the claim window"}, nil
	}
	if bctx.Template.MaxUses > 0 && bctx.TemplateUsesCount >= int64(bctx.Template.MaxUses) {
		return Eligibility{Eligible: false, Reason: "total-uses cap reached"}, nil
	}
	return Eligibility{Eligible: true}, nil
}
