package bonus

import "context"

// SeasonalHandler awards a fixed amount once per template code, within the
// template's [ValidFrom, ValidUntil] window.
type SeasonalHandler struct{ BaseHandler }

func (SeasonalHandler) Type() string { return "seasonal" }

func (SeasonalHandler) ValidateSpecific(ctx context.Context, bctx Context) (Eligibility, error) {
	if bctx.LastClaimAt != nil {
		return Eligibility{Eligible: false, Reason: "already claimed this seasonal bonus"}, nil
	}
	if !inWindow(bctx.Now, bctx.Template.ValidFrom, bctx.Template.ValidUntil) {
		return Eligibility{Eligible: false, Reason: "outside the seasonal window"}, nil
	}
	return Eligibility{Eligible: true}, nil
}
