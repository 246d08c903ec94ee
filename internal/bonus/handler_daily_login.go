package bonus

import "context"

// DailyLoginHandler awards a fixed amount once per calendar day.
type DailyLoginHandler struct{ BaseHandler }

func (DailyLoginHandler) Type() string { return "daily_login" }

func (DailyLoginHandler) ValidateSpecific(ctx context.Context, bctx Context) (Eligibility, error) {
	if bctx.LastClaimAt == nil {
		return Eligibility{Eligible: true}, nil
	}
	if sameCalendarDay(*bctx.LastClaimAt, bctx.Now) {
		return Eligibility{Eligible: false, Reason: "already claimed today"}, nil
	}
	return Eligibility{Eligible: true}, nil
}
