package bonus

import (
	"context"
	"time"
)

// BirthdayHandler awards a fixed amount once per calendar year, on the day
// whose month and day match the user's birth date (supplied via
// Params["birth_date"]).
type BirthdayHandler struct{ BaseHandler }

func (BirthdayHandler) Type() string { return "birthday" }

func (BirthdayHandler) ValidateSpecific(ctx context.Context, bctx Context) (Eligibility, error) {
	birthDate, ok := bctx.Params["birth_date"].(time.Time)
	if !ok {
		return Eligibility{Eligible: false, Reason: "birth_date not supplied"}, nil
	}
	if birthDate.Month() != bctx.Now.Month() || birthDate.Day() != bctx.Now.Day() {
		return Eligibility{Eligible: false, Reason: "not the user's birthday"}, nil
	}
	if bctx.LastClaimAt != nil && sameCalendarYear(*bctx.LastClaimAt, bctx.Now) {
		return Eligibility{Eligible: false, Reason: "already claimed this year"}, nil
	}
	return Eligibility{Eligible: true}, nil
}
