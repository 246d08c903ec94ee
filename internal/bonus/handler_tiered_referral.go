package bonus

import (
	"context"

	"github.com/coreledger/platform/internal/common"
)

// TieredReferralHandler awards Template.Value scaled by the highest tier
// Context.ReferralCount qualifies for.
type TieredReferralHandler struct{ BaseHandler }

func (TieredReferralHandler) Type() string { return "tiered_referral" }

func (TieredReferralHandler) ValidateSpecific(ctx context.Context, bctx Context) (Eligibility, error) {
	if len(bctx.Template.Tiers) == 0 {
		return Eligibility{Eligible: false, Reason: "template has no referral tiers configured"}, nil
	}
	if bctx.ReferralCount < lowestTier(bctx.Template.Tiers).MinReferrals {
		return Eligibility{Eligible: false, Reason: "referral count below the lowest qualifying tier"}, nil
	}
	return Eligibility{Eligible: true}, nil
}

func (h TieredReferralHandler) CalculateValue(ctx context.Context, bctx Context) (int64, error) {
	tier, ok := highestQualifyingTier(bctx.Template.Tiers, bctx.ReferralCount)
	if !ok {
		return 0, common.NewConflict("no referral tier qualifies", "referral_count", bctx.ReferralCount)
	}
	return int64(float64(bctx.Template.Value) * tier.Multiplier), nil
}

func lowestTier(tiers []ReferralTier) ReferralTier {
	lowest := tiers[0]
	for _, t := range tiers[1:] {
		if t.MinReferrals < lowest.MinReferrals {
			lowest = t
		}
	}
	return lowest
}

func highestQualifyingTier(tiers []ReferralTier, referralCount int) (ReferralTier, bool) {
	var best ReferralTier
	found := false
	for _, t := range tiers {
		if referralCount >= t.MinReferrals && (!found || t.MinReferrals > best.MinReferrals) {
			best = t
			found = true
		}
	}
	return best, found
}
