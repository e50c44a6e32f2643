package engagement

import (
	"github.com/shopspring/decimal"

	"github.com/kudimu-insights/kudimu/internal/domain"
)

// Progress describes how far a reputation is from the next tier.
type Progress struct {
	Percent      int          `json:"percent"`
	NextTier     *domain.Tier `json:"next_tier,omitempty"`
	PointsNeeded int          `json:"points_needed"`
}

// tierIndex returns the index of the highest tier whose threshold is at or
// below reputation. Reputation below every threshold maps to the first tier.
func tierIndex(tiers []domain.Tier, reputation int) int {
	idx := 0
	for i, t := range tiers {
		if reputation >= t.MinReputation {
			idx = i
		}
	}
	return idx
}

// LevelOf returns the tier for a reputation.
func LevelOf(reputation int) domain.Tier {
	tiers := domain.Tiers()
	return tiers[tierIndex(tiers, reputation)]
}

// ProgressToNext reports progress toward the next tier. The top tier is
// always 100% with nothing left to earn.
func ProgressToNext(reputation int) Progress {
	tiers := domain.Tiers()
	idx := tierIndex(tiers, reputation)
	if idx == len(tiers)-1 {
		return Progress{Percent: 100}
	}

	cur, next := tiers[idx], tiers[idx+1]
	span := decimal.NewFromInt(int64(next.MinReputation - cur.MinReputation))
	done := decimal.NewFromInt(int64(reputation - cur.MinReputation))
	pct := int(done.Mul(decimal.NewFromInt(100)).Div(span).Round(0).IntPart())
	pct = max(0, min(100, pct))

	return Progress{
		Percent:      pct,
		NextTier:     &next,
		PointsNeeded: next.MinReputation - reputation,
	}
}

// RewardMultiplierFor returns the reward multiplier granted at reputation.
func RewardMultiplierFor(reputation int) decimal.Decimal {
	return LevelOf(reputation).Multiplier
}

// ApplyBonus scales a base reward by the tier multiplier and rounds to the
// nearest whole unit, halves away from zero.
func ApplyBonus(base decimal.Decimal, reputation int) decimal.Decimal {
	return base.Mul(RewardMultiplierFor(reputation)).Round(0)
}
