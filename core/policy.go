package core

import (
	"math"
	"time"
)

// SelectionPolicy configures the quality gate and composite scorer. It is pure
// configuration: the engine never mutates it, and callers pass it explicitly on
// every call. Weights conventionally sum to 1 but are not required to.
type SelectionPolicy struct {
	// Hard gates. Candidates failing either are dropped before ranking.
	MinRSquared float64
	MaxRmse     float64

	// Ranking weights for the composite score.
	WeightRSquared float64
	WeightRmse     float64

	// Stability controls. An incumbent is kept unless the challenger improves
	// the composite score by at least MinScoreImprovementToSwitch; near-tied
	// top candidates prefer the most recent one trained within
	// PreferNewerWithin of the leader.
	MinScoreImprovementToSwitch float64
	PreferNewerWithin           time.Duration
}

// DefaultPolicy returns the stock selection policy.
func DefaultPolicy() SelectionPolicy {
	return SelectionPolicy{
		MinRSquared:                 0,
		MaxRmse:                     math.Inf(1),
		WeightRSquared:              0.7,
		WeightRmse:                  0.3,
		MinScoreImprovementToSwitch: 0.01,
		PreferNewerWithin:           72 * time.Hour,
	}
}
