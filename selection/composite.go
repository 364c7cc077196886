// Package selection implements the two model selection strategies: a
// quality-gated weighted composite scorer for regression snapshots, and a
// metric-priority ranker for heterogeneous evaluation records. Both are pure
// functions; "no winner" is signalled by a nil result, never an error.
package selection

import (
	"math"
	"sort"
	"time"

	"github.com/modelyard/selector/core"
)

// ChooseBest filters regression snapshots against the policy's hard gates,
// ranks the survivors by a weighted blend of clamped R² and min-max normalized
// RMSE, and returns the winner. If an incumbent is supplied and still passes
// the gates, it is kept unless the challenger improves the composite score by
// at least MinScoreImprovementToSwitch. When the top two candidates are
// near-tied, the most recently trained candidate within PreferNewerWithin of
// the leader wins instead.
//
// An empty or fully gated-out candidate set returns nil; the gate never falls
// back to an ungated choice.
func ChooseBest(candidates []core.RegressionSnapshot, policy core.SelectionPolicy, incumbent *core.RegressionSnapshot) *core.RegressionSnapshot {
	if len(candidates) == 0 {
		return nil
	}

	gated := make([]core.RegressionSnapshot, 0, len(candidates))
	for _, c := range candidates {
		if PassesGates(c, policy) {
			gated = append(gated, c)
		}
	}
	if len(gated) == 0 {
		return nil
	}

	rmseMin, rmseMax := rmseRange(gated)
	score := func(s core.RegressionSnapshot) float64 {
		return policy.WeightRSquared*clamp01(s.RSquared) +
			policy.WeightRmse*normRMSE(s.RMSE, rmseMin, rmseMax)
	}

	ranked := append([]core.RegressionSnapshot(nil), gated...)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := score(ranked[i]), score(ranked[j])
		if si != sj {
			return si > sj
		}
		return ranked[i].TrainedAt.After(ranked[j].TrainedAt)
	})

	top := ranked[0]
	topScore := score(top)

	// Hold the incumbent on marginal improvements, but only while it still
	// clears the current gates; a stale incumbent must not be kept by inertia.
	if incumbent != nil && PassesGates(*incumbent, policy) {
		if topScore-score(*incumbent) < policy.MinScoreImprovementToSwitch {
			held := *incumbent
			return &held
		}
	}

	// Near-tie at the top: prefer the most recent candidate trained within
	// PreferNewerWithin of the leader. The window always contains the leader
	// itself, so this degrades to the plain top candidate.
	if len(ranked) > 1 && math.Abs(topScore-score(ranked[1])) < policy.MinScoreImprovementToSwitch {
		newest := top
		for _, c := range ranked[1:] {
			if withinWindow(top, c, policy.PreferNewerWithin) && c.TrainedAt.After(newest.TrainedAt) {
				newest = c
			}
		}
		return &newest
	}

	return &top
}

// PassesGates reports whether a snapshot clears the policy's hard gates. Both
// metrics must be finite; NaN or infinite values never pass.
func PassesGates(s core.RegressionSnapshot, policy core.SelectionPolicy) bool {
	if math.IsNaN(s.RSquared) || math.IsNaN(s.RMSE) || math.IsInf(s.RSquared, 0) || math.IsInf(s.RMSE, 0) {
		return false
	}
	return s.RSquared >= policy.MinRSquared && s.RMSE <= policy.MaxRmse
}

func rmseRange(snapshots []core.RegressionSnapshot) (min, max float64) {
	min, max = snapshots[0].RMSE, snapshots[0].RMSE
	for _, s := range snapshots[1:] {
		if s.RMSE < min {
			min = s.RMSE
		}
		if s.RMSE > max {
			max = s.RMSE
		}
	}
	return min, max
}

// normRMSE maps RMSE into [0,1] with lower error scoring higher. A degenerate
// range (all candidates equal on error) scores 1.0 for everyone.
func normRMSE(rmse, min, max float64) float64 {
	if max <= min {
		return 1.0
	}
	return 1.0 - (rmse-min)/(max-min)
}

// clamp01 pins R² into [0,1] before blending so negative or >1 values cannot
// dominate or invert the ranking.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func withinWindow(top, c core.RegressionSnapshot, window time.Duration) bool {
	d := top.TrainedAt.Sub(c.TrainedAt)
	if d < 0 {
		d = -d
	}
	return d <= window
}
