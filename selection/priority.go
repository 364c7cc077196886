package selection

import (
	"fmt"
	"sort"

	"github.com/modelyard/selector/core"
)

// PickBest scores each record by its single most authoritative available
// metric, then returns the globally best-scoring record. Records that expose
// no usable metric are silently excluded. Returns nil when nothing is
// rankable.
//
// The priority order is fixed: AUC, R², multiclass micro-accuracy, RMSE
// (negated), log-loss (negated). Different model families populate disjoint
// metric subsets, so the ranker never blends across metric kinds; it assumes
// the caller only mixes models from comparable problem classes.
func PickBest(items []core.EvaluationRecord) *core.RankingOutcome {
	outcomes := make([]core.RankingOutcome, 0, len(items))
	for _, rec := range items {
		if o, ok := tryRank(rec); ok {
			outcomes = append(outcomes, o)
		}
	}
	if len(outcomes) == 0 {
		return nil
	}

	sort.SliceStable(outcomes, func(i, j int) bool {
		if outcomes[i].Score != outcomes[j].Score {
			return outcomes[i].Score > outcomes[j].Score
		}
		return outcomes[i].Record.TrainedAt.After(outcomes[j].Record.TrainedAt)
	})

	best := outcomes[0]
	return &best
}

// tryRank picks the first applicable metric in priority order. Lower-is-better
// metrics are negated so that "higher score wins" holds universally.
func tryRank(rec core.EvaluationRecord) (core.RankingOutcome, bool) {
	if v, ok := core.Finite(rec.AUC); ok {
		return outcome(rec, v, core.ScoreSourceAUC, fmt.Sprintf("AUC %.4g", v)), true
	}
	if v, ok := core.Finite(rec.RSquared); ok {
		return outcome(rec, v, core.ScoreSourceRSquared, fmt.Sprintf("R-squared %.4g", v)), true
	}
	if rec.Multiclass != nil {
		if v, ok := core.Finite(rec.Multiclass.MicroAccuracy); ok {
			return outcome(rec, v, core.ScoreSourceMicroAccuracy, fmt.Sprintf("micro-accuracy %.4g", v)), true
		}
	}
	if v, ok := core.Finite(rec.RMSE); ok {
		return outcome(rec, -v, core.ScoreSourceRMSE, fmt.Sprintf("RMSE %.4g (lower is better)", v)), true
	}
	if v, ok := core.Finite(rec.LogLoss); ok {
		return outcome(rec, -v, core.ScoreSourceLogLoss, fmt.Sprintf("log-loss %.4g (lower is better)", v)), true
	}
	return core.RankingOutcome{}, false
}

func outcome(rec core.EvaluationRecord, score float64, src core.ScoreSource, detail string) core.RankingOutcome {
	return core.RankingOutcome{
		Record: rec,
		Score:  score,
		Source: src,
		Detail: fmt.Sprintf("%s selected by %s", rec.ModelName, detail),
	}
}
