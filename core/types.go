package core

import (
	"math"
	"time"
)

// ScoreSource identifies which underlying metric produced a ranking score.
type ScoreSource string

const (
	ScoreSourceAUC           ScoreSource = "auc"
	ScoreSourceRSquared      ScoreSource = "r_squared"
	ScoreSourceMicroAccuracy ScoreSource = "micro_accuracy"
	ScoreSourceRMSE          ScoreSource = "rmse"
	ScoreSourceLogLoss       ScoreSource = "log_loss"
)

// MulticlassMetrics holds the accuracy figures reported by multiclass runs.
type MulticlassMetrics struct {
	MicroAccuracy *float64 `json:"micro_accuracy,omitempty"`
	MacroAccuracy *float64 `json:"macro_accuracy,omitempty"`
}

// EvaluationRecord identifies one trained model run together with whatever
// metrics the training pipeline computed for it. Every metric is independently
// optional: a regression run populates the error metrics, a classification run
// the probabilistic ones. A record with no usable metric at all is simply
// unrankable, never an error.
type EvaluationRecord struct {
	ID        string
	ModelName string
	Artifact  string // source artifact filename
	TrainedAt time.Time

	RSquared         *float64
	RMSE             *float64
	MAE              *float64
	MSE              *float64
	Loss             *float64
	AUC              *float64
	Accuracy         *float64
	F1               *float64
	Precision        *float64
	Recall           *float64
	LogLoss          *float64
	LogLossReduction *float64
	Multiclass       *MulticlassMetrics
}

// RegressionSnapshot is an immutable projection of an EvaluationRecord
// restricted to regression concerns. The composite scorer only ever sees this
// shape, so it stays decoupled from the full heterogeneous record.
type RegressionSnapshot struct {
	ID        string
	ModelName string
	TrainedAt time.Time
	RSquared  float64
	RMSE      float64
}

// RankingOutcome is the result of the metric-priority ranker: the chosen
// record, its sign-normalized score (higher is always better), the metric that
// produced it, and a human-readable justification.
type RankingOutcome struct {
	Record EvaluationRecord
	Score  float64
	Source ScoreSource
	Detail string
}

// Finite dereferences an optional metric. It reports false for absent values
// and for NaN/±Inf, which are treated as absent everywhere in the engine.
func Finite(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	v := *p
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
