package selection

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelyard/selector/core"
)

func f64(v float64) *float64 { return &v }

func rec(id string, trainedAt time.Time) core.EvaluationRecord {
	return core.EvaluationRecord{ID: id, ModelName: id, TrainedAt: trainedAt}
}

func TestPickBest_Empty(t *testing.T) {
	assert.Nil(t, PickBest(nil))
	assert.Nil(t, PickBest([]core.EvaluationRecord{}))
}

func TestPickBest_AUCOutranksRSquared(t *testing.T) {
	r := rec("both", day0)
	r.AUC = f64(0.9)
	r.RSquared = f64(0.95)

	got := PickBest([]core.EvaluationRecord{r})
	require.NotNil(t, got)
	assert.Equal(t, core.ScoreSourceAUC, got.Source)
	assert.Equal(t, 0.9, got.Score)
}

func TestPickBest_PriorityOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*core.EvaluationRecord)
		source core.ScoreSource
		score  float64
	}{
		{
			name:   "auc_direct",
			mutate: func(r *core.EvaluationRecord) { r.AUC = f64(0.77) },
			source: core.ScoreSourceAUC,
			score:  0.77,
		},
		{
			name:   "r_squared_direct",
			mutate: func(r *core.EvaluationRecord) { r.RSquared = f64(0.83) },
			source: core.ScoreSourceRSquared,
			score:  0.83,
		},
		{
			name: "micro_accuracy_direct",
			mutate: func(r *core.EvaluationRecord) {
				r.Multiclass = &core.MulticlassMetrics{MicroAccuracy: f64(0.91)}
			},
			source: core.ScoreSourceMicroAccuracy,
			score:  0.91,
		},
		{
			name:   "rmse_negated",
			mutate: func(r *core.EvaluationRecord) { r.RMSE = f64(2.5) },
			source: core.ScoreSourceRMSE,
			score:  -2.5,
		},
		{
			name:   "log_loss_negated",
			mutate: func(r *core.EvaluationRecord) { r.LogLoss = f64(0.3) },
			source: core.ScoreSourceLogLoss,
			score:  -0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rec("m", day0)
			tt.mutate(&r)

			got := PickBest([]core.EvaluationRecord{r})
			require.NotNil(t, got)
			assert.Equal(t, tt.source, got.Source)
			assert.InDelta(t, tt.score, got.Score, 1e-12)
			assert.NotEmpty(t, got.Detail)
		})
	}
}

func TestPickBest_AUCRecordBeatsRmseRecordRegardlessOfMagnitude(t *testing.T) {
	rmseRec := rec("regressor", day0)
	rmseRec.RMSE = f64(1.2)
	aucRec := rec("classifier", day0)
	aucRec.AUC = f64(0.77)

	got := PickBest([]core.EvaluationRecord{rmseRec, aucRec})
	require.NotNil(t, got)
	assert.Equal(t, "classifier", got.Record.ID)
	assert.Equal(t, 0.77, got.Score)
	assert.Equal(t, core.ScoreSourceAUC, got.Source)
}

func TestPickBest_LowerRmseOutranksHigherRmse(t *testing.T) {
	a := rec("tight", day0)
	a.RMSE = f64(2.5)
	b := rec("loose", day0)
	b.RMSE = f64(5.0)

	got := PickBest([]core.EvaluationRecord{b, a})
	require.NotNil(t, got)
	assert.Equal(t, "tight", got.Record.ID)
	assert.Equal(t, -2.5, got.Score)
}

func TestPickBest_UnrankableRecordsExcluded(t *testing.T) {
	empty := rec("empty", day0)
	nanOnly := rec("nan", day0)
	nanOnly.AUC = f64(math.NaN())
	nanOnly.RMSE = f64(math.Inf(1))
	// Accuracy/F1/precision/recall alone are not in the priority list.
	secondary := rec("secondary", day0)
	secondary.Accuracy = f64(0.99)
	secondary.F1 = f64(0.98)

	ranked := rec("ranked", day0)
	ranked.LogLoss = f64(0.4)

	got := PickBest([]core.EvaluationRecord{empty, nanOnly, secondary, ranked})
	require.NotNil(t, got)
	assert.Equal(t, "ranked", got.Record.ID)

	assert.Nil(t, PickBest([]core.EvaluationRecord{empty, nanOnly, secondary}))
}

func TestPickBest_NonFiniteFallsThroughToNextMetric(t *testing.T) {
	r := rec("m", day0)
	r.AUC = f64(math.NaN())
	r.RSquared = f64(0.8)

	got := PickBest([]core.EvaluationRecord{r})
	require.NotNil(t, got)
	assert.Equal(t, core.ScoreSourceRSquared, got.Source)
	assert.Equal(t, 0.8, got.Score)
}

func TestPickBest_TieBrokenByNewestTimestamp(t *testing.T) {
	older := rec("older", day0)
	older.AUC = f64(0.9)
	newer := rec("newer", day0.Add(time.Hour))
	newer.AUC = f64(0.9)

	got := PickBest([]core.EvaluationRecord{older, newer})
	require.NotNil(t, got)
	assert.Equal(t, "newer", got.Record.ID)
}
