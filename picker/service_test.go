package picker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelyard/selector/core"
	"github.com/modelyard/selector/pkg/fetch"
	"github.com/modelyard/selector/pkg/logging"
	"github.com/modelyard/selector/pkg/metrics"
	"github.com/modelyard/selector/pkg/registry"
)

// promauto registers against the default registerer, so the metrics instance
// is shared across all tests in the package.
var testMetrics = metrics.NewPrometheusMetrics()

var day0 = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(logging.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return logger
}

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	cfg.Logger = testLogger(t)
	cfg.Metrics = testMetrics
	if cfg.Policy == (core.SelectionPolicy{}) {
		cfg.Policy = core.DefaultPolicy()
	}
	svc, err := NewService(cfg)
	require.NoError(t, err)
	return svc
}

func snap(id string, r2, rmse float64, trainedAt time.Time) core.RegressionSnapshot {
	return core.RegressionSnapshot{ID: id, ModelName: "demand-forecast", TrainedAt: trainedAt, RSquared: r2, RMSE: rmse}
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(Config{Metrics: testMetrics})
	assert.Error(t, err)

	_, err = NewService(Config{Logger: testLogger(t)})
	assert.Error(t, err)
}

func TestSelectChampion_TracksIncumbent(t *testing.T) {
	svc := newTestService(t, Config{})

	candidates := []core.RegressionSnapshot{
		snap("c1", 0.80, 3.0, day0),
		snap("c2", 0.82, 2.0, day0),
	}

	winner := svc.SelectChampion(context.Background(), "demand-forecast", candidates)
	require.NotNil(t, winner)
	assert.Equal(t, "c2", winner.ID)

	champ, ok := svc.Champion("demand-forecast")
	require.True(t, ok)
	assert.Equal(t, "c2", champ.ID)

	_, ok = svc.Champion("other-model")
	assert.False(t, ok)
}

func TestSelectChampion_HoldsSeededIncumbent(t *testing.T) {
	policy := core.DefaultPolicy()
	policy.MinScoreImprovementToSwitch = 0.5
	svc := newTestService(t, Config{Policy: policy})

	incumbent := snap("c1", 0.80, 3.0, day0)
	svc.SetChampion("demand-forecast", incumbent)

	winner := svc.SelectChampion(context.Background(), "demand-forecast", []core.RegressionSnapshot{
		incumbent,
		snap("c2", 0.82, 2.0, day0),
	})
	require.NotNil(t, winner)
	assert.Equal(t, "c1", winner.ID)
}

func TestSelectChampion_NoWinner(t *testing.T) {
	policy := core.DefaultPolicy()
	policy.MinRSquared = 0.9
	svc := newTestService(t, Config{Policy: policy})

	winner := svc.SelectChampion(context.Background(), "demand-forecast", []core.RegressionSnapshot{
		snap("weak", 0.4, 3.0, day0),
	})
	assert.Nil(t, winner)

	_, ok := svc.Champion("demand-forecast")
	assert.False(t, ok)
}

func TestSelectChampion_DecisionCache(t *testing.T) {
	svc := newTestService(t, Config{})

	candidates := []core.RegressionSnapshot{
		snap("c1", 0.80, 3.0, day0),
		snap("c2", 0.82, 2.0, day0),
	}

	// First call establishes the champion; the second recomputes with the new
	// incumbent; the third repeats the second's inputs exactly and is served
	// from cache.
	first := svc.SelectChampion(context.Background(), "demand-forecast", candidates)
	require.NotNil(t, first)
	second := svc.SelectChampion(context.Background(), "demand-forecast", candidates)
	require.NotNil(t, second)

	hitsBefore := testutil.ToFloat64(testMetrics.CacheHitsTotal)
	third := svc.SelectChampion(context.Background(), "demand-forecast", candidates)
	require.NotNil(t, third)
	assert.Equal(t, second.ID, third.ID)
	assert.Equal(t, hitsBefore+1, testutil.ToFloat64(testMetrics.CacheHitsTotal))
}

func TestRankRecords(t *testing.T) {
	svc := newTestService(t, Config{})

	auc := 0.77
	rmse := 1.2
	records := []core.EvaluationRecord{
		{ID: "reg", ModelName: "demand-forecast", TrainedAt: day0, RMSE: &rmse},
		{ID: "cls", ModelName: "churn-classifier", TrainedAt: day0, AUC: &auc},
	}

	outcome := svc.RankRecords(context.Background(), records)
	require.NotNil(t, outcome)
	assert.Equal(t, "cls", outcome.Record.ID)
	assert.Equal(t, core.ScoreSourceAUC, outcome.Source)

	assert.Nil(t, svc.RankRecords(context.Background(), nil))
}

func TestSelectChampionFromRegistry(t *testing.T) {
	r2a, rmseA := 0.82, 2.1
	r2b, rmseB := 0.85, 1.9
	auc := 0.91
	reg := &registry.Registry{Records: []registry.Record{
		{ID: "run-001", ModelName: "demand-forecast", Kind: registry.KindRegression, TrainedAt: day0, RSquared: &r2a, RMSE: &rmseA},
		{ID: "run-002", ModelName: "demand-forecast", Kind: registry.KindRegression, TrainedAt: day0.Add(24 * time.Hour), RSquared: &r2b, RMSE: &rmseB},
		{ID: "run-003", ModelName: "churn-classifier", Kind: registry.KindBinary, TrainedAt: day0, AUC: &auc},
	}}

	svc := newTestService(t, Config{Registry: reg})

	winner := svc.SelectChampionFromRegistry(context.Background(), "demand-forecast")
	require.NotNil(t, winner)
	assert.Equal(t, "run-002", winner.ID)

	// Classification-only model has no regression snapshots to choose from.
	assert.Nil(t, svc.SelectChampionFromRegistry(context.Background(), "churn-classifier"))
}

func TestRefresh(t *testing.T) {
	r2, rmse := 0.9, 1.2
	fresh := []registry.Record{
		{ID: "run-new", ModelName: "demand-forecast", Kind: registry.KindRegression, TrainedAt: day0.Add(48 * time.Hour), RSquared: &r2, RMSE: &rmse},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(fresh)
	}))
	defer srv.Close()

	stale := 0.5
	reg := &registry.Registry{Records: []registry.Record{
		{ID: "run-old", ModelName: "demand-forecast", Kind: registry.KindRegression, TrainedAt: day0, RSquared: &stale, RMSE: &rmse},
	}}

	svc := newTestService(t, Config{
		Registry: reg,
		Fetcher:  fetch.NewClient(fetch.DefaultConfig(srv.URL)),
	})

	require.NoError(t, svc.Refresh(context.Background(), []string{"demand-forecast"}))

	winner := svc.SelectChampionFromRegistry(context.Background(), "demand-forecast")
	require.NotNil(t, winner)
	assert.Equal(t, "run-new", winner.ID)
}

func TestRefresh_WithoutFetcher(t *testing.T) {
	svc := newTestService(t, Config{})
	assert.Error(t, svc.Refresh(context.Background(), []string{"demand-forecast"}))
}
