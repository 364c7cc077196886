package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelyard/selector/pkg/registry"
)

func pipelineHandler(t *testing.T, records map[string][]registry.Record, calls *atomic.Int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		// Path is /models/<name>/evaluations.
		model := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/models/"), "/evaluations")

		recs, ok := records[model]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(recs)
	}
}

func TestFetchModel(t *testing.T) {
	r2 := 0.85
	rmse := 1.9
	records := map[string][]registry.Record{
		"demand-forecast": {
			{ID: "run-002", ModelName: "demand-forecast", Kind: registry.KindRegression, RSquared: &r2, RMSE: &rmse, TrainedAt: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)},
		},
	}

	srv := httptest.NewServer(pipelineHandler(t, records, nil))
	defer srv.Close()

	client := NewClient(DefaultConfig(srv.URL))
	got, err := client.FetchModel(context.Background(), "demand-forecast")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "run-002", got[0].ID)
	require.NotNil(t, got[0].RSquared)
	assert.Equal(t, 0.85, *got[0].RSquared)
}

func TestFetchModel_HTTPError(t *testing.T) {
	srv := httptest.NewServer(pipelineHandler(t, nil, nil))
	defer srv.Close()

	client := NewClient(DefaultConfig(srv.URL))
	_, err := client.FetchModel(context.Background(), "unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestFetchAll_MergesModels(t *testing.T) {
	auc := 0.91
	r2 := 0.85
	rmse := 1.9
	records := map[string][]registry.Record{
		"demand-forecast": {
			{ID: "run-002", ModelName: "demand-forecast", Kind: registry.KindRegression, RSquared: &r2, RMSE: &rmse},
		},
		"churn-classifier": {
			{ID: "run-003", ModelName: "churn-classifier", Kind: registry.KindBinary, AUC: &auc},
		},
	}

	srv := httptest.NewServer(pipelineHandler(t, records, nil))
	defer srv.Close()

	client := NewClient(DefaultConfig(srv.URL))
	got, err := client.FetchAll(context.Background(), []string{"demand-forecast", "churn-classifier"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFetchAll_PropagatesError(t *testing.T) {
	srv := httptest.NewServer(pipelineHandler(t, map[string][]registry.Record{
		"demand-forecast": {},
	}, nil))
	defer srv.Close()

	client := NewClient(DefaultConfig(srv.URL))
	_, err := client.FetchAll(context.Background(), []string{"demand-forecast", "missing"})
	assert.Error(t, err)
}

func TestBreakerOpensOnRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL)
	cfg.MaxRPS = 0 // keep the test fast
	client := NewClient(cfg)

	for i := 0; i < 10; i++ {
		// Distinct keys so singleflight does not collapse the calls.
		_, err := client.FetchModel(context.Background(), fmt.Sprintf("model-%d", i))
		require.Error(t, err)
	}

	assert.NotEqual(t, "closed", client.BreakerState().String())
}
