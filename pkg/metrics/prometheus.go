package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics
type PrometheusMetrics struct {
	// Selection metrics
	SelectionsTotal  *prometheus.CounterVec
	DecisionLatency  *prometheus.HistogramVec
	CandidatePoolLen *prometheus.HistogramVec

	// Gate metrics
	GateRejectionsTotal *prometheus.CounterVec

	// Stability metrics
	IncumbentHeldTotal    prometheus.Counter
	ChampionSwitchesTotal prometheus.Counter
	RecencyOverridesTotal prometheus.Counter

	// Cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Pipeline fetch metrics
	FetchesTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		SelectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selector_selections_total",
				Help: "Total number of selection calls",
			},
			[]string{"strategy", "outcome"},
		),

		DecisionLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "selector_decision_latency_seconds",
				Help:    "Selection decision latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),

		CandidatePoolLen: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "selector_candidate_pool_size",
				Help:    "Number of candidates considered per selection call",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"strategy"},
		),

		GateRejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selector_gate_rejections_total",
				Help: "Total number of candidates rejected by quality gates",
			},
			[]string{"model"},
		),

		IncumbentHeldTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "selector_incumbent_held_total",
				Help: "Total number of selections where the incumbent was held",
			},
		),

		ChampionSwitchesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "selector_champion_switches_total",
				Help: "Total number of champion switches",
			},
		),

		RecencyOverridesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "selector_recency_overrides_total",
				Help: "Total number of near-tie recency overrides",
			},
		),

		CacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "selector_cache_hits_total",
				Help: "Total number of decision cache hits",
			},
		),

		CacheMissesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "selector_cache_misses_total",
				Help: "Total number of decision cache misses",
			},
		),

		FetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selector_pipeline_fetches_total",
				Help: "Total number of metrics pipeline fetches",
			},
			[]string{"status"},
		),
	}
}

// RecordSelection records a completed selection call
func (m *PrometheusMetrics) RecordSelection(strategy, outcome string, candidates int, duration time.Duration) {
	m.SelectionsTotal.WithLabelValues(strategy, outcome).Inc()
	m.DecisionLatency.WithLabelValues(strategy).Observe(duration.Seconds())
	m.CandidatePoolLen.WithLabelValues(strategy).Observe(float64(candidates))
}

// RecordGateRejections records candidates dropped by the quality gates
func (m *PrometheusMetrics) RecordGateRejections(model string, count int) {
	if count > 0 {
		m.GateRejectionsTotal.WithLabelValues(model).Add(float64(count))
	}
}

// RecordCache records a decision cache lookup
func (m *PrometheusMetrics) RecordCache(hit bool) {
	if hit {
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
}

// RecordFetch records a metrics pipeline fetch
func (m *PrometheusMetrics) RecordFetch(status string) {
	m.FetchesTotal.WithLabelValues(status).Inc()
}
