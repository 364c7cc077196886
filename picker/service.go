// Package picker wires the selection engines to the surrounding
// infrastructure: the evaluation registry, the metrics pipeline fetcher, the
// incumbent champion per model, and a decision cache.
package picker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/modelyard/selector/core"
	"github.com/modelyard/selector/pkg/fetch"
	"github.com/modelyard/selector/pkg/logging"
	"github.com/modelyard/selector/pkg/metrics"
	"github.com/modelyard/selector/pkg/registry"
	"github.com/modelyard/selector/pkg/tracing"
	"github.com/modelyard/selector/selection"
)

const (
	StrategyComposite = "composite"
	StrategyPriority  = "priority"
)

// Config holds the service configuration and its collaborators. Logger and
// Metrics are required; Tracer, Fetcher, and Registry are optional.
type Config struct {
	Policy    core.SelectionPolicy
	CacheSize int
	CacheTTL  time.Duration

	Logger   *logging.Logger
	Metrics  *metrics.PrometheusMetrics
	Tracer   *tracing.Tracer
	Fetcher  *fetch.Client
	Registry *registry.Registry
}

// Service runs selection decisions on behalf of callers and tracks the
// incumbent champion per model name between calls.
type Service struct {
	policy  core.SelectionPolicy
	logger  *logging.Logger
	metrics *metrics.PrometheusMetrics
	tracer  *tracing.Tracer
	fetcher *fetch.Client

	regMu    sync.RWMutex
	registry *registry.Registry

	champMu   sync.RWMutex
	champions map[string]core.RegressionSnapshot

	cache    *lru.Cache[string, cacheEntry]
	cacheTTL time.Duration
}

type cacheEntry struct {
	winner   *core.RegressionSnapshot
	storedAt time.Time
}

// NewService creates a new picker service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Metrics == nil {
		return nil, fmt.Errorf("metrics are required")
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, cacheEntry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision cache: %w", err)
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	reg := cfg.Registry
	if reg == nil {
		reg = &registry.Registry{}
	}

	return &Service{
		policy:    cfg.Policy,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
		fetcher:   cfg.Fetcher,
		registry:  reg,
		champions: make(map[string]core.RegressionSnapshot),
		cache:     cache,
		cacheTTL:  cacheTTL,
	}, nil
}

// SelectChampion runs the quality-gated composite scorer over the given
// regression snapshots, using the tracked incumbent for the model as the
// stability reference. A nil result means no candidate survived the gates.
func (s *Service) SelectChampion(ctx context.Context, model string, candidates []core.RegressionSnapshot) *core.RegressionSnapshot {
	start := time.Now()

	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.StartSelectionSpan(ctx, StrategyComposite, model, len(candidates))
		defer span.End()
	}

	incumbent := s.incumbent(model)

	key := decisionKey(model, candidates, s.policy, incumbent)
	if entry, ok := s.cache.Get(key); ok && time.Since(entry.storedAt) < s.cacheTTL {
		s.metrics.RecordCache(true)
		s.logger.LogCacheOperation(ctx, "champion", true, "")
		return copySnapshot(entry.winner)
	}
	s.metrics.RecordCache(false)

	rejected := 0
	for _, c := range candidates {
		if !selection.PassesGates(c, s.policy) {
			rejected++
		}
	}
	s.metrics.RecordGateRejections(model, rejected)

	winner := selection.ChooseBest(candidates, s.policy, incumbent)

	duration := time.Since(start)
	switch {
	case winner == nil:
		s.metrics.RecordSelection(StrategyComposite, "none", len(candidates), duration)
		s.logger.LogNoWinner(ctx, StrategyComposite, model, len(candidates), "")
	case incumbent != nil && winner.ID == incumbent.ID:
		s.metrics.IncumbentHeldTotal.Inc()
		s.metrics.RecordSelection(StrategyComposite, "held", len(candidates), duration)
		s.logger.LogIncumbentHeld(ctx, model, incumbent.ID, s.policy.MinScoreImprovementToSwitch, "")
	default:
		if incumbent != nil {
			s.metrics.ChampionSwitchesTotal.Inc()
		}
		s.metrics.RecordSelection(StrategyComposite, "winner", len(candidates), duration)
		s.logger.LogSelection(ctx, StrategyComposite, model, winner.ID, winner.RSquared, len(candidates), duration, "")
	}

	if winner != nil {
		if span != nil {
			tracing.RecordWinner(span, winner.ID, winner.RSquared)
		}
		s.champMu.Lock()
		s.champions[model] = *winner
		s.champMu.Unlock()
	}

	s.cache.Add(key, cacheEntry{winner: copySnapshot(winner), storedAt: time.Now()})

	return winner
}

// RankRecords runs the metric-priority ranker over heterogeneous evaluation
// records. A nil result means no record exposed a usable metric.
func (s *Service) RankRecords(ctx context.Context, records []core.EvaluationRecord) *core.RankingOutcome {
	start := time.Now()

	outcome := selection.PickBest(records)

	duration := time.Since(start)
	if outcome == nil {
		s.metrics.RecordSelection(StrategyPriority, "none", len(records), duration)
		s.logger.LogNoWinner(ctx, StrategyPriority, "", len(records), "")
	} else {
		s.metrics.RecordSelection(StrategyPriority, "winner", len(records), duration)
		s.logger.LogSelection(ctx, StrategyPriority, outcome.Record.ModelName, outcome.Record.ID, outcome.Score, len(records), duration, "")
	}

	return outcome
}

// SelectChampionFromRegistry assembles the candidate snapshots for a model
// from the in-memory registry and selects a champion.
func (s *Service) SelectChampionFromRegistry(ctx context.Context, model string) *core.RegressionSnapshot {
	s.regMu.RLock()
	candidates := s.registry.Snapshots(model)
	s.regMu.RUnlock()

	return s.SelectChampion(ctx, model, candidates)
}

// Refresh pulls fresh evaluation records for the given models from the
// metrics pipeline and replaces the registry's records for those models.
func (s *Service) Refresh(ctx context.Context, models []string) error {
	if s.fetcher == nil {
		return fmt.Errorf("no metrics pipeline configured")
	}

	start := time.Now()
	fetched, err := s.fetcher.FetchAll(ctx, models)
	if err != nil {
		s.metrics.RecordFetch("error")
		return fmt.Errorf("pipeline refresh failed: %w", err)
	}
	s.metrics.RecordFetch("ok")
	s.logger.LogFetch(ctx, fmt.Sprintf("%d models", len(models)), len(fetched), "ok", time.Since(start), "")

	refreshed := make(map[string]bool, len(models))
	for _, m := range models {
		refreshed[m] = true
	}

	s.regMu.Lock()
	defer s.regMu.Unlock()

	kept := s.registry.Records[:0]
	for _, rec := range s.registry.Records {
		if !refreshed[rec.ModelName] {
			kept = append(kept, rec)
		}
	}
	s.registry.Records = append(kept, fetched...)

	return nil
}

// Champion returns the tracked incumbent for a model, if any.
func (s *Service) Champion(model string) (core.RegressionSnapshot, bool) {
	s.champMu.RLock()
	defer s.champMu.RUnlock()
	snap, ok := s.champions[model]
	return snap, ok
}

// SetChampion seeds the incumbent for a model, e.g. from persisted state.
func (s *Service) SetChampion(model string, snap core.RegressionSnapshot) {
	s.champMu.Lock()
	defer s.champMu.Unlock()
	s.champions[model] = snap
}

// Policy returns the selection policy in use.
func (s *Service) Policy() core.SelectionPolicy {
	return s.policy
}

func (s *Service) incumbent(model string) *core.RegressionSnapshot {
	s.champMu.RLock()
	defer s.champMu.RUnlock()
	if snap, ok := s.champions[model]; ok {
		return &snap
	}
	return nil
}

func copySnapshot(s *core.RegressionSnapshot) *core.RegressionSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// decisionKey digests the full decision input so an unchanged candidate pool
// maps to the same cache entry.
func decisionKey(model string, candidates []core.RegressionSnapshot, policy core.SelectionPolicy, incumbent *core.RegressionSnapshot) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%v|%v|%v|%v|%v|%v\n", model,
		policy.MinRSquared, policy.MaxRmse,
		policy.WeightRSquared, policy.WeightRmse,
		policy.MinScoreImprovementToSwitch, policy.PreferNewerWithin)
	if incumbent != nil {
		fmt.Fprintf(h, "incumbent:%s|%v|%v|%d\n", incumbent.ID, incumbent.RSquared, incumbent.RMSE, incumbent.TrainedAt.UnixNano())
	}
	for _, c := range candidates {
		fmt.Fprintf(h, "%s|%v|%v|%d\n", c.ID, c.RSquared, c.RMSE, c.TrainedAt.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}
