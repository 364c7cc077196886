// Package fetch pulls evaluation records from the external metrics pipeline.
// The selection engines themselves never do I/O; this client assembles the
// candidate sets they consume.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/modelyard/selector/pkg/registry"
)

// Config holds fetch client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// MaxRPS caps requests per second against the pipeline; zero disables
	// the limiter.
	MaxRPS float64
	Burst  int
}

// DefaultConfig returns a default fetch configuration for a base URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
		MaxRPS:  20,
		Burst:   5,
	}
}

// Client fetches evaluation records over HTTP. Concurrent pulls for the same
// model are deduplicated, calls are rate limited, and a circuit breaker shields
// the pipeline when it starts failing.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	group      singleflight.Group
}

// NewClient creates a new metrics fetch client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.MaxRPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), burst)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "metrics-pipeline",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Open circuit if failure rate is > 50% and we have at least 5 requests
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		breaker:    breaker,
		limiter:    limiter,
	}
}

// FetchModel returns all evaluation records the pipeline holds for one model.
func (c *Client) FetchModel(ctx context.Context, model string) ([]registry.Record, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	result, err, _ := c.group.Do(model, func() (interface{}, error) {
		return c.breaker.Execute(func() (interface{}, error) {
			return c.fetch(ctx, model)
		})
	})
	if err != nil {
		return nil, err
	}

	return result.([]registry.Record), nil
}

func (c *Client) fetch(ctx context.Context, model string) ([]registry.Record, error) {
	u := fmt.Sprintf("%s/models/%s/evaluations", c.baseURL, url.PathEscape(model))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch evaluations for %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrics pipeline returned HTTP %d for %s", resp.StatusCode, model)
	}

	var records []registry.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode evaluations for %s: %w", model, err)
	}

	return records, nil
}

// FetchAll fans out per-model fetches and merges the results. The first fetch
// error cancels the remaining ones.
func (c *Client) FetchAll(ctx context.Context, models []string) ([]registry.Record, error) {
	g, gctx := errgroup.WithContext(ctx)

	results := make([][]registry.Record, len(models))
	for i, model := range models {
		i, model := i, model
		g.Go(func() error {
			records, err := c.FetchModel(gctx, model)
			if err != nil {
				return err
			}
			results[i] = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []registry.Record
	for _, records := range results {
		merged = append(merged, records...)
	}
	return merged, nil
}

// BreakerState reports the circuit breaker state for observability.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}
