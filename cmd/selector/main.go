package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/modelyard/selector/core"
	"github.com/modelyard/selector/picker"
	"github.com/modelyard/selector/pkg/fetch"
	"github.com/modelyard/selector/pkg/httpserver"
	"github.com/modelyard/selector/pkg/logging"
	"github.com/modelyard/selector/pkg/metrics"
	"github.com/modelyard/selector/pkg/registry"
	"github.com/modelyard/selector/pkg/tracing"
	"github.com/modelyard/selector/store/fs"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		healthcheck()
		return
	}

	port := getEnv("SELECTOR_PORT", "8080")
	logLevel := getEnv("LOG_LEVEL", "info")

	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}))

	logger, err := logging.NewLogger(logging.Config{
		Level:  logLevel,
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		log.Fatal("failed to create logger:", err)
	}
	defer logger.Sync()

	policy := loadPolicy()

	// Candidate registry: YAML file plus evaluations embedded in stored
	// artifact manifests, when a store directory is configured.
	reg, err := registry.NewLoader(getEnv("SELECTOR_REGISTRY", "registry.yaml")).Load()
	if err != nil {
		log.Fatal("failed to load registry:", err)
	}

	if storeDir := os.Getenv("SELECTOR_STORE_DIR"); storeDir != "" {
		store := fs.NewStore(storeDir)
		if err := store.LoadManifests(); err != nil {
			log.Fatal("failed to load artifact store:", err)
		}
		seeded := 0
		for _, manifest := range store.List() {
			if manifest.Evaluation != nil {
				reg.Records = append(reg.Records, *manifest.Evaluation)
				seeded++
			}
		}
		slogLogger.Info("seeded registry from artifact store",
			"dir", storeDir,
			"records", seeded)
	}

	var tracer *tracing.Tracer
	if endpoint := os.Getenv("JAEGER_ENDPOINT"); endpoint != "" {
		tracer, err = tracing.NewTracer(tracing.Config{
			ServiceName:    "selector",
			ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
			JaegerEndpoint: endpoint,
			Environment:    getEnv("ENVIRONMENT", "development"),
		})
		if err != nil {
			log.Fatal("failed to create tracer:", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tracer.Shutdown(ctx)
		}()
	}

	var fetcher *fetch.Client
	if pipelineURL := os.Getenv("METRICS_PIPELINE_URL"); pipelineURL != "" {
		cfg := fetch.DefaultConfig(pipelineURL)
		cfg.Timeout = getEnvDuration("METRICS_PIPELINE_TIMEOUT", "10s")
		fetcher = fetch.NewClient(cfg)
	}

	svc, err := picker.NewService(picker.Config{
		Policy:    policy,
		CacheSize: getEnvInt("SELECTOR_CACHE_SIZE", 256),
		CacheTTL:  getEnvDuration("SELECTOR_CACHE_TTL", "5m"),
		Logger:    logger,
		Metrics:   metrics.NewPrometheusMetrics(),
		Tracer:    tracer,
		Fetcher:   fetcher,
		Registry:  reg,
	})
	if err != nil {
		log.Fatal("failed to create picker service:", err)
	}

	server := httpserver.NewServer(port, slogLogger, svc)

	slogLogger.Info("starting selector service",
		"port", port,
		"log_level", logLevel,
		"registry_records", reg.TotalRecords(),
		"models", len(reg.ModelNames()))

	httpSrv := &http.Server{
		Addr:    ":" + port,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed:", err)
		}
	case sig := <-stop:
		slogLogger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			slogLogger.Error("shutdown failed", "error", err)
		}
	}
}

// policyFile is the YAML shape for policy overrides. Absent fields keep their
// defaults; pointer fields distinguish "not set" from zero.
type policyFile struct {
	MinRSquared                 *float64 `yaml:"min_r_squared"`
	MaxRmse                     *float64 `yaml:"max_rmse"`
	WeightRSquared              *float64 `yaml:"weight_r_squared"`
	WeightRmse                  *float64 `yaml:"weight_rmse"`
	MinScoreImprovementToSwitch *float64 `yaml:"min_score_improvement_to_switch"`
	PreferNewerWithin           string   `yaml:"prefer_newer_within"`
}

// loadPolicy builds the selection policy: defaults, then the optional YAML
// file named by SELECTOR_POLICY, then environment overrides.
func loadPolicy() core.SelectionPolicy {
	policy := core.DefaultPolicy()

	if path := os.Getenv("SELECTOR_POLICY"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatal("failed to read policy file:", err)
		}
		var pf policyFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			log.Fatal("failed to parse policy file:", err)
		}
		if pf.MinRSquared != nil {
			policy.MinRSquared = *pf.MinRSquared
		}
		if pf.MaxRmse != nil {
			policy.MaxRmse = *pf.MaxRmse
		}
		if pf.WeightRSquared != nil {
			policy.WeightRSquared = *pf.WeightRSquared
		}
		if pf.WeightRmse != nil {
			policy.WeightRmse = *pf.WeightRmse
		}
		if pf.MinScoreImprovementToSwitch != nil {
			policy.MinScoreImprovementToSwitch = *pf.MinScoreImprovementToSwitch
		}
		if pf.PreferNewerWithin != "" {
			if d, err := time.ParseDuration(pf.PreferNewerWithin); err == nil {
				policy.PreferNewerWithin = d
			}
		}
	}

	policy.MinRSquared = getEnvFloat("SELECTOR_MIN_R_SQUARED", policy.MinRSquared)
	policy.MaxRmse = getEnvFloat("SELECTOR_MAX_RMSE", policy.MaxRmse)
	policy.WeightRSquared = getEnvFloat("SELECTOR_WEIGHT_R_SQUARED", policy.WeightRSquared)
	policy.WeightRmse = getEnvFloat("SELECTOR_WEIGHT_RMSE", policy.WeightRmse)
	policy.MinScoreImprovementToSwitch = getEnvFloat("SELECTOR_MIN_IMPROVEMENT", policy.MinScoreImprovementToSwitch)
	policy.PreferNewerWithin = getEnvDurationValue("SELECTOR_PREFER_NEWER_WITHIN", policy.PreferNewerWithin)
	return policy
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(floatValue) {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvDurationValue(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
