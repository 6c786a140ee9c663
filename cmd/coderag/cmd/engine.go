package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no CGO

	"github.com/coderag/engine/internal/backend"
	"github.com/coderag/engine/internal/cache"
	"github.com/coderag/engine/internal/config"
	"github.com/coderag/engine/internal/embedclient"
	"github.com/coderag/engine/internal/feedback"
	"github.com/coderag/engine/internal/localbackend"
	"github.com/coderag/engine/internal/pipeline"
	"github.com/coderag/engine/internal/rank"
	"github.com/coderag/engine/internal/retrieve"
	"github.com/coderag/engine/internal/telemetry"
	"github.com/coderag/engine/internal/weights"
)

// engine bundles the constructed pipeline, the feedback collector, and
// everything that needs an orderly shutdown.
type engine struct {
	coordinator *pipeline.Coordinator
	feedback    *feedback.Collector
	closers     []func() error
}

func (e *engine) Close() error {
	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var queryCounter uint64

func nextQueryID() string {
	queryCounter++
	return fmt.Sprintf("q-%d-%d", time.Now().UnixNano(), queryCounter)
}

// buildEngine wires a Pipeline Coordinator and Feedback Collector from
// cfg in dependency order: backend/embedder capabilities, then cache,
// weights (which read factor vectors back through the cache), ranker,
// and finally the coordinator itself.
func buildEngine(cfg *config.Config, localDim int, logger *slog.Logger) (*engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	e := &engine{}

	var keyword retrieve.KeywordSearcher
	var vector retrieve.VectorSearcher
	var semantic retrieve.SemanticSearcher

	if localDim > 0 {
		lb, err := localbackend.New(localDim)
		if err != nil {
			return nil, fmt.Errorf("failed to build local backend: %w", err)
		}
		keyword, vector, semantic = lb, lb, lb
		e.closers = append(e.closers, lb.Close)
	} else {
		bc := backend.NewClient(backend.Config{
			Endpoint:    cfg.Backend.Endpoint,
			PoolSize:    cfg.Backend.PoolSize,
			CallTimeout: time.Duration(cfg.Backend.CallTimeoutMS) * time.Millisecond,
			RetryBase:   time.Duration(cfg.Backend.RetryBaseMS) * time.Millisecond,
			RetryFactor: cfg.Backend.RetryFactor,
			RetryJitter: cfg.Backend.RetryJitter,
			MaxAttempts: cfg.Backend.MaxAttempts,
			MaxPending:  cfg.Backend.MaxPending,
		})
		keyword, vector, semantic = bc, bc, bc
		e.closers = append(e.closers, func() error { bc.Close(); return nil })
	}

	embedder := embedclient.NewClient(embedclient.Config{
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		CacheSize: cfg.Embedding.CacheSize,
		CacheTTL:  time.Duration(cfg.Embedding.CacheTTLSeconds) * time.Second,
		Timeout:   time.Duration(cfg.Embedding.TimeoutMS) * time.Millisecond,
	})

	orchestrator := retrieve.NewOrchestrator(retrieve.Capabilities{
		Keyword:  keyword,
		Vector:   vector,
		Semantic: semantic,
		Embedder: embedder,
	})

	resultCache := cache.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLSeconds)*time.Second)

	weightStore := weights.NewStore(resultCache.Lookup)

	ranker := rank.NewEngine(rank.Options{
		SnippetScanBytes: cfg.PatternMatch.SnippetScanBytes,
	})

	var coordinatorOpts []pipeline.Option
	if cfg.Telemetry.Enabled {
		metrics, closeMetrics, err := buildMetrics(cfg)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, closeMetrics)
		coordinatorOpts = append(coordinatorOpts, pipeline.WithMetrics(metrics))
	}

	e.coordinator = pipeline.NewCoordinator(pipeline.Config{
		ClassifyTimeout: time.Duration(cfg.Timeouts.ClassifyMS) * time.Millisecond,
		EnhanceTimeout:  time.Duration(cfg.Timeouts.EnhanceMS) * time.Millisecond,
		RetrieveTimeout: time.Duration(cfg.Timeouts.RetrieveMS) * time.Millisecond,
		RankTimeout:     time.Duration(cfg.Timeouts.RankMS) * time.Millisecond,
		ExpansionFactor: cfg.Retrieval.ExpansionFactor,
	}, orchestrator, ranker, weightStore, resultCache, nextQueryID, coordinatorOpts...)

	sink, err := buildSink(cfg)
	if err != nil {
		return nil, err
	}
	if closer, ok := sink.(interface{ Close() error }); ok {
		e.closers = append(e.closers, closer.Close)
	}

	e.feedback = feedback.NewCollector(sink, weightStore, cfg.Feedback.BufferCapacity, logger)

	return e, nil
}

func buildSink(cfg *config.Config) (feedback.Sink, error) {
	switch cfg.Feedback.Sink {
	case "sqlite":
		return feedback.NewSQLiteSink(cfg.Feedback.Path)
	default:
		return feedback.NewFileSink(cfg.Feedback.Path, feedback.DefaultMaxFileSizeMB, feedback.DefaultMaxFiles)
	}
}

// buildMetrics opens a dedicated SQLite database for query telemetry
// and returns a collector backed by it, plus a closer that flushes the
// in-memory aggregates and closes the database.
func buildMetrics(cfg *config.Config) (*telemetry.QueryMetrics, func() error, error) {
	db, err := sql.Open("sqlite", cfg.Telemetry.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}
	if err := telemetry.InitTelemetrySchema(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize telemetry schema: %w", err)
	}
	store, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to build telemetry store: %w", err)
	}
	metrics := telemetry.NewQueryMetrics(store)
	return metrics, func() error {
		if err := metrics.Close(); err != nil {
			db.Close()
			return err
		}
		return db.Close()
	}, nil
}
