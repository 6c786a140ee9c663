// Package pipeline implements the Pipeline Coordinator: the single
// entry point that turns a Query into a Response by running classify,
// enhance, retrieve, and rank in sequence, with independent per-stage
// timeouts and documented degraded-mode fallbacks. Grounded on the
// code-search engine's Engine.Search, which plays the same
// coordinating role over its own, narrower stage set.
package pipeline

import (
	"context"
	"time"

	"github.com/coderag/engine/internal/cache"
	"github.com/coderag/engine/internal/enhance"
	"github.com/coderag/engine/internal/errors"
	"github.com/coderag/engine/internal/explain"
	"github.com/coderag/engine/internal/intent"
	"github.com/coderag/engine/internal/rank"
	"github.com/coderag/engine/internal/ragquery"
	"github.com/coderag/engine/internal/retrieve"
	"github.com/coderag/engine/internal/telemetry"
	"github.com/coderag/engine/internal/weights"
)

// Default per-stage timeouts.
const (
	DefaultClassifyTimeout = 50 * time.Millisecond
	DefaultEnhanceTimeout  = 100 * time.Millisecond
	DefaultRetrieveTimeout = 2 * time.Second
	DefaultRankTimeout     = 500 * time.Millisecond
)

// Config bundles the coordinator's per-stage timeouts and retrieval
// expansion factor.
type Config struct {
	ClassifyTimeout time.Duration
	EnhanceTimeout  time.Duration
	RetrieveTimeout time.Duration
	RankTimeout     time.Duration
	ExpansionFactor int
}

func (c Config) withDefaults() Config {
	if c.ClassifyTimeout <= 0 {
		c.ClassifyTimeout = DefaultClassifyTimeout
	}
	if c.EnhanceTimeout <= 0 {
		c.EnhanceTimeout = DefaultEnhanceTimeout
	}
	if c.RetrieveTimeout <= 0 {
		c.RetrieveTimeout = DefaultRetrieveTimeout
	}
	if c.RankTimeout <= 0 {
		c.RankTimeout = DefaultRankTimeout
	}
	if c.ExpansionFactor <= 0 {
		c.ExpansionFactor = retrieve.DefaultExpansionFactor
	}
	return c
}

// Coordinator wires together every pipeline stage behind one Search
// call.
type Coordinator struct {
	cfg          Config
	orchestrator *retrieve.Orchestrator
	ranker       *rank.Engine
	weights      *weights.Store
	cache        *cache.Cache
	idSeq        func() string
	metrics      *telemetry.QueryMetrics
}

// Option configures optional Coordinator behavior.
type Option func(*Coordinator)

// WithMetrics attaches a query telemetry collector. When set, every
// completed search records its query type, result count and latency,
// as the code-search engine does for its own Search calls.
func WithMetrics(m *telemetry.QueryMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func NewCoordinator(cfg Config, orchestrator *retrieve.Orchestrator, ranker *rank.Engine, weightStore *weights.Store, resultCache *cache.Cache, idSeq func() string, opts ...Option) *Coordinator {
	if idSeq == nil {
		idSeq = func() string { return "" }
	}
	c := &Coordinator{
		cfg:          cfg.withDefaults(),
		orchestrator: orchestrator,
		ranker:       ranker,
		weights:      weightStore,
		cache:        resultCache,
		idSeq:        idSeq,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// recordMetrics records query telemetry if a collector is configured.
func (p *Coordinator) recordMetrics(q ragquery.Query, w ragquery.WeightVector, resultCount int, latency time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.Record(telemetry.QueryEvent{
		Query:       q.Text,
		QueryType:   classifyQueryType(q, w),
		ResultCount: resultCount,
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}

// classifyQueryType buckets a query as lexical, semantic or mixed from
// its BM25-only flag and the blended weight it ended up ranking with.
func classifyQueryType(q ragquery.Query, w ragquery.WeightVector) telemetry.QueryType {
	if q.BM25Only {
		return telemetry.QueryTypeLexical
	}
	if w[ragquery.FactorTextRelevance] > 0.6 {
		return telemetry.QueryTypeLexical
	}
	if w[ragquery.FactorSemanticSimilarity] > 0.6 {
		return telemetry.QueryTypeSemantic
	}
	return telemetry.QueryTypeMixed
}

// Search runs the full pipeline for q, returning a ranked, formatted
// Response. Cache hits short-circuit every later stage.
func (p *Coordinator) Search(ctx context.Context, q ragquery.Query) (ragquery.Response, error) {
	q = ragquery.NewQuery(q)
	if q.Text == "" {
		return ragquery.Response{}, errors.QueryError(errors.KindInvalidQuery, "query text is empty", nil)
	}

	fingerprint := cache.Fingerprint(q)

	if !q.DisableCache && p.cache != nil {
		if resp, ok := p.cache.Get(fingerprint); ok {
			return resp, nil
		}
	}

	runPipeline := func() (ragquery.Response, error) {
		return p.run(ctx, q, fingerprint)
	}

	var resp ragquery.Response
	var err error
	if !q.DisableCache && p.cache != nil {
		resp, err, _ = p.cache.Coalesce(fingerprint, runPipeline)
	} else {
		resp, err = runPipeline()
	}
	if err != nil {
		return ragquery.Response{}, err
	}

	if !q.DisableCache && p.cache != nil {
		p.cache.Put(fingerprint, resp)
	}
	return resp, nil
}

func (p *Coordinator) run(ctx context.Context, q ragquery.Query, fingerprint string) (ragquery.Response, error) {
	var timings ragquery.StageTimings
	start := time.Now()

	in := q.ExplicitIntent
	if in == "" || !in.Valid() {
		in = p.classify(ctx, q, &timings)
	}

	var eq ragquery.EnhancedQuery
	if q.BM25Only && q.CurrentFile == "" {
		eq = ragquery.EnhancedQuery{Variants: []string{q.Text}}
	} else {
		eq = p.enhance(ctx, q, in, &timings)
	}

	retrieveStart := time.Now()
	retrieveCtx, cancel := context.WithTimeout(ctx, p.cfg.RetrieveTimeout)
	candidates, err := p.orchestrator.Retrieve(retrieveCtx, eq, retrieve.Options{
		TopK:                q.MaxResults,
		ExpansionFactor:     p.cfg.ExpansionFactor,
		BM25Only:            q.BM25Only,
		IncludeDependencies: q.IncludeDependencies,
		RepositoryFilter:    q.RepositoryFilter,
	})
	cancel()
	timings.RetrieveMS = msSince(retrieveStart)
	if err != nil {
		if errors.IsKind(err, errors.KindNoResults) {
			p.recordMetrics(q, p.weightsFor(in), 0, time.Since(start))
			return ragquery.Response{
				QueryID:     p.idSeq(),
				Intent:      in,
				Fingerprint: fingerprint,
				Reason:      "no_results",
				Timings:     includeTimings(q, &timings),
			}, nil
		}
		return ragquery.Response{}, errors.QueryError(errors.KindBackendUnavailable, "retrieval failed: "+err.Error(), err)
	}

	weightVec := p.weightsFor(in)

	rankStart := time.Now()
	rankCtx, rankCancel := context.WithTimeout(ctx, p.cfg.RankTimeout)
	var matched [][]string
	ranked, err := p.rankWithDeadline(rankCtx, candidates, weightVec, q, &matched)
	rankCancel()
	timings.RankMS = msSince(rankStart)
	if err != nil {
		// Rank timeout or invariant failure: fall back to backend order
		// with no blended score.
		ranked = fallbackOrder(candidates)
		matched = make([][]string, len(ranked))
	}

	if len(ranked) > q.MaxResults {
		ranked = ranked[:q.MaxResults]
		matched = matched[:q.MaxResults]
	}

	resp := ragquery.Response{
		QueryID:     p.idSeq(),
		Intent:      in,
		Fingerprint: fingerprint,
		Results:     ranked,
	}

	if q.Detail == ragquery.DetailFull {
		resp.Explanations = make(map[string]string, len(ranked))
		for i, rr := range ranked {
			var names []string
			if i < len(matched) {
				names = matched[i]
			}
			resp.Explanations[rr.Result.ID] = explain.Explain(rr, weightVec, names, in)
		}
	}

	timings.TotalMS = msSince(start)
	resp.Timings = includeTimings(q, &timings)
	p.recordMetrics(q, weightVec, len(resp.Results), time.Since(start))
	return resp, nil
}

func (p *Coordinator) classify(ctx context.Context, q ragquery.Query, timings *ragquery.StageTimings) ragquery.Intent {
	start := time.Now()
	done := make(chan ragquery.Intent, 1)
	go func() { done <- intent.Classify(q.Text) }()

	select {
	case in := <-done:
		timings.ClassifyMS = msSince(start)
		return in
	case <-time.After(p.cfg.ClassifyTimeout):
		timings.ClassifyMS = msSince(start)
		return ragquery.IntentUnderstand
	case <-ctx.Done():
		timings.ClassifyMS = msSince(start)
		return ragquery.IntentUnderstand
	}
}

func (p *Coordinator) enhance(ctx context.Context, q ragquery.Query, in ragquery.Intent, timings *ragquery.StageTimings) ragquery.EnhancedQuery {
	start := time.Now()
	done := make(chan ragquery.EnhancedQuery, 1)
	go func() {
		done <- enhance.Enhance(q.Text, in, nil)
	}()

	select {
	case eq := <-done:
		timings.EnhanceMS = msSince(start)
		return eq
	case <-time.After(p.cfg.EnhanceTimeout):
		timings.EnhanceMS = msSince(start)
		return ragquery.EnhancedQuery{Variants: []string{q.Text}}
	case <-ctx.Done():
		timings.EnhanceMS = msSince(start)
		return ragquery.EnhancedQuery{Variants: []string{q.Text}}
	}
}

// rankWithDeadline runs the ranker on a goroutine so a slow (but
// finishing) call can still be abandoned at the deadline without
// blocking the caller past it.
func (p *Coordinator) rankWithDeadline(ctx context.Context, candidates []ragquery.RetrievalResult, w ragquery.WeightVector, q ragquery.Query, matchedOut *[][]string) ([]ragquery.RankedResult, error) {
	cc := rank.CurrentContext{
		FilePath: q.CurrentFile,
		Language: q.CurrentLanguage,
	}

	type result struct {
		ranked []ragquery.RankedResult
		err    error
	}
	done := make(chan result, 1)
	go func() {
		r, err := p.ranker.Rank(candidates, w, cc, q.Text, matchedOut)
		done <- result{ranked: r, err: err}
	}()

	select {
	case r := <-done:
		return r.ranked, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Coordinator) weightsFor(in ragquery.Intent) ragquery.WeightVector {
	if p.weights == nil {
		return weights.DefaultWeights()
	}
	return p.weights.WeightsFor(in)
}

// fallbackOrder wraps candidates in RetrievalResult order (the
// backend's own ranking) with a zero blended score, used when ranking
// itself fails or times out.
func fallbackOrder(candidates []ragquery.RetrievalResult) []ragquery.RankedResult {
	out := make([]ragquery.RankedResult, len(candidates))
	for i, c := range candidates {
		out[i] = ragquery.RankedResult{Result: c, TieBreak: i + 1}
	}
	return out
}

func includeTimings(q ragquery.Query, t *ragquery.StageTimings) *ragquery.StageTimings {
	if !q.IncludeTimings {
		return nil
	}
	return t
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
