// Package retrieve implements the Retrieval Orchestrator: it runs up to
// four retrieval strategies concurrently against the search backend and
// fuses their ranked lists with Reciprocal Rank Fusion. Concurrency is
// golang.org/x/sync/errgroup-based fan-out/fan-in, the same shape the
// code-search engine uses for its BM25+vector parallel search.
package retrieve

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/coderag/engine/internal/errors"
	"github.com/coderag/engine/internal/ragquery"
	"golang.org/x/sync/errgroup"
)

const (
	strategyKeyword    = "keyword"
	strategyVector     = "vector"
	strategySemantic   = "semantic"
	strategyDependency = "dependency"

	// DefaultExpansionFactor bounds the fused candidate list to
	// top_k * expansion_factor.
	DefaultExpansionFactor = 3

	// DefaultDependencyNames is the default number of top function/class
	// names followed up on for the dependency-expansion strategy.
	DefaultDependencyNames = 3
)

// KeywordSearcher is the backend's keyword (BM25) search primitive.
type KeywordSearcher interface {
	SearchKeyword(ctx context.Context, query, repositoryFilter string, topK int) ([]ragquery.RetrievalResult, error)
}

// VectorSearcher is the backend's vector search primitive.
type VectorSearcher interface {
	SearchVector(ctx context.Context, embedding []float64, topK int) ([]ragquery.RetrievalResult, error)
}

// SemanticSearcher is the backend's semantic search primitive. A
// backend that doesn't support it should return errors.KindNoResults
// (or simply not be wired in) so the orchestrator falls back silently.
type SemanticSearcher interface {
	SearchSemantic(ctx context.Context, query string, topK int) ([]ragquery.RetrievalResult, error)
}

// Embedder produces a query embedding, used to drive vector search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Capabilities is the optional-component set the orchestrator is
// constructed with; an absent capability disables the corresponding
// strategy cleanly rather than failing the request.
type Capabilities struct {
	Keyword  KeywordSearcher
	Vector   VectorSearcher
	Semantic SemanticSearcher
	Embedder Embedder
}

// Options configures a single retrieve() call.
type Options struct {
	TopK               int
	ExpansionFactor    int
	BM25Only           bool
	IncludeDependencies bool
	RepositoryFilter   string
	DependencyNameCount int
}

// Orchestrator runs retrieval strategies concurrently and fuses them.
type Orchestrator struct {
	caps Capabilities
}

func NewOrchestrator(caps Capabilities) *Orchestrator {
	return &Orchestrator{caps: caps}
}

// Retrieve runs every applicable strategy against eq's variants,
// merging strategy results with RRF. It returns errors.KindNoResults
// (via EngineError, not a hard failure) if every strategy failed or
// returned nothing.
func (o *Orchestrator) Retrieve(ctx context.Context, eq ragquery.EnhancedQuery, opts Options) ([]ragquery.RetrievalResult, error) {
	if opts.ExpansionFactor <= 0 {
		opts.ExpansionFactor = DefaultExpansionFactor
	}
	if opts.DependencyNameCount <= 0 {
		opts.DependencyNameCount = DefaultDependencyNames
	}
	if len(eq.Variants) == 0 {
		return nil, errors.QueryError(errors.KindInvalidQuery, "enhanced query has no variants", nil)
	}
	originalText := eq.Variants[0]

	var mu sync.Mutex
	hits := make(map[string][]strategyHit)
	var anyStrategySucceeded bool

	record := func(strategy string, results []ragquery.RetrievalResult) {
		mu.Lock()
		defer mu.Unlock()
		for i, r := range results {
			hits[strategy] = append(hits[strategy], strategyHit{strategy: strategy, rank: i + 1, result: r})
		}
		if len(results) > 0 {
			anyStrategySucceeded = true
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if o.caps.Keyword != nil {
		g.Go(func() error {
			results, err := o.caps.Keyword.SearchKeyword(gctx, originalText, opts.RepositoryFilter, opts.TopK*2)
			if err != nil {
				// A failing strategy is skipped, never fatal on its
				// own; the error is dropped without being logged.
				return nil
			}
			record(strategyKeyword, results)
			return nil
		})
	}

	if !opts.BM25Only && o.caps.Vector != nil && o.caps.Embedder != nil {
		for _, variant := range eq.Variants {
			variant := variant
			g.Go(func() error {
				embedding, err := o.caps.Embedder.Embed(gctx, variant)
				if err != nil {
					return nil
				}
				results, err := o.caps.Vector.SearchVector(gctx, embedding, opts.TopK)
				if err != nil {
					return nil
				}
				record(strategyVector, results)
				return nil
			})
		}
	}

	if o.caps.Semantic != nil {
		g.Go(func() error {
			results, err := o.caps.Semantic.SearchSemantic(gctx, originalText, opts.TopK)
			if err != nil {
				// Unsupported/failed semantic mode falls back silently
				// to relying on the keyword channel alone.
				return nil
			}
			record(strategySemantic, results)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := fuse(hits)

	if opts.IncludeDependencies && o.caps.Keyword != nil && len(merged) > 0 {
		names := topDependencyNames(merged, opts.DependencyNameCount)
		if len(names) > 0 {
			depQuery := strings.Join(names, " ")
			depResults, err := o.caps.Keyword.SearchKeyword(ctx, depQuery, opts.RepositoryFilter, opts.TopK*2)
			if err == nil && len(depResults) > 0 {
				depHits := make(map[string][]strategyHit, 1)
				for i, r := range depResults {
					depHits[strategyDependency] = append(depHits[strategyDependency], strategyHit{strategy: strategyDependency, rank: i + 1, result: r})
				}
				for k, v := range depHits {
					hits[k] = v
				}
				merged = fuse(hits)
				anyStrategySucceeded = true
			}
		}
	}

	merged = dedupByID(merged)

	if !anyStrategySucceeded || len(merged) == 0 {
		return nil, errors.QueryError(errors.KindNoResults, "no retrieval strategy returned results", nil)
	}

	limit := opts.TopK * opts.ExpansionFactor
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	return merged, nil
}

func dedupByID(results []ragquery.RetrievalResult) []ragquery.RetrievalResult {
	seen := make(map[string]bool, len(results))
	out := make([]ragquery.RetrievalResult, 0, len(results))
	for _, r := range results {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

// topDependencyNames collects the top M distinct function/class names
// from the already-fused candidate list, in descending fusion order.
func topDependencyNames(merged []ragquery.RetrievalResult, m int) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range merged {
		name := r.FunctionName
		if name == "" {
			name = r.ClassName
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
		if len(names) >= m {
			break
		}
	}
	sort.Strings(names) // stable, deterministic follow-up query
	return names
}
