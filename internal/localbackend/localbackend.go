// Package localbackend is a reference, in-process implementation of
// the search backend contract (retrieve.KeywordSearcher,
// retrieve.VectorSearcher, retrieve.SemanticSearcher), for tests and
// single-process deployments that don't want a separate backend
// service. It adapts the code-search engine's own storage layer (bleve
// for BM25, coder/hnsw for vector similarity), keeping both
// dependencies exercised even though the query pipeline's primary path
// talks to an external backend over HTTP.
package localbackend

import (
	"context"
	"sync"

	"github.com/coderag/engine/internal/errors"
	"github.com/coderag/engine/internal/ragquery"
	"github.com/coderag/engine/internal/store"
)

// Backend holds one corpus's worth of indexed content in memory: a
// bleve BM25 index, an hnsw vector index, and the metadata needed to
// turn a raw hit back into a full RetrievalResult.
type Backend struct {
	mu       sync.RWMutex
	bm25     *store.BleveBM25Index
	vectors  *store.HNSWStore
	metadata map[string]ragquery.RetrievalResult
}

// New creates an empty, in-memory backend. dimension is the vector
// dimension the embedding model produces; it must match every vector
// later added via IndexDocument.
func New(dimension int) (*Backend, error) {
	bm25, err := store.NewBleveBM25Index()
	if err != nil {
		return nil, err
	}
	vectors, err := store.NewHNSWStore(store.VectorStoreConfig{Dimensions: dimension})
	if err != nil {
		return nil, err
	}
	return &Backend{
		bm25:     bm25,
		vectors:  vectors,
		metadata: make(map[string]ragquery.RetrievalResult),
	}, nil
}

// IndexDocument adds one candidate's searchable content, optional
// embedding, and display metadata. vector may be nil if only keyword
// search should surface this document.
func (b *Backend) IndexDocument(ctx context.Context, result ragquery.RetrievalResult, vector []float32) error {
	if err := b.bm25.Index(ctx, []*store.Document{{ID: result.ID, Content: result.Snippet}}); err != nil {
		return err
	}
	if vector != nil {
		if err := b.vectors.Add(ctx, []string{result.ID}, [][]float32{vector}); err != nil {
			return err
		}
	}
	b.mu.Lock()
	b.metadata[result.ID] = result
	b.mu.Unlock()
	return nil
}

func (b *Backend) resolve(id string) (ragquery.RetrievalResult, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.metadata[id]
	return r, ok
}

// SearchKeyword implements retrieve.KeywordSearcher via the bleve BM25
// index. repositoryFilter is applied as a post-filter since the bleve
// mapping here indexes content only, not repository metadata.
func (b *Backend) SearchKeyword(ctx context.Context, query, repositoryFilter string, topK int) ([]ragquery.RetrievalResult, error) {
	hits, err := b.bm25.Search(ctx, query, topK)
	if err != nil {
		return nil, errors.QueryError(errors.KindBackendUnavailable, "local bm25 search failed: "+err.Error(), err)
	}
	out := make([]ragquery.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		r, ok := b.resolve(h.DocID)
		if !ok {
			continue
		}
		if repositoryFilter != "" && r.Repository != repositoryFilter {
			continue
		}
		r.KeywordScore = h.Score
		out = append(out, r)
	}
	return out, nil
}

// SearchVector implements retrieve.VectorSearcher via the hnsw index.
func (b *Backend) SearchVector(ctx context.Context, embedding []float64, topK int) ([]ragquery.RetrievalResult, error) {
	query := make([]float32, len(embedding))
	for i, v := range embedding {
		query[i] = float32(v)
	}
	hits, err := b.vectors.Search(ctx, query, topK)
	if err != nil {
		return nil, errors.QueryError(errors.KindBackendUnavailable, "local vector search failed: "+err.Error(), err)
	}
	out := make([]ragquery.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		r, ok := b.resolve(h.ID)
		if !ok {
			continue
		}
		score := float64(h.Score)
		r.VectorScore = &score
		out = append(out, r)
	}
	return out, nil
}

// SearchSemantic implements retrieve.SemanticSearcher as a keyword-mode
// fallback: this reference backend has no dedicated semantic-summary
// index, so it reuses BM25 over the query text, giving the orchestrator
// a non-empty semantic channel to fuse rather than failing the
// strategy outright.
func (b *Backend) SearchSemantic(ctx context.Context, query string, topK int) ([]ragquery.RetrievalResult, error) {
	results, err := b.SearchKeyword(ctx, query, "", topK)
	if err != nil {
		return nil, err
	}
	for i := range results {
		score := results[i].KeywordScore
		results[i].SemanticScore = &score
	}
	return results, nil
}

// Close releases the underlying bleve and hnsw resources.
func (b *Backend) Close() error {
	if err := b.bm25.Close(); err != nil {
		return err
	}
	return b.vectors.Close()
}
