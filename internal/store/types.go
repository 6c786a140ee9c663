// Package store is a minimal, in-memory reference index used by
// internal/localbackend to stand in for the external keyword/vector
// backend during tests and single-process demos. It has no
// persistence: the index lives only as long as the process that built
// it, which is all a reference backend needs to be.
package store

import (
	"context"
	"fmt"
)

// Document is one unit of searchable text handed to the BM25 index.
type Document struct {
	ID      string
	Content string
}

// BM25Result is a single keyword match, scored by BM25.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// BM25Index provides in-memory keyword search using BM25 scoring.
type BM25Index interface {
	Index(ctx context.Context, docs []*Document) error
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)
	Close() error
}

// DefaultCodeStopWords are common keywords and generic identifier names
// that carry little signal in a code search index.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// VectorResult is a single nearest-neighbor match.
type VectorResult struct {
	ID       string
	Distance float32 // lower is more similar (0-2 for cosine)
	Score    float32 // normalized similarity (0-1)
}

// VectorStoreConfig configures the vector index.
type VectorStoreConfig struct {
	Dimensions int
	Metric     string // "cos" or "l2"; defaults to "cos"
	M          int    // HNSW max connections per layer
	EfSearch   int    // HNSW query-time search width
}

// DefaultVectorStoreConfig returns the HNSW parameters coder/hnsw
// recommends for a small, in-memory graph.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// VectorStore provides in-memory nearest-neighbor search using HNSW.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Close() error
}

// ErrDimensionMismatch indicates a vector arrived with the wrong
// dimensionality for the store it was added to or searched against.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
