package retrieve

import (
	"context"
	"testing"

	"github.com/coderag/engine/internal/ragquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeyword struct {
	results []ragquery.RetrievalResult
	err     error
}

func (f *fakeKeyword) SearchKeyword(_ context.Context, _, _ string, _ int) ([]ragquery.RetrievalResult, error) {
	return f.results, f.err
}

type fakeVector struct {
	results []ragquery.RetrievalResult
	err     error
}

func (f *fakeVector) SearchVector(_ context.Context, _ []float64, _ int) ([]ragquery.RetrievalResult, error) {
	return f.results, f.err
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return []float64{0.1, 0.2}, nil
}

func TestOrchestrator_KeywordOnly(t *testing.T) {
	kw := &fakeKeyword{results: []ragquery.RetrievalResult{{ID: "a"}, {ID: "b"}}}
	o := NewOrchestrator(Capabilities{Keyword: kw})
	eq := ragquery.EnhancedQuery{Variants: []string{"search"}}
	out, err := o.Retrieve(context.Background(), eq, Options{TopK: 10, BM25Only: true})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestOrchestrator_NoResultsWhenAllStrategiesEmpty(t *testing.T) {
	kw := &fakeKeyword{results: nil}
	o := NewOrchestrator(Capabilities{Keyword: kw})
	eq := ragquery.EnhancedQuery{Variants: []string{"search"}}
	_, err := o.Retrieve(context.Background(), eq, Options{TopK: 10, BM25Only: true})
	require.Error(t, err)
}

func TestOrchestrator_PartialFailureStillSucceeds(t *testing.T) {
	kw := &fakeKeyword{results: []ragquery.RetrievalResult{{ID: "a"}}}
	vec := &fakeVector{err: assertError{}}
	o := NewOrchestrator(Capabilities{Keyword: kw, Vector: vec, Embedder: fakeEmbedder{}})
	eq := ragquery.EnhancedQuery{Variants: []string{"search"}}
	out, err := o.Retrieve(context.Background(), eq, Options{TopK: 10})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestFuse_RRFMonotonicity(t *testing.T) {
	// Document "B" ranks higher once an extra strategy places it at
	// rank 1; its fused rank must not get worse.
	before := fuse(map[string][]strategyHit{
		strategyKeyword: {
			{rank: 1, result: ragquery.RetrievalResult{ID: "A"}},
			{rank: 2, result: ragquery.RetrievalResult{ID: "B"}},
		},
	})
	after := fuse(map[string][]strategyHit{
		strategyKeyword: {
			{rank: 1, result: ragquery.RetrievalResult{ID: "A"}},
			{rank: 2, result: ragquery.RetrievalResult{ID: "B"}},
		},
		strategyVector: {
			{rank: 1, result: ragquery.RetrievalResult{ID: "B"}},
		},
	})

	posBefore := indexOf(before, "B")
	posAfter := indexOf(after, "B")
	assert.LessOrEqual(t, posAfter, posBefore)
}

func indexOf(results []ragquery.RetrievalResult, id string) int {
	for i, r := range results {
		if r.ID == id {
			return i
		}
	}
	return -1
}
