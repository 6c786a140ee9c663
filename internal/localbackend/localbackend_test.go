package localbackend

import (
	"context"
	"testing"

	"github.com/coderag/engine/internal/ragquery"
	"github.com/stretchr/testify/require"
)

func TestBackend_KeywordSearchFindsIndexedDocument(t *testing.T) {
	b, err := New(4)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.IndexDocument(ctx, ragquery.RetrievalResult{
		ID: "doc1", Repository: "repo-a", Snippet: "func parseConfig() error { return nil }",
	}, nil))

	results, err := b.SearchKeyword(ctx, "parseConfig", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "doc1", results[0].ID)
}

func TestBackend_KeywordSearchFiltersByRepository(t *testing.T) {
	b, err := New(4)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.IndexDocument(ctx, ragquery.RetrievalResult{
		ID: "doc1", Repository: "repo-a", Snippet: "func handler() {}",
	}, nil))

	results, err := b.SearchKeyword(ctx, "handler", "repo-b", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestBackend_VectorSearchFindsIndexedDocument(t *testing.T) {
	b, err := New(4)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.IndexDocument(ctx, ragquery.RetrievalResult{
		ID: "doc1", Snippet: "vector-indexed content",
	}, []float32{1, 0, 0, 0}))

	results, err := b.SearchVector(ctx, []float64{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "doc1", results[0].ID)
	require.NotNil(t, results[0].VectorScore)
}

func TestBackend_VectorSearchRanksClosestFirst(t *testing.T) {
	b, err := New(2)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.IndexDocument(ctx, ragquery.RetrievalResult{ID: "near"}, []float32{1, 0}))
	require.NoError(t, b.IndexDocument(ctx, ragquery.RetrievalResult{ID: "far"}, []float32{0, 1}))

	results, err := b.SearchVector(ctx, []float64{0.9, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "near", results[0].ID)
}

func TestBackend_SemanticSearchFallsBackToKeyword(t *testing.T) {
	b, err := New(2)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.IndexDocument(ctx, ragquery.RetrievalResult{
		ID: "doc1", Snippet: "func retryWithBackoff() {}",
	}, nil))

	results, err := b.SearchSemantic(ctx, "retryWithBackoff", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].SemanticScore)
	require.Equal(t, results[0].KeywordScore, *results[0].SemanticScore)
}

func TestBackend_IndexDocumentWithoutVectorSkipsVectorChannel(t *testing.T) {
	b, err := New(2)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.IndexDocument(ctx, ragquery.RetrievalResult{ID: "doc1", Snippet: "no embedding"}, nil))

	results, err := b.SearchVector(ctx, []float64{1, 0}, 5)
	require.NoError(t, err)
	require.Empty(t, results)
}
