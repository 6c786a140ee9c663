package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBleveBM25Index_IndexAndSearch(t *testing.T) {
	idx, err := NewBleveBM25Index()
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "a", Content: "func parseConfigFile() error { return nil }"},
		{ID: "b", Content: "func writeLogEntry() {}"},
	}))

	results, err := idx.Search(ctx, "parseConfigFile", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].DocID)
}

func TestBleveBM25Index_CamelCaseSplitMatchesSubToken(t *testing.T) {
	idx, err := NewBleveBM25Index()
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "a", Content: "func getUserById(id string) {}"},
	}))

	results, err := idx.Search(ctx, "user", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestBleveBM25Index_StopWordsAreNotIndexed(t *testing.T) {
	idx, err := NewBleveBM25Index()
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "a", Content: "func handler() { return }"},
	}))

	// "return" is a stop word and should not be searchable on its own.
	results, err := idx.Search(ctx, "return", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveBM25Index_EmptyQueryReturnsNoResults(t *testing.T) {
	idx, err := NewBleveBM25Index()
	require.NoError(t, err)
	defer idx.Close()

	results, err := idx.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveBM25Index_SearchAfterCloseFails(t *testing.T) {
	idx, err := NewBleveBM25Index()
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = idx.Search(context.Background(), "anything", 10)
	assert.Error(t, err)
}
