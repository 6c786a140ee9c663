package rank

import (
	"math"
	"testing"
	"time"

	"github.com/coderag/engine/internal/errors"
	"github.com/coderag/engine/internal/ragquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultWeights() ragquery.WeightVector {
	var w ragquery.WeightVector
	for i := range w {
		w[i] = 1.0 / float64(ragquery.NumFactors)
	}
	return w
}

func vec(v float64) *float64 { return &v }

func TestRank_Determinism(t *testing.T) {
	now := time.Now()
	a := ragquery.RetrievalResult{ID: "A", KeywordScore: 10, VectorScore: vec(0.6), Imports: []string{"json"}, LastModified: now}
	b := ragquery.RetrievalResult{ID: "B", KeywordScore: 8, VectorScore: vec(0.8), Imports: []string{"json"}, LastModified: now.Add(time.Second)}

	e := NewEngine(Options{})
	w := defaultWeights()

	r1, err := e.Rank([]ragquery.RetrievalResult{a, b}, w, CurrentContext{}, "", nil)
	require.NoError(t, err)
	r2, err := e.Rank([]ragquery.RetrievalResult{a, b}, w, CurrentContext{}, "", nil)
	require.NoError(t, err)

	require.Len(t, r1, 2)
	require.Len(t, r2, 2)
	assert.Equal(t, r1[0].Result.ID, r2[0].Result.ID)
	assert.Equal(t, r1[1].Result.ID, r2[1].Result.ID)
	// A's higher keyword score and B's higher vector score cancel out
	// after min-max normalization; B's later LastModified gives it the
	// whole recency factor, so B ranks first.
	assert.Equal(t, "B", r1[0].Result.ID)
}

func TestRank_TieBreakFallsThroughToID(t *testing.T) {
	now := time.Now()
	z := ragquery.RetrievalResult{ID: "Z", KeywordScore: 5, LastModified: now}
	a := ragquery.RetrievalResult{ID: "A", KeywordScore: 5, LastModified: now}

	e := NewEngine(Options{})
	w := defaultWeights()
	results, err := e.Rank([]ragquery.RetrievalResult{z, a}, w, CurrentContext{}, "", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].Result.ID)
	assert.Equal(t, "Z", results[1].Result.ID)
}

func TestRank_EmptyCandidateSet(t *testing.T) {
	e := NewEngine(Options{})
	results, err := e.Rank(nil, defaultWeights(), CurrentContext{}, "", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRank_SingleCandidateNormalizesToHalf(t *testing.T) {
	e := NewEngine(Options{})
	only := ragquery.RetrievalResult{ID: "only", KeywordScore: 42}
	results, err := e.Rank([]ragquery.RetrievalResult{only}, defaultWeights(), CurrentContext{}, "", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.5, results[0].Score, 1e-9)
	assert.Equal(t, 1, results[0].TieBreak)
}

func TestRank_IdenticalTextRelevanceNormalizesToHalf(t *testing.T) {
	e := NewEngine(Options{})
	cands := []ragquery.RetrievalResult{
		{ID: "A", KeywordScore: 3},
		{ID: "B", KeywordScore: 3},
	}
	results, err := e.Rank(cands, defaultWeights(), CurrentContext{}, "", nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.InDelta(t, 0.5, r.Factors[ragquery.FactorTextRelevance].Value, 1e-9)
	}
}

func TestRank_PatternScanIsByteBounded(t *testing.T) {
	huge := make([]byte, 1<<20)
	for i := range huge {
		huge[i] = 'x'
	}
	snippet := "func NewThing() {}" + string(huge)
	score, names := PatternMatch(snippet, DefaultSnippetScanBytes, DefaultDetectors())
	assert.Greater(t, score, 0.0)
	assert.Contains(t, names, "factory")
}

func TestRank_NaNFactorIsRejected(t *testing.T) {
	e := NewEngine(Options{})
	bad := ragquery.RetrievalResult{ID: "bad", KeywordScore: math.NaN()}
	_, err := e.Rank([]ragquery.RetrievalResult{bad}, defaultWeights(), CurrentContext{}, "", nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindRankingInvariant))
}
