package cache

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/coderag/engine/internal/ragquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_StableForSameQuery(t *testing.T) {
	q := ragquery.Query{Text: "parse json", CurrentFile: "a.go", MaxResults: 10}
	assert.Equal(t, Fingerprint(q), Fingerprint(q))
}

func TestFingerprint_IgnoresCacheAndTimingFlags(t *testing.T) {
	base := ragquery.Query{Text: "parse json", MaxResults: 10}
	withFlags := base
	withFlags.DisableCache = true
	withFlags.IncludeTimings = true
	assert.Equal(t, Fingerprint(base), Fingerprint(withFlags))
}

func TestFingerprint_DiffersOnText(t *testing.T) {
	a := ragquery.Query{Text: "parse json"}
	b := ragquery.Query{Text: "parse xml"}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestCache_PutGetRoundTrip(t *testing.T) {
	c := New(10, time.Minute)
	resp := ragquery.Response{QueryID: "q1"}
	c.Put("fp1", resp)

	got, ok := c.Get("fp1")
	require.True(t, ok)
	assert.Equal(t, "q1", got.QueryID)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New(10, 1*time.Millisecond)
	c.Put("fp1", ragquery.Response{QueryID: "q1"})
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("fp1")
	assert.False(t, ok)
}

func TestCache_LookupResolvesFactorVector(t *testing.T) {
	c := New(10, time.Minute)
	fv := ragquery.FactorVector{}
	fv[ragquery.FactorTextRelevance] = ragquery.FactorValue{Value: 0.9, Confidence: 1.0}
	resp := ragquery.Response{
		Results: []ragquery.RankedResult{
			{Result: ragquery.RetrievalResult{ID: "r1"}, Factors: fv},
		},
	}
	c.Put("fp1", resp)

	got, ok := c.Lookup("fp1", "r1")
	require.True(t, ok)
	assert.Equal(t, 0.9, got[ragquery.FactorTextRelevance].Value)

	_, ok = c.Lookup("fp1", "nonexistent")
	assert.False(t, ok)
}

func TestCache_CoalescesConcurrentIdenticalCalls(t *testing.T) {
	c := New(10, time.Minute)
	var calls int64

	fn := func() (ragquery.Response, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return ragquery.Response{QueryID: "shared"}, nil
	}

	results := make(chan ragquery.Response, 5)
	for i := 0; i < 5; i++ {
		go func() {
			resp, err, _ := c.Coalesce("fp-shared", fn)
			require.NoError(t, err)
			results <- resp
		}()
	}
	for i := 0; i < 5; i++ {
		resp := <-results
		assert.Equal(t, "shared", resp.QueryID)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}
