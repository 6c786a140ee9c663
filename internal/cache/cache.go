// Package cache implements the result cache: a bounded, TTL-expiring
// LRU of full query responses keyed by a stable query fingerprint,
// with in-flight request coalescing so concurrent identical queries
// share one upstream pipeline run. The LRU usage mirrors the
// code-search engine's hybrid classifier cache; coalescing adds
// singleflight for the same cache-stampede reason other services
// reach for it.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/coderag/engine/internal/ragquery"
)

const (
	DefaultMaxEntries = 500
	DefaultTTL        = 60 * time.Second
)

type entry struct {
	response  ragquery.Response
	cachedAt  time.Time
	// factors retains the ranked factor vectors keyed by result ID, so
	// the adaptive weight store can later resolve a feedback record's
	// factor values through this cache (weights.FactorLookup).
	factors map[string]ragquery.FactorVector
}

// Cache is a bounded, TTL-expiring store of pipeline responses.
type Cache struct {
	mu        sync.Mutex
	lru       *lru.Cache[string, entry]
	ttl       time.Duration
	flight    singleflight.Group
	hits      int64
	misses    int64
}

func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l, _ := lru.New[string, entry](maxEntries)
	return &Cache{lru: l, ttl: ttl}
}

// Fingerprint computes a stable hash of the parts of a Query that
// affect its result set, excluding request-local flags (disable_cache,
// include_timings) that must not fragment the cache key.
func Fingerprint(q ragquery.Query) string {
	h := sha256.New()
	fmt.Fprintf(h, "text=%s\x00file=%s\x00lang=%s\x00repo=%s\x00intent=%s\x00max=%d\x00detail=%s\x00bm25=%t\x00deps=%t",
		q.Text, q.CurrentFile, q.CurrentLanguage, q.RepositoryFilter, q.ExplicitIntent,
		q.MaxResults, q.Detail, q.BM25Only, q.IncludeDependencies)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached response for fingerprint if present and
// unexpired.
func (c *Cache) Get(fingerprint string) (ragquery.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Get(fingerprint)
	if !ok {
		c.misses++
		return ragquery.Response{}, false
	}
	if time.Since(e.cachedAt) >= c.ttl {
		c.lru.Remove(fingerprint)
		c.misses++
		return ragquery.Response{}, false
	}
	c.hits++
	return e.response, true
}

// Put stores a response under fingerprint along with the factor
// vectors behind each ranked result, keyed by result ID, for later
// feedback lookups.
func (c *Cache) Put(fingerprint string, resp ragquery.Response) {
	factors := make(map[string]ragquery.FactorVector, len(resp.Results))
	for _, r := range resp.Results {
		factors[r.Result.ID] = r.Factors
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(fingerprint, entry{response: resp, cachedAt: time.Now(), factors: factors})
}

// Lookup resolves the factor vector the ranker computed for resultID
// under fingerprint, satisfying weights.FactorLookup. Expired entries
// are not consulted: a stale factor vector would misattribute reward
// to a weight configuration that no longer produced that score.
func (c *Cache) Lookup(fingerprint, resultID string) (ragquery.FactorVector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Peek(fingerprint)
	if !ok || time.Since(e.cachedAt) >= c.ttl {
		return ragquery.FactorVector{}, false
	}
	fv, ok := e.factors[resultID]
	return fv, ok
}

// Coalesce ensures only one concurrent call to fn runs per fingerprint;
// concurrent callers with the same fingerprint block on and share its
// result, preventing a cache-miss stampede against the backend.
func (c *Cache) Coalesce(fingerprint string, fn func() (ragquery.Response, error)) (ragquery.Response, error, bool) {
	v, err, shared := c.flight.Do(fingerprint, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return ragquery.Response{}, err, shared
	}
	return v.(ragquery.Response), nil, shared
}

// Stats reports cumulative hit/miss counters, used by telemetry.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len reports the number of live (not necessarily unexpired) entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
