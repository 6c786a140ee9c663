// Package embedclient is an async client for the external text
// embedding service, with a content-addressed LRU cache. Grounded on
// the code-search engine's CachedEmbedder, extended with the TTL its
// cache lacked.
package embedclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/coderag/engine/internal/errors"
)

const (
	DefaultCacheSize = 10000
	DefaultCacheTTL  = time.Hour
	DefaultDimension = 1536
)

// Config configures the embedding client.
type Config struct {
	Endpoint  string
	Model     string
	Dimension int
	CacheSize int
	CacheTTL  time.Duration
	Timeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Dimension <= 0 {
		c.Dimension = DefaultDimension
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

type cacheEntry struct {
	vector   []float64
	cachedAt time.Time
}

// Client embeds text, serving from a content-addressed, TTL-bounded LRU
// cache when possible.
type Client struct {
	cfg   Config
	http  *http.Client
	cache *lru.Cache[string, cacheEntry]
	mu    sync.Mutex
}

func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	cache, _ := lru.New[string, cacheEntry](cfg.CacheSize)
	return &Client{
		cfg:   cfg,
		http:  &http.Client{},
		cache: cache,
	}
}

// cacheKey is the SHA-256 hex digest of the input text plus model
// name, a content-addressed cache key.
func cacheKey(text, model string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + model))
	return hex.EncodeToString(sum[:])
}

type embedRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type embedResponse struct {
	Vector []float64 `json:"vector"`
}

// Embed returns the cached embedding for text if present and unexpired,
// otherwise calls the embedding service, validates its dimension, and
// caches the result. A dimension mismatch is a hard error: the client
// never pads or truncates to "fit."
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	key := cacheKey(text, c.cfg.Model)

	c.mu.Lock()
	if entry, ok := c.cache.Get(key); ok {
		if time.Since(entry.cachedAt) < c.cfg.CacheTTL {
			c.mu.Unlock()
			return entry.vector, nil
		}
		c.cache.Remove(key)
	}
	c.mu.Unlock()

	vec, err := c.fetch(ctx, text)
	if err != nil {
		return nil, errors.QueryError(errors.KindEmbeddingUnavailable, "embedding service error: "+err.Error(), err)
	}
	if len(vec) != c.cfg.Dimension {
		return nil, errors.QueryError(errors.KindEmbeddingUnavailable,
			fmt.Sprintf("embedding dimension mismatch: got %d, want %d", len(vec), c.cfg.Dimension), nil)
	}

	c.mu.Lock()
	c.cache.Add(key, cacheEntry{vector: vec, cachedAt: time.Now()})
	c.mu.Unlock()

	return vec, nil
}

func (c *Client) fetch(ctx context.Context, text string) ([]float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(embedRequest{Text: text, Model: c.cfg.Model})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.Endpoint+"/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("embedding service returned %d", resp.StatusCode)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	return decoded.Vector, nil
}
