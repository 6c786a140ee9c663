// Package backend is a thin async HTTP client to an external search
// backend exposing keyword, vector, and semantic search primitives
// over HTTP. Connection pooling and the "no static client timeout"
// discipline are grounded on the code-search engine's Ollama embedder
// client; retry and circuit breaking reuse its errors package directly.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coderag/engine/internal/errors"
	"github.com/coderag/engine/internal/ragquery"
)

// Config configures the backend client.
type Config struct {
	Endpoint     string
	PoolSize     int           // max idle conns per host; max conns per host is twice this
	CallTimeout  time.Duration // default per-call timeout (30s)
	RetryBase    time.Duration // base backoff (200ms)
	RetryFactor  float64       // backoff multiplier (2)
	RetryJitter  float64       // > 0 turns jitter on; the fraction itself is not used: each wait is 50-100% of the backoff delay
	MaxAttempts  int           // cap (4)
	MaxPending   int           // pending-queue bound before backend_overloaded
}

func (c Config) withDefaults() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 200 * time.Millisecond
	}
	if c.RetryFactor <= 0 {
		c.RetryFactor = 2
	}
	if c.RetryJitter <= 0 {
		c.RetryJitter = 0.2
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 32
	}
	if c.MaxPending <= 0 {
		c.MaxPending = 256
	}
	return c
}

// Client is a process-wide pooled HTTP client for one backend endpoint.
// One Client should be shared across all requests to that endpoint,
// mirroring the "one process-wide pool keyed by endpoint" requirement.
type Client struct {
	cfg       Config
	http      *http.Client
	transport *http.Transport
	breaker   *errors.CircuitBreaker
	pending   chan struct{} // bounded token set standing in for the pending-queue bound
}

func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		cfg: cfg,
		// No static http.Client.Timeout: every call below supplies its
		// own context.WithTimeout, so a slow backend never silently
		// overrides the caller's deadline.
		http:      &http.Client{Transport: transport},
		transport: transport,
		breaker:   errors.NewCircuitBreaker("backend:" + cfg.Endpoint),
		pending:   make(chan struct{}, cfg.MaxPending),
	}
}

func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

type keywordRequest struct {
	Query  string `json:"query"`
	Filter string `json:"filter,omitempty"`
	TopK   int    `json:"top_k"`
}

type vectorRequest struct {
	Vector []float64 `json:"vector"`
	TopK   int       `json:"top_k"`
}

type semanticRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type backendHit struct {
	ID           string            `json:"id"`
	Score        float64           `json:"score"`
	Repository   string            `json:"repository"`
	FilePath     string            `json:"file_path"`
	FunctionName string            `json:"function_name"`
	ClassName    string            `json:"class_name"`
	Language     string            `json:"language"`
	Snippet      string            `json:"snippet"`
	StartLine    int               `json:"start_line"`
	EndLine      int               `json:"end_line"`
	LastModified int64             `json:"last_modified_unix"`
	Imports      []string          `json:"imports"`
	Tokens       []string          `json:"tokens"`
	Fields       map[string]string `json:"fields"`
}

type backendResponse struct {
	Results []backendHit `json:"results"`
}

// SearchKeyword issues a single BM25 call. filter must already be a
// sanitized filter expression (see SanitizeFilter); the client never
// interpolates raw text itself.
func (c *Client) SearchKeyword(ctx context.Context, query, filter string, topK int) ([]ragquery.RetrievalResult, error) {
	return c.search(ctx, "/search/keyword", keywordRequest{Query: query, Filter: filter, TopK: topK})
}

// SearchVector issues a single vector call.
func (c *Client) SearchVector(ctx context.Context, vector []float64, topK int) ([]ragquery.RetrievalResult, error) {
	return c.search(ctx, "/search/vector", vectorRequest{Vector: vector, TopK: topK})
}

// SearchSemantic issues a single semantic-mode call.
func (c *Client) SearchSemantic(ctx context.Context, query string, topK int) ([]ragquery.RetrievalResult, error) {
	return c.search(ctx, "/search/semantic", semanticRequest{Query: query, TopK: topK})
}

func (c *Client) search(ctx context.Context, path string, body any) ([]ragquery.RetrievalResult, error) {
	select {
	case c.pending <- struct{}{}:
		defer func() { <-c.pending }()
	default:
		return nil, errors.QueryError(errors.KindBackendOverloaded, "backend pending queue saturated", nil)
	}

	maxDelay := c.cfg.RetryBase
	for i := 1; i < c.cfg.MaxAttempts; i++ {
		maxDelay = time.Duration(float64(maxDelay) * c.cfg.RetryFactor)
	}
	retryCfg := errors.RetryConfig{
		MaxRetries:   c.cfg.MaxAttempts - 1,
		InitialDelay: c.cfg.RetryBase,
		MaxDelay:     maxDelay,
		Multiplier:   c.cfg.RetryFactor,
		Jitter:       c.cfg.RetryJitter > 0,
	}

	hits, err := errors.RetryWithResult(ctx, retryCfg, func() ([]backendHit, error) {
		return errors.CircuitExecuteWithResult(c.breaker,
			func() ([]backendHit, error) { return c.doCall(ctx, path, body) },
			func() ([]backendHit, error) { return nil, errors.ErrCircuitOpen },
		)
	})
	if err != nil {
		return nil, errors.QueryError(errors.KindBackendUnavailable, "backend call failed: "+err.Error(), err)
	}

	return toRetrievalResults(hits), nil
}

func (c *Client) doCall(ctx context.Context, path string, body any) ([]backendHit, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return nil, errors.QueryError(errors.KindInvalidQuery, fmt.Sprintf("backend rejected request: %d %s", resp.StatusCode, string(data)), nil)
	}

	var decoded backendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	return decoded.Results, nil
}

func toRetrievalResults(hits []backendHit) []ragquery.RetrievalResult {
	out := make([]ragquery.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		r := ragquery.RetrievalResult{
			ID:           h.ID,
			Repository:   h.Repository,
			FilePath:     h.FilePath,
			FunctionName: h.FunctionName,
			ClassName:    h.ClassName,
			Language:     h.Language,
			Snippet:      h.Snippet,
			StartLine:    h.StartLine,
			EndLine:      h.EndLine,
			KeywordScore: h.Score,
			Imports:      h.Imports,
			Tokens:       h.Tokens,
		}
		if h.LastModified > 0 {
			r.LastModified = time.Unix(h.LastModified, 0)
		}
		out = append(out, r)
	}
	return out
}
