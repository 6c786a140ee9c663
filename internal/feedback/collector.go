// Package feedback implements the Feedback Collector: a non-blocking,
// bounded buffer of FeedbackRecords flushed periodically to an
// append-only sink, with a copy handed to the Adaptive Weight Store.
// The append-only sink's one-JSON-object-per-line discipline reuses
// the code-search engine's rotating log writer.
package feedback

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coderag/engine/internal/errors"
	"github.com/coderag/engine/internal/ragquery"
)

// DefaultBufferCapacity is the bounded deque capacity.
const DefaultBufferCapacity = 10000

// Sink is the append-only persistence target for flushed records. It
// is the seam at which a concrete persistent store is plugged in.
type Sink interface {
	Append(records []ragquery.FeedbackRecord) error
}

// Observer receives a flushed batch, used to feed the Adaptive Weight
// Store without the collector importing it directly.
type Observer interface {
	Observe(batch []ragquery.FeedbackRecord)
}

// Collector buffers feedback records and flushes them on demand.
type Collector struct {
	mu       sync.Mutex
	buf      []ragquery.FeedbackRecord
	capacity int
	sink     Sink
	observer Observer
	logger   *slog.Logger
}

func NewCollector(sink Sink, observer Observer, capacity int, logger *slog.Logger) *Collector {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{capacity: capacity, sink: sink, observer: observer, logger: logger}
}

// Record validates and non-blockingly enqueues rec. Invalid records are
// rejected with invalid_query rather than silently dropped; a full
// buffer drops the record with a logged warning instead of blocking
// the caller.
func (c *Collector) Record(rec ragquery.FeedbackRecord) error {
	if err := validate(rec); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buf) >= c.capacity {
		c.logger.Warn("feedback buffer full, dropping record",
			"query_fingerprint", rec.QueryFingerprint, "result_id", rec.ResultID)
		return nil
	}
	c.buf = append(c.buf, rec)
	return nil
}

func validate(rec ragquery.FeedbackRecord) error {
	if rec.Rank < 1 || rec.Rank > 1000 {
		return errors.QueryError(errors.KindInvalidQuery, fmt.Sprintf("feedback rank %d out of [1,1000]", rec.Rank), nil)
	}
	if !rec.Outcome.Valid() {
		return errors.QueryError(errors.KindInvalidQuery, "invalid feedback outcome: "+string(rec.Outcome), nil)
	}
	if rec.QueryFingerprint == "" {
		return errors.QueryError(errors.KindInvalidQuery, "missing query fingerprint", nil)
	}
	return nil
}

// Flush atomically drains the buffer, writes it to the sink, and hands
// a copy to the observer (the weight store). A sink write failure
// leaves the records in the buffer so a later flush can retry: flush
// is only considered to have happened once the sink write succeeds.
func (c *Collector) Flush() error {
	c.mu.Lock()
	if len(c.buf) == 0 {
		c.mu.Unlock()
		return nil
	}
	batch := c.buf
	c.buf = nil
	c.mu.Unlock()

	if c.sink != nil {
		if err := c.sink.Append(batch); err != nil {
			c.mu.Lock()
			c.buf = append(batch, c.buf...)
			c.mu.Unlock()
			return errors.QueryError(errors.KindInvalidQuery, "feedback sink write failed: "+err.Error(), err)
		}
	}

	if c.observer != nil {
		c.observer.Observe(batch)
	}
	return nil
}

// Len reports the number of buffered, unflushed records.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// recordJSON is the on-disk shape of a FeedbackRecord, matching its
// named fields exactly.
type recordJSON struct {
	QueryFingerprint string `json:"query_fingerprint"`
	ResultID         string `json:"result_id"`
	Rank             int    `json:"rank"`
	Outcome          string `json:"outcome"`
	Timestamp        string `json:"timestamp"`
	Intent           string `json:"intent"`
}

func toJSON(rec ragquery.FeedbackRecord) ([]byte, error) {
	return json.Marshal(recordJSON{
		QueryFingerprint: rec.QueryFingerprint,
		ResultID:         rec.ResultID,
		Rank:             rec.Rank,
		Outcome:          string(rec.Outcome),
		Timestamp:        rec.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		Intent:           string(rec.Intent),
	})
}
