package telemetry

import (
	"database/sql"
	"fmt"
	"time"
)

// SQLiteMetricsStore persists query telemetry aggregates to a SQLite
// database the caller owns. It expects the schema to already exist;
// call InitTelemetrySchema once during startup migrations.
type SQLiteMetricsStore struct {
	db *sql.DB
}

// NewSQLiteMetricsStore wraps an existing SQLite connection.
func NewSQLiteMetricsStore(db *sql.DB) (*SQLiteMetricsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("telemetry store: nil database connection")
	}
	return &SQLiteMetricsStore{db: db}, nil
}

// InitTelemetrySchema creates the telemetry tables if they don't exist.
func InitTelemetrySchema(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS query_type_counts (
		day TEXT NOT NULL,
		query_type TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (day, query_type)
	);

	CREATE TABLE IF NOT EXISTS query_term_counts (
		term TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 1,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_query_term_counts_count ON query_term_counts(count DESC);

	CREATE TABLE IF NOT EXISTS zero_result_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS query_latency_counts (
		day TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (day, bucket)
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init telemetry schema: %w", err)
	}
	return nil
}

// upsertCounts runs an incrementing upsert against one of the
// day+bucket-keyed count tables shared by query types and latencies.
func (s *SQLiteMetricsStore) upsertCounts(table, bucketColumn, day string, counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
		INSERT INTO %s (day, %s, count)
		VALUES (?, ?, ?)
		ON CONFLICT(day, %s) DO UPDATE SET count = count + excluded.count
	`, table, bucketColumn, bucketColumn)

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for bucket, count := range counts {
		if _, err := stmt.Exec(day, bucket, count); err != nil {
			return fmt.Errorf("upsert count for %s: %w", bucket, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteMetricsStore) sumCounts(table, bucketColumn, from, to string) (map[string]int64, error) {
	query := fmt.Sprintf(`
		SELECT %s, SUM(count) FROM %s
		WHERE day >= ? AND day <= ?
		GROUP BY %s
	`, bucketColumn, table, bucketColumn)

	rows, err := s.db.Query(query, from, to)
	if err != nil {
		return nil, fmt.Errorf("sum counts from %s: %w", table, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var bucket string
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[bucket] = count
	}
	return counts, rows.Err()
}

// SaveQueryTypeCounts upserts per-day query type counts.
func (s *SQLiteMetricsStore) SaveQueryTypeCounts(date string, counts map[QueryType]int64) error {
	raw := make(map[string]int64, len(counts))
	for qt, c := range counts {
		raw[string(qt)] = c
	}
	return s.upsertCounts("query_type_counts", "query_type", date, raw)
}

// GetQueryTypeCounts sums query type counts over a date range.
func (s *SQLiteMetricsStore) GetQueryTypeCounts(from, to string) (map[QueryType]int64, error) {
	raw, err := s.sumCounts("query_type_counts", "query_type", from, to)
	if err != nil {
		return nil, err
	}
	counts := make(map[QueryType]int64, len(raw))
	for qt, c := range raw {
		counts[QueryType(qt)] = c
	}
	return counts, nil
}

// UpsertTermCounts increments frequency counts for the given terms.
func (s *SQLiteMetricsStore) UpsertTermCounts(terms map[string]int64) error {
	if len(terms) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO query_term_counts (term, count, last_seen)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET
			count = count + excluded.count,
			last_seen = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for term, count := range terms {
		if _, err := stmt.Exec(term, count); err != nil {
			return fmt.Errorf("upsert term %q: %w", term, err)
		}
	}

	return tx.Commit()
}

// GetTopTerms returns the most frequent terms, highest count first.
func (s *SQLiteMetricsStore) GetTopTerms(limit int) ([]TermCount, error) {
	rows, err := s.db.Query(`
		SELECT term, count FROM query_term_counts
		ORDER BY count DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer rows.Close()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

// AddZeroResultQuery records a query that returned nothing, trimming
// the table down to the 100 most recent entries.
func (s *SQLiteMetricsStore) AddZeroResultQuery(query string, timestamp time.Time) error {
	if _, err := s.db.Exec(`
		INSERT INTO zero_result_queries (query, seen_at) VALUES (?, ?)
	`, query, timestamp); err != nil {
		return fmt.Errorf("insert zero-result query: %w", err)
	}

	_, err := s.db.Exec(`
		DELETE FROM zero_result_queries
		WHERE id NOT IN (SELECT id FROM zero_result_queries ORDER BY id DESC LIMIT 100)
	`)
	if err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}
	return nil
}

// GetZeroResultQueries returns the most recent zero-result queries.
func (s *SQLiteMetricsStore) GetZeroResultQueries(limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT query FROM zero_result_queries ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// SaveLatencyCounts upserts per-day latency bucket counts.
func (s *SQLiteMetricsStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	raw := make(map[string]int64, len(counts))
	for bucket, c := range counts {
		raw[string(bucket)] = c
	}
	return s.upsertCounts("query_latency_counts", "bucket", date, raw)
}

// GetLatencyCounts sums latency bucket counts over a date range.
func (s *SQLiteMetricsStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	raw, err := s.sumCounts("query_latency_counts", "bucket", from, to)
	if err != nil {
		return nil, err
	}
	counts := make(map[LatencyBucket]int64, len(raw))
	for bucket, c := range raw {
		counts[LatencyBucket(bucket)] = c
	}
	return counts, nil
}

// Close is a no-op: the underlying *sql.DB is owned by the caller.
func (s *SQLiteMetricsStore) Close() error {
	return nil
}
