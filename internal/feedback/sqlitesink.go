package feedback

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no CGO

	"github.com/coderag/engine/internal/ragquery"
)

// SQLiteSink is an alternative Sink backed by a WAL-mode SQLite
// database, for deployments that want queryable feedback history rather
// than an append-only log file. Grounded on the engine's BM25 store's
// connection setup, which pins the same pragmas for the same reason:
// modernc.org/sqlite can ignore WAL-related DSN query parameters, so
// they're set explicitly via PRAGMA after opening.
type SQLiteSink struct {
	db *sql.DB
}

func NewSQLiteSink(path string) (*SQLiteSink, error) {
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open feedback sqlite db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS feedback (
	query_fingerprint TEXT NOT NULL,
	result_id         TEXT NOT NULL,
	rank              INTEGER NOT NULL,
	outcome           TEXT NOT NULL,
	timestamp         TEXT NOT NULL,
	intent            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_fingerprint ON feedback(query_fingerprint);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create feedback schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// Append inserts records within a single transaction, so a batch is
// either entirely visible to readers or not at all.
func (s *SQLiteSink) Append(records []ragquery.FeedbackRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO feedback
		(query_fingerprint, result_id, rank, outcome, timestamp, intent)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(
			rec.QueryFingerprint, rec.ResultID, rec.Rank, string(rec.Outcome),
			rec.Timestamp.Format(time.RFC3339Nano), string(rec.Intent),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
