package feedback

import (
	"fmt"

	"github.com/coderag/engine/internal/logging"
	"github.com/coderag/engine/internal/ragquery"
)

const (
	DefaultMaxFileSizeMB = 64
	DefaultMaxFiles      = 5
)

// FileSink appends one JSON object per line to a size-rotated log file.
// Grounded on the engine's RotatingWriter: size-based rotation,
// O_APPEND|O_CREATE, immediate sync, so a crash mid-flush loses at most
// the in-flight write rather than the whole file.
type FileSink struct {
	w *logging.RotatingWriter
}

func NewFileSink(path string, maxSizeMB, maxFiles int) (*FileSink, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxFileSizeMB
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	w, err := logging.NewRotatingWriter(path, maxSizeMB, maxFiles)
	if err != nil {
		return nil, err
	}
	return &FileSink{w: w}, nil
}

// Append writes each record as its own JSON line. It stops at the first
// record that fails to marshal or write and returns that error; records
// written before it stay in the file.
func (f *FileSink) Append(records []ragquery.FeedbackRecord) error {
	for _, rec := range records {
		line, err := toJSON(rec)
		if err != nil {
			return fmt.Errorf("marshal feedback record %s: %w", rec.ResultID, err)
		}
		line = append(line, '\n')
		if _, err := f.w.Write(line); err != nil {
			return fmt.Errorf("write feedback record: %w", err)
		}
	}
	return nil
}

func (f *FileSink) Close() error {
	return f.w.Close()
}
