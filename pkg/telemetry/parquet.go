// Package telemetry records per-query pipeline measurements to Parquet
// files for offline analysis.
package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
)

const defaultBatchSize = 100

// QueryRecord is the Parquet schema for one answered query.
type QueryRecord struct {
	ID               string     `parquet:"id"`
	Timestamp        *time.Time `parquet:"timestamp"`
	RawText          string     `parquet:"raw_text"`
	Intent           string     `parquet:"intent"`
	IntentConfidence float64    `parquet:"intent_confidence"`
	MentionCount     int32      `parquet:"mention_count"`
	SeedCount        int32      `parquet:"seed_count"`
	ResultCount      int32      `parquet:"result_count"`
	Partial          bool       `parquet:"partial"`
	DurationMs       int64      `parquet:"duration_ms"`
	Error            string     `parquet:"error"`
}

// Recorder buffers query records and flushes them to one Parquet file per
// batch. Safe for concurrent use; Record never blocks on disk I/O beyond
// the flush it triggers.
type Recorder struct {
	baseDir   string
	batchSize int
	logger    *slog.Logger

	mu      sync.Mutex
	pending []QueryRecord
}

// NewRecorder creates a recorder writing under baseDir.
func NewRecorder(baseDir string, batchSize int, logger *slog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "queries"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{baseDir: baseDir, batchSize: batchSize, logger: logger}, nil
}

// Record buffers one query record, flushing when the batch fills. Record
// assigns the id and timestamp.
func (r *Recorder) Record(rec QueryRecord) {
	now := time.Now().UTC()
	rec.ID = uuid.New().String()
	rec.Timestamp = &now

	r.mu.Lock()
	r.pending = append(r.pending, rec)
	shouldFlush := len(r.pending) >= r.batchSize
	r.mu.Unlock()

	if shouldFlush {
		if err := r.Flush(); err != nil {
			r.logger.Warn("telemetry flush failed", slog.String("error", err.Error()))
		}
	}
}

// Flush writes all pending records to a new Parquet file.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	filename := fmt.Sprintf("queries_%d.parquet", time.Now().UnixNano())
	path := filepath.Join(r.baseDir, "queries", filename)
	if err := parquet.WriteFile(path, batch); err != nil {
		return fmt.Errorf("failed to write telemetry batch: %w", err)
	}
	return nil
}

// Close flushes whatever is pending.
func (r *Recorder) Close() error {
	return r.Flush()
}
