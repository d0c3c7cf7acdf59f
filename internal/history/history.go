package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ffbatch/internal/batch"
	"ffbatch/internal/logging"
	"ffbatch/internal/plan"
)

// Store persists batch outcomes to SQLite. A file lock next to the database
// serializes concurrent ffbatch runs sharing a history file.
type Store struct {
	db     *sql.DB
	lock   *flock.Flock
	logger *slog.Logger
	path   string
}

const schema = `
CREATE TABLE IF NOT EXISTS batches (
    id              TEXT PRIMARY KEY,
    preset          TEXT NOT NULL,
    output_root     TEXT NOT NULL,
    status          TEXT NOT NULL,
    started_at      TEXT NOT NULL,
    finished_at     TEXT,
    create_count    INTEGER NOT NULL DEFAULT 0,
    overwrite_count INTEGER NOT NULL DEFAULT 0,
    skip_count      INTEGER NOT NULL DEFAULT 0,
    completed_count INTEGER NOT NULL DEFAULT 0,
    failed_count    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS batch_targets (
    batch_id         TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
    target_index     INTEGER NOT NULL,
    input_path       TEXT NOT NULL,
    output_path      TEXT NOT NULL,
    action           TEXT NOT NULL,
    outcome          TEXT NOT NULL,
    duration_seconds REAL NOT NULL DEFAULT 0,
    message          TEXT NOT NULL DEFAULT '',
    recorded_at      TEXT NOT NULL,
    PRIMARY KEY (batch_id, target_index)
);

CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at);
`

// Open initializes or connects to the history database, acquiring the run
// lock first. ctx bounds the wait for a concurrent run to finish.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquire history lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("history database %s is locked by another run", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		db:     db,
		lock:   lock,
		logger: logging.NewComponentLogger(logger, "history"),
		path:   path,
	}, nil
}

// Close closes the database and releases the run lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); err == nil {
			err = unlockErr
		}
	}
	return err
}

// Batch is an in-progress batch record; it implements batch.Recorder.
type Batch struct {
	store *Store
	id    string
}

// ID returns the batch identifier.
func (b *Batch) ID() string { return b.id }

// BeginBatch inserts a new running batch row and returns its recorder.
func (s *Store) BeginBatch(ctx context.Context, presetName, outputRoot string, p *plan.Plan) (*Batch, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (
            id, preset, output_root, status, started_at,
            create_count, overwrite_count, skip_count
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, presetName, outputRoot, "running", now,
		p.CreateCount, p.OverwriteCount, p.SkipCount,
	)
	if err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	// Skipped targets never reach the executor, so record them up front.
	for index, target := range p.Targets {
		if target.Action != plan.ActionSkip {
			continue
		}
		outcome := "skipped"
		if target.ErrorMessage != "" {
			outcome = "probe-failed"
		}
		if err := s.insertTarget(ctx, id, index, target, outcome, target.ErrorMessage); err != nil {
			return nil, err
		}
	}
	return &Batch{store: s, id: id}, nil
}

// RecordTarget persists one executed target outcome. History is best-effort;
// a recording failure is logged and never fails the batch.
func (b *Batch) RecordTarget(ctx context.Context, index int, target plan.Target, outcome, message string) {
	if err := b.store.insertTarget(ctx, b.id, index, target, outcome, message); err != nil {
		b.store.logger.Warn("record target outcome",
			logging.String("input", target.InputPath),
			logging.Error(err),
		)
	}
}

func (s *Store) insertTarget(ctx context.Context, batchID string, index int, target plan.Target, outcome, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO batch_targets (
            batch_id, target_index, input_path, output_path, action,
            outcome, duration_seconds, message, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batchID, index, target.InputPath, target.OutputPath, target.Action.String(),
		outcome, target.DurationSeconds, message, now,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

// Finish marks the batch row with its final status and counters.
func (b *Batch) Finish(ctx context.Context, result batch.Result, cancelled bool) error {
	status := "completed"
	switch {
	case cancelled:
		status = "cancelled"
	case result.AllFailed():
		status = "failed"
	case result.Failed > 0:
		status = "partial"
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := b.store.db.ExecContext(ctx,
		`UPDATE batches
         SET status = ?, finished_at = ?, completed_count = ?, failed_count = ?
         WHERE id = ?`,
		status, now, result.Completed, result.Failed, b.id,
	)
	if err != nil {
		return fmt.Errorf("finish batch: %w", err)
	}
	return nil
}

// Summary is one row of `ffbatch history`.
type Summary struct {
	ID             string
	Preset         string
	OutputRoot     string
	Status         string
	StartedAt      time.Time
	FinishedAt     time.Time
	CreateCount    int
	OverwriteCount int
	SkipCount      int
	CompletedCount int
	FailedCount    int
}

// ListBatches returns the most recent batches, newest first.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, preset, output_root, status, started_at, finished_at,
                create_count, overwrite_count, skip_count, completed_count, failed_count
         FROM batches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var summary Summary
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(
			&summary.ID, &summary.Preset, &summary.OutputRoot, &summary.Status,
			&startedAt, &finishedAt,
			&summary.CreateCount, &summary.OverwriteCount, &summary.SkipCount,
			&summary.CompletedCount, &summary.FailedCount,
		); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		summary.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if finishedAt.Valid {
			summary.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt.String)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// TargetRecord is one row of `ffbatch history show`.
type TargetRecord struct {
	Index           int
	InputPath       string
	OutputPath      string
	Action          string
	Outcome         string
	DurationSeconds float64
	Message         string
}

// Targets returns the per-target records of one batch in plan order.
func (s *Store) Targets(ctx context.Context, batchID string) ([]TargetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_index, input_path, output_path, action, outcome, duration_seconds, message
         FROM batch_targets WHERE batch_id = ? ORDER BY target_index`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var records []TargetRecord
	for rows.Next() {
		var record TargetRecord
		if err := rows.Scan(
			&record.Index, &record.InputPath, &record.OutputPath,
			&record.Action, &record.Outcome, &record.DurationSeconds, &record.Message,
		); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
