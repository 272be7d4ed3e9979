// Package store persists run records in sqlite: one row per run, one per
// processed frame and one per failed stage invocation.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/liframe/internal/timeutil"
)

// Store wraps the run database.
type Store struct {
	db    *sql.DB
	path  string
	clock timeutil.Clock
}

// OpenDB opens path without touching the schema.
func OpenDB(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps per-connection pragmas in force and
	// serialises writers.
	db.SetMaxOpenConns(1)
	for _, p := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return &Store{db: db, path: path, clock: timeutil.RealClock{}}, nil
}

// Open opens path and applies pending migrations.
func Open(path string) (*Store, error) {
	s, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := s.MigrateUp(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// SetClock replaces the clock used for timestamps.
func (s *Store) SetClock(c timeutil.Clock) { s.clock = c }

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Path is the database file.
func (s *Store) Path() string { return s.path }

func (s *Store) Close() error { return s.db.Close() }

// Run is one playback session.
type Run struct {
	ID         string     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ConfigPath string     `json:"config_path"`
}

// FrameRecord is one processed frame. Null fields mark absent modalities.
type FrameRecord struct {
	RunID       string
	Index       int
	ProcessedAt time.Time
	LidarPoints sql.NullInt64
	ImageWidth  sql.NullInt64
	ImageHeight sql.NullInt64
	HasCalib    bool
	LabelCount  sql.NullInt64
	Duration    time.Duration
	Failures    int
}

// StageFailure is one stage invocation that returned an error or panicked.
type StageFailure struct {
	RunID    string
	Index    int
	Group    string
	Name     string
	Error    string
	FailedAt time.Time
}

// StartRun inserts a new run with a random id.
func (s *Store) StartRun(ctx context.Context, configPath string) (Run, error) {
	r := Run{ID: uuid.NewString(), StartedAt: s.clock.Now().UTC(), ConfigPath: configPath}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, config_path) VALUES (?, ?, ?)`,
		r.ID, r.StartedAt.UnixNano(), r.ConfigPath)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return r, nil
}

// FinishRun stamps the run's end time.
func (s *Store) FinishRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ? WHERE run_id = ?`, s.clock.Now().UTC().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// RecordFrame appends a frame row.
func (s *Store) RecordFrame(ctx context.Context, f FrameRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO frames (
			run_id, frame_index, processed_at, lidar_points, image_width, image_height,
			has_calib, label_count, duration_ns, stage_failures
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.RunID, f.Index, f.ProcessedAt.UnixNano(), f.LidarPoints, f.ImageWidth, f.ImageHeight,
		f.HasCalib, f.LabelCount, f.Duration.Nanoseconds(), f.Failures)
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", f.Index, err)
	}
	return nil
}

// RecordStageFailure appends a stage failure row.
func (s *Store) RecordStageFailure(ctx context.Context, f StageFailure) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_failures (run_id, frame_index, stage_group, stage_name, error, failed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.RunID, f.Index, f.Group, f.Name, f.Error, f.FailedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert stage failure: %w", err)
	}
	return nil
}

// Runs lists runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, config_path FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.ConfigPath); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started).UTC()
		if finished.Valid {
			t := time.Unix(0, finished.Int64).UTC()
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Frames lists a run's frames in the order they were processed.
func (s *Store) Frames(ctx context.Context, runID string) ([]FrameRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT frame_index, processed_at, lidar_points, image_width, image_height,
			has_calib, label_count, duration_ns, stage_failures
		FROM frames WHERE run_id = ? ORDER BY frame_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FrameRecord
	for rows.Next() {
		var (
			f         = FrameRecord{RunID: runID}
			processed int64
			duration  int64
		)
		if err := rows.Scan(&f.Index, &processed, &f.LidarPoints, &f.ImageWidth, &f.ImageHeight,
			&f.HasCalib, &f.LabelCount, &duration, &f.Failures); err != nil {
			return nil, err
		}
		f.ProcessedAt = time.Unix(0, processed).UTC()
		f.Duration = time.Duration(duration)
		out = append(out, f)
	}
	return out, rows.Err()
}

// StageFailures lists a run's failures in the order they were recorded.
func (s *Store) StageFailures(ctx context.Context, runID string) ([]StageFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT frame_index, stage_group, stage_name, error, failed_at
		FROM stage_failures WHERE run_id = ? ORDER BY failure_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StageFailure
	for rows.Next() {
		f := StageFailure{RunID: runID}
		var failed int64
		if err := rows.Scan(&f.Index, &f.Group, &f.Name, &f.Error, &failed); err != nil {
			return nil, err
		}
		f.FailedAt = time.Unix(0, failed).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}
