package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/logging"
	"github.com/banshee-data/liframe/internal/stage"
)

// FrameRecorder writes a run's frames and stage failures. It is both a
// stage observer and a frame sink: stage results accumulate until the frame
// they belong to is handed to Update.
type FrameRecorder struct {
	store *Store
	runID string
	log   *logging.Logger

	mu       sync.Mutex
	duration time.Duration
	failures int
}

// NewFrameRecorder records into the run runID.
func NewFrameRecorder(s *Store, runID string, log *logging.Logger) *FrameRecorder {
	return &FrameRecorder{store: s, runID: runID, log: log}
}

// RunID is the run being recorded.
func (r *FrameRecorder) RunID() string { return r.runID }

// ObserveStage implements stage.Observer.
func (r *FrameRecorder) ObserveStage(res stage.Result) {
	r.mu.Lock()
	r.duration += res.Duration
	if res.Err != nil {
		r.failures++
	}
	r.mu.Unlock()

	if res.Err == nil {
		return
	}
	err := r.store.RecordStageFailure(context.Background(), StageFailure{
		RunID:    r.runID,
		Index:    res.Index,
		Group:    string(res.Group),
		Name:     res.Name,
		Error:    res.Err.Error(),
		FailedAt: r.store.clock.Now().UTC(),
	})
	if err != nil {
		r.log.Warnf("store: %v", err)
	}
}

// Update records fc with the stage totals gathered since the last frame.
func (r *FrameRecorder) Update(fc *frame.Context) error {
	r.mu.Lock()
	rec := FrameRecord{
		RunID:       r.runID,
		Index:       fc.Index,
		ProcessedAt: r.store.clock.Now().UTC(),
		HasCalib:    fc.Calib != nil,
		Duration:    r.duration,
		Failures:    r.failures,
	}
	r.duration, r.failures = 0, 0
	r.mu.Unlock()

	if fc.Cloud != nil {
		rec.LidarPoints = sql.NullInt64{Int64: int64(fc.Cloud.Len()), Valid: true}
	}
	if fc.Image != nil {
		b := fc.Image.Bounds()
		rec.ImageWidth = sql.NullInt64{Int64: int64(b.Dx()), Valid: true}
		rec.ImageHeight = sql.NullInt64{Int64: int64(b.Dy()), Valid: true}
	}
	if fc.Labels != nil {
		rec.LabelCount = sql.NullInt64{Int64: int64(fc.Labels.Len()), Valid: true}
	}
	return r.store.RecordFrame(context.Background(), rec)
}

func (r *FrameRecorder) Redraw() error { return nil }

// Close marks the run finished.
func (r *FrameRecorder) Close() error {
	return r.store.FinishRun(context.Background(), r.runID)
}
