package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/logging"
	"github.com/banshee-data/liframe/internal/stage"
	"github.com/banshee-data/liframe/internal/timeutil"
)

func openTest(t *testing.T) (*Store, *timeutil.MockClock) {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.SetClock(clock)
	return s, clock
}

func TestMigrations(t *testing.T) {
	s, _ := openTest(t)
	v, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	require.NoError(t, s.MigrateUp(), "re-applying is a no-op")

	require.NoError(t, s.MigrateDown())
	v, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	_, err = s.Runs(context.Background())
	assert.Error(t, err, "tables are gone after rolling back")
}

func TestRunLifecycle(t *testing.T) {
	s, clock := openTest(t)
	ctx := context.Background()

	first, err := s.StartRun(ctx, "a.yml")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := s.StartRun(ctx, "b.yml")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	clock.Advance(time.Minute)
	require.NoError(t, s.FinishRun(ctx, first.ID))
	assert.ErrorIs(t, s.FinishRun(ctx, "missing"), sql.ErrNoRows)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID, "newest first")
	assert.Nil(t, runs[0].FinishedAt)
	require.NotNil(t, runs[1].FinishedAt)
	assert.Equal(t, first.StartedAt.Add(2*time.Minute), *runs[1].FinishedAt)
	assert.Equal(t, "a.yml", runs[1].ConfigPath)
}

func TestFrameRecorder(t *testing.T) {
	s, clock := openTest(t)
	ctx := context.Background()
	run, err := s.StartRun(ctx, "")
	require.NoError(t, err)

	rec := NewFrameRecorder(s, run.ID, logging.Nop())
	var _ stage.Observer = rec

	rec.ObserveStage(stage.Result{Group: config.GroupLidar, Name: "crop", Index: 0, Duration: 3 * time.Millisecond})
	rec.ObserveStage(stage.Result{Group: config.GroupPost, Name: "write", Index: 0, Duration: 2 * time.Millisecond, Err: errors.New("disk full")})
	fc := frame.NewContext(nil)
	fc.Cloud = &frame.Cloud{Points: make([]frame.Point, 12)}
	fc.Image = &frame.Image{Img: image.NewNRGBA(image.Rect(0, 0, 4, 3))}
	require.NoError(t, rec.Update(fc))

	clock.Advance(time.Second)
	fc = frame.NewContext(nil)
	fc.Index = 1
	fc.Labels = &frame.LabelSet{Labels: make([]frame.Label, 2)}
	fc.Calib = &frame.Calibration{}
	require.NoError(t, rec.Update(fc))
	require.NoError(t, rec.Redraw())
	require.NoError(t, rec.Close())

	frames, err := s.Frames(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	f0 := frames[0]
	assert.Equal(t, 0, f0.Index)
	assert.Equal(t, int64(12), f0.LidarPoints.Int64)
	assert.Equal(t, int64(4), f0.ImageWidth.Int64)
	assert.Equal(t, int64(3), f0.ImageHeight.Int64)
	assert.False(t, f0.LabelCount.Valid)
	assert.False(t, f0.HasCalib)
	assert.Equal(t, 5*time.Millisecond, f0.Duration)
	assert.Equal(t, 1, f0.Failures)

	f1 := frames[1]
	assert.Equal(t, 1, f1.Index)
	assert.False(t, f1.LidarPoints.Valid)
	assert.Equal(t, int64(2), f1.LabelCount.Int64)
	assert.True(t, f1.HasCalib)
	assert.Zero(t, f1.Duration, "totals reset after each frame")
	assert.Equal(t, f0.ProcessedAt.Add(time.Second), f1.ProcessedAt)

	failures, err := s.StageFailures(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "post", failures[0].Group)
	assert.Equal(t, "write", failures[0].Name)
	assert.Equal(t, "disk full", failures[0].Error)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs[0].FinishedAt, "Close finishes the run")
}

func TestAdminRoutes(t *testing.T) {
	s, _ := openTest(t)
	_, err := s.StartRun(context.Background(), "cfg.yml")
	require.NoError(t, err)

	mux := http.NewServeMux()
	require.NoError(t, s.AttachAdminRoutes(mux))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "cfg.yml", runs[0].ConfigPath)
}
