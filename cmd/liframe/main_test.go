package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/ingest/pointcloud"
	"github.com/banshee-data/liframe/internal/store"
)

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestRootHelp(t *testing.T) {
	out, err := execute(t, context.Background(), "--help")
	require.NoError(t, err)
	for _, sub := range []string{"run", "report", "migrate"} {
		assert.Contains(t, out, sub)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv(configEnv, "")
	assert.Equal(t, "config.yml", defaultConfigPath())
	t.Setenv(configEnv, "/etc/liframe.yml")
	assert.Equal(t, "/etc/liframe.yml", defaultConfigPath())
}

func TestMigrateCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, context.Background(), "migrate", "version", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "schema version 0 (dirty=false)\n", out)

	out, err = execute(t, context.Background(), "migrate", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "schema version 1 (dirty=false)\n", out)

	out, err = execute(t, context.Background(), "migrate", "down", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "schema version 0 (dirty=false)\n", out)

	_, err = execute(t, context.Background(), "migrate", "sideways", "--db", db)
	assert.Error(t, err)
}

func TestRunConfigErrors(t *testing.T) {
	_, err := execute(t, context.Background(), "run", "--config", filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorContains(t, err, "failed to stat config file")

	bad := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(bad, []byte("data: {}\n"), 0o644))
	_, err = execute(t, context.Background(), "run", "--config", bad)
	assert.ErrorContains(t, err, ".yml or .yaml")
}

// TestRunRecordsAndReports plays a three-frame dataset into a run database
// and renders the report for it.
func TestRunRecordsAndReports(t *testing.T) {
	dir := t.TempDir()
	lidarDir := filepath.Join(dir, "data", "lidar")
	require.NoError(t, os.MkdirAll(lidarDir, 0o755))
	for i := 0; i < 3; i++ {
		pts := make([]frame.Point, i+1)
		require.NoError(t, os.WriteFile(filepath.Join(lidarDir, fmt.Sprintf("%06d.bin", i)), pointcloud.EncodeBin(pts), 0o644))
	}
	db := filepath.Join(dir, "runs.db")
	cfgPath := filepath.Join(dir, "config.yml")
	cfg := strings.Join([]string{
		"threads:",
		"  io_sleep: 0",
		"  vis_sleep: 0.001",
		"  starvation_grace: 0",
		"visualization:",
		"  enabled: false",
		"logging:",
		"  level: error",
		"  console: false",
		"data:",
		"  path: " + filepath.Join(dir, "data"),
		"  lidar:",
		"    enabled: true",
		"    pcd_type: .bin",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := execute(t, ctx, "run", "--config", cfgPath, "--db", db, "--play", "--watch=false")
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	runs, err := st.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.NotNil(t, runs[0].FinishedAt)
	assert.Equal(t, cfgPath, runs[0].ConfigPath)
	frames, err := st.Frames(context.Background(), runs[0].ID)
	require.NoError(t, err)
	var idx []int
	var points []int64
	for _, f := range frames {
		idx = append(idx, f.Index)
		points = append(points, f.LidarPoints.Int64)
	}
	assert.Equal(t, []int{0, 1, 2}, idx)
	assert.Equal(t, []int64{1, 2, 3}, points)
	require.NoError(t, st.Close())

	report := filepath.Join(dir, "report.html")
	out, err := execute(t, context.Background(), "report", "--db", db, "--out", report)
	require.NoError(t, err)
	assert.Contains(t, out, "3 frames")
	html, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(html), runs[0].ID)

	_, err = execute(t, context.Background(), "report", "--db", db, "--run", "nope", "--out", report)
	assert.ErrorContains(t, err, `run "nope" not found`)
}

func TestRunWithoutSourcesExitsCleanly(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yml")
	cfg := strings.Join([]string{
		"threads:",
		"  starvation_grace: 0",
		"visualization:",
		"  enabled: false",
		"logging:",
		"  level: error",
		"  console: false",
		"data:",
		"  path: " + filepath.Join(dir, "data"),
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := execute(t, ctx, "run", "--config", cfgPath, "--db", filepath.Join(dir, "runs.db"), "--watch=false")
	require.NoError(t, err)
	assert.NoError(t, ctx.Err(), "run stops on its own once starved")
}

func TestReportRejectsOutsidePaths(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.StartRun(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = execute(t, context.Background(), "report", "--db", db, "--out", "/proc/self/report.html")
	assert.ErrorContains(t, err, "escapes the allowed directories")
}
