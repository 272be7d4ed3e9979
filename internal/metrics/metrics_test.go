package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/ingest"
	"github.com/banshee-data/liframe/internal/stage"
)

// find returns the metric named name whose labels include want.
func find(t *testing.T, m *Metrics, name string, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range metric.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if got[k] != v {
					continue next
				}
			}
			return metric
		}
	}
	t.Fatalf("metric %s%v not found", name, want)
	return nil
}

func TestFrameUpdates(t *testing.T) {
	m := New(nil)
	fc := frame.NewContext(nil)
	fc.Index, fc.MaxIndex = 4, 9
	fc.Cloud = &frame.Cloud{Points: make([]frame.Point, 1500)}
	require.NoError(t, m.Update(fc))
	fc.Index = 5
	fc.Cloud = nil
	fc.Labels = &frame.LabelSet{Labels: make([]frame.Label, 3)}
	require.NoError(t, m.Update(fc))

	assert.Equal(t, 2.0, find(t, m, "liframe_frames_processed_total", nil).GetCounter().GetValue())
	assert.Equal(t, 5.0, find(t, m, "liframe_frame_index", nil).GetGauge().GetValue())
	assert.Equal(t, 9.0, find(t, m, "liframe_frame_max_index", nil).GetGauge().GetValue())
	points := find(t, m, "liframe_lidar_points", nil).GetHistogram()
	assert.Equal(t, uint64(1), points.GetSampleCount())
	assert.Equal(t, 1500.0, points.GetSampleSum())
	assert.Equal(t, 3.0, find(t, m, "liframe_labels", nil).GetHistogram().GetSampleSum())
}

func TestObserveStage(t *testing.T) {
	m := New(nil)
	var _ stage.Observer = m
	m.ObserveStage(stage.Result{Group: config.GroupLidar, Name: "crop", Duration: 2 * time.Millisecond})
	m.ObserveStage(stage.Result{Group: config.GroupLidar, Name: "crop", Duration: 4 * time.Millisecond, Err: errors.New("bad")})

	labels := map[string]string{"group": "lidar", "stage": "crop"}
	h := find(t, m, "liframe_stage_duration_seconds", labels).GetHistogram()
	assert.Equal(t, uint64(2), h.GetSampleCount())
	assert.InDelta(t, 0.006, h.GetSampleSum(), 1e-9)
	assert.Equal(t, 1.0, find(t, m, "liframe_stage_failures_total", labels).GetCounter().GetValue())
}

func TestSourceCollector(t *testing.T) {
	stats := map[config.Modality]ingest.Stats{
		config.ModalityLidar: {Len: 10, Cached: 3, Errors: 1},
		config.ModalityLabel: {Len: 8, Fallbacks: 2, Drops: 4},
	}
	m := New(func() map[config.Modality]ingest.Stats { return stats })

	lidar := map[string]string{"modality": "lidar"}
	label := map[string]string{"modality": "label"}
	assert.Equal(t, 10.0, find(t, m, "liframe_source_length", lidar).GetGauge().GetValue())
	assert.Equal(t, 3.0, find(t, m, "liframe_source_cached", lidar).GetGauge().GetValue())
	assert.Equal(t, 1.0, find(t, m, "liframe_source_errors_total", lidar).GetCounter().GetValue())
	assert.Equal(t, 2.0, find(t, m, "liframe_source_fallbacks_total", label).GetCounter().GetValue())
	assert.Equal(t, 4.0, find(t, m, "liframe_source_drops_total", label).GetCounter().GetValue())

	delete(stats, config.ModalityLabel)
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "liframe_source_length" {
			assert.Len(t, mf.GetMetric(), 1, "series follow the active sources")
		}
	}
}

func TestHandler(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.Update(frame.NewContext(nil)))
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "liframe_frames_processed_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
