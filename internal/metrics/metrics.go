// Package metrics exposes playback counters in Prometheus format.
package metrics

import (
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/ingest"
	"github.com/banshee-data/liframe/internal/stage"
)

const namespace = "liframe"

// StatsFunc reports per-modality source statistics at scrape time.
type StatsFunc func() map[config.Modality]ingest.Stats

// Metrics is a stage observer and frame sink that feeds its own registry.
type Metrics struct {
	registry *prometheus.Registry

	framesProcessed prometheus.Counter
	frameIndex      prometheus.Gauge
	maxIndex        prometheus.Gauge
	lidarPoints     prometheus.Histogram
	labels          prometheus.Histogram
	stageDuration   *prometheus.HistogramVec
	stageFailures   *prometheus.CounterVec
}

// New registers the playback metrics. stats may be nil.
func New(stats StatsFunc) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Frames run through the stage pipeline",
		}),
		frameIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frame_index",
			Help:      "Index of the last processed frame",
		}),
		maxIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frame_max_index",
			Help:      "Highest selectable frame index",
		}),
		lidarPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lidar_points",
			Help:      "Points per processed cloud",
			Buckets:   prometheus.ExponentialBuckets(1000, 2, 10),
		}),
		labels: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "labels",
			Help:      "Labels per processed frame",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Stage invocation latency",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"group", "stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Stage invocations that returned an error or panicked",
		}, []string{"group", "stage"}),
	}
	m.registry.MustRegister(
		m.framesProcessed, m.frameIndex, m.maxIndex,
		m.lidarPoints, m.labels,
		m.stageDuration, m.stageFailures,
		prometheus.NewGoCollector(),
	)
	if stats != nil {
		m.registry.MustRegister(newSourceCollector(stats))
	}
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveStage implements stage.Observer.
func (m *Metrics) ObserveStage(r stage.Result) {
	g := string(r.Group)
	m.stageDuration.WithLabelValues(g, r.Name).Observe(r.Duration.Seconds())
	if r.Err != nil {
		m.stageFailures.WithLabelValues(g, r.Name).Inc()
	}
}

// Update records a processed frame.
func (m *Metrics) Update(fc *frame.Context) error {
	m.framesProcessed.Inc()
	m.frameIndex.Set(float64(fc.Index))
	m.maxIndex.Set(float64(fc.MaxIndex))
	if fc.Cloud != nil {
		m.lidarPoints.Observe(float64(fc.Cloud.Len()))
	}
	if fc.Labels != nil {
		m.labels.Observe(float64(fc.Labels.Len()))
	}
	return nil
}

func (m *Metrics) Redraw() error { return nil }
func (m *Metrics) Close() error  { return nil }

type sourceCollector struct {
	stats     StatsFunc
	length    *prometheus.Desc
	cached    *prometheus.Desc
	fallbacks *prometheus.Desc
	errors    *prometheus.Desc
	drops     *prometheus.Desc
}

func newSourceCollector(stats StatsFunc) *sourceCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "source", name), help, []string{"modality"}, nil)
	}
	return &sourceCollector{
		stats:     stats,
		length:    desc("length", "Records available from the source"),
		cached:    desc("cached", "Records decoded and held in memory"),
		fallbacks: desc("fallbacks_total", "Requests served from the last good record"),
		errors:    desc("errors_total", "Records that failed to decode"),
		drops:     desc("drops_total", "Live records evicted before they were read"),
	}
}

func (c *sourceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.length
	ch <- c.cached
	ch <- c.fallbacks
	ch <- c.errors
	ch <- c.drops
}

func (c *sourceCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.stats()
	mods := make([]string, 0, len(stats))
	for m := range stats {
		mods = append(mods, string(m))
	}
	sort.Strings(mods)
	for _, name := range mods {
		s := stats[config.Modality(name)]
		ch <- prometheus.MustNewConstMetric(c.length, prometheus.GaugeValue, float64(s.Len), name)
		ch <- prometheus.MustNewConstMetric(c.cached, prometheus.GaugeValue, float64(s.Cached), name)
		ch <- prometheus.MustNewConstMetric(c.fallbacks, prometheus.CounterValue, float64(s.Fallbacks), name)
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.Errors), name)
		ch <- prometheus.MustNewConstMetric(c.drops, prometheus.CounterValue, float64(s.Drops), name)
	}
}
