package monitor

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/liframe/internal/httputil"
	"github.com/banshee-data/liframe/internal/store"
)

// AssetsHost is where rendered pages load the echarts scripts from.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

func writeHTML(w http.ResponseWriter, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		_ = httputil.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleCloudChart renders a bird's-eye scatter of the latest cloud, coloured
// by height, with label centres as a second series.
func (s *Server) handleCloudChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	snap := s.Latest()
	if snap == nil {
		_ = httputil.WriteError(w, http.StatusNotFound, "no frame processed yet")
		return
	}

	pad := 1.0
	zMin, zMax := math.Inf(1), math.Inf(-1)
	pts := make([]opts.ScatterData, 0, len(snap.Sample))
	for _, p := range snap.Sample {
		pad = math.Max(pad, math.Max(math.Abs(p.X), math.Abs(p.Y)))
		zMin, zMax = math.Min(zMin, p.Z), math.Max(zMax, p.Z)
		pts = append(pts, opts.ScatterData{Value: []interface{}{p.X, p.Y, p.Z}})
	}
	if len(pts) == 0 {
		zMin, zMax = 0, 1
	}
	boxes := make([]opts.ScatterData, 0, len(snap.Boxes))
	for _, b := range snap.Boxes {
		boxes = append(boxes, opts.ScatterData{Value: []interface{}{b.Center[0], b.Center[1], b.Center[2]}})
	}
	pad = math.Ceil(pad)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Point Cloud", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Frame %d", snap.Index), Subtitle: fmt.Sprintf("points=%d shown=%d labels=%d", snap.Points, len(pts), snap.Labels)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(zMin),
			Max:        float32(zMax),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("points", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}))
	scatter.AddSeries("labels", boxes, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	writeHTML(w, scatter.Render)
}

// handleStagesChart renders the stage durations of the latest frame.
func (s *Server) handleStagesChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	snap := s.Latest()
	if snap == nil {
		_ = httputil.WriteError(w, http.StatusNotFound, "no frame processed yet")
		return
	}

	names := make([]string, 0, len(snap.Stages))
	ok := make([]opts.BarData, 0, len(snap.Stages))
	failed := make([]opts.BarData, 0, len(snap.Stages))
	for _, res := range snap.Stages {
		names = append(names, string(res.Group)+"/"+res.Name)
		ms := float64(res.Duration) / float64(time.Millisecond)
		if res.Err != nil {
			ok = append(ok, opts.BarData{Value: 0})
			failed = append(failed, opts.BarData{Value: ms})
		} else {
			ok = append(ok, opts.BarData{Value: ms})
			failed = append(failed, opts.BarData{Value: 0})
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Stage Timings", Width: "100%", Height: "600px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Stage Timings", Subtitle: "frame " + strconv.Itoa(snap.Index) + " (ms)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	stack := charts.WithBarChartOpts(opts.BarChart{Stack: "stage"})
	bar.SetXAxis(names).
		AddSeries("ok", ok, stack).
		AddSeries("failed", failed, stack)
	writeHTML(w, bar.Render)
}

// RenderRunReport writes an HTML page charting a recorded run: points and
// labels per frame, pipeline time per frame and stage failures per frame.
func RenderRunReport(w io.Writer, run store.Run, frames []store.FrameRecord) error {
	x := make([]string, 0, len(frames))
	points := make([]opts.LineData, 0, len(frames))
	labels := make([]opts.LineData, 0, len(frames))
	durations := make([]opts.LineData, 0, len(frames))
	failures := make([]opts.BarData, 0, len(frames))
	for _, f := range frames {
		x = append(x, strconv.Itoa(f.Index))
		points = append(points, nullable(f.LidarPoints.Int64, f.LidarPoints.Valid))
		labels = append(labels, nullable(f.LabelCount.Int64, f.LabelCount.Valid))
		durations = append(durations, opts.LineData{Value: float64(f.Duration) / float64(time.Millisecond)})
		failures = append(failures, opts.BarData{Value: f.Failures})
	}

	subtitle := fmt.Sprintf("run %s started %s, %d frames", run.ID, run.StartedAt.Format(time.RFC3339), len(frames))
	init := opts.Initialization{PageTitle: "Run " + run.ID, Width: "100%", Height: "420px", AssetsHost: AssetsHost}
	tooltip := charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"})

	counts := charts.NewLine()
	counts.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{Title: "Points and labels per frame", Subtitle: subtitle}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		tooltip,
	)
	counts.SetXAxis(x).
		AddSeries("lidar points", points).
		AddSeries("labels", labels)

	timing := charts.NewLine()
	timing.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{Title: "Pipeline time per frame (ms)"}),
		tooltip,
	)
	timing.SetXAxis(x).AddSeries("duration", durations)

	errs := charts.NewBar()
	errs.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{Title: "Stage failures per frame"}),
		tooltip,
	)
	errs.SetXAxis(x).AddSeries("failures", failures)

	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.PageTitle = "Run " + run.ID
	page.AddCharts(counts, timing, errs)
	return page.Render(w)
}

// nullable renders missing values as gaps.
func nullable(v int64, valid bool) opts.LineData {
	if !valid {
		return opts.LineData{Value: "-"}
	}
	return opts.LineData{Value: v}
}
