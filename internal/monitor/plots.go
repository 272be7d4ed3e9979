package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/liframe/internal/httputil"
)

// handleFramesPlot renders the recent frame history as a PNG.
func (s *Server) handleFramesPlot(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	var buf bytes.Buffer
	if err := PlotFrames(&buf, s.Frames()); err != nil {
		_ = httputil.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("plot error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

// PlotFrames draws points per frame and pipeline milliseconds per frame
// against the frame index.
func PlotFrames(w io.Writer, frames []FrameStat) error {
	p := plot.New()
	p.Title.Text = "Frames"
	p.X.Label.Text = "frame index"
	p.Y.Label.Text = "count / ms"

	if len(frames) > 0 {
		points := make(plotter.XYs, len(frames))
		ms := make(plotter.XYs, len(frames))
		for i, f := range frames {
			points[i].X = float64(f.Index)
			points[i].Y = float64(f.Points)
			ms[i].X = float64(f.Index)
			ms[i].Y = float64(f.Duration) / float64(time.Millisecond)
		}

		pointsLine, err := plotter.NewLine(points)
		if err != nil {
			return fmt.Errorf("points line: %w", err)
		}
		pointsLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		pointsLine.Width = vg.Points(1)
		p.Add(pointsLine)
		p.Legend.Add("lidar points", pointsLine)

		msLine, err := plotter.NewLine(ms)
		if err != nil {
			return fmt.Errorf("duration line: %w", err)
		}
		msLine.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		msLine.Width = vg.Points(1)
		p.Add(msLine)
		p.Legend.Add("pipeline ms", msLine)
	}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
