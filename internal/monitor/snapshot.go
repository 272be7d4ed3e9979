package monitor

import (
	"time"

	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/stage"
)

// Snapshot is the chartable part of one processed frame.
type Snapshot struct {
	Index      int            `json:"index"`
	MaxIndex   int            `json:"max_index"`
	CapturedAt time.Time      `json:"captured_at"`
	Present    []string       `json:"present"`
	Points     int            `json:"points"`
	Sample     []frame.Point  `json:"-"`
	Colors     []frame.Color  `json:"-"`
	Boxes      []frame.BBox3D `json:"-"`
	ImageSize  [2]int         `json:"image_size"`
	Labels     int            `json:"labels"`
	Stages     []stage.Result `json:"-"`
}

// FrameStat is one entry of the frames plot.
type FrameStat struct {
	Index    int
	Points   int
	Labels   int
	Duration time.Duration
}

// newSnapshot copies what the charts need out of fc, keeping at most
// maxPoints evenly strided points.
func newSnapshot(fc *frame.Context, maxPoints int, now time.Time) *Snapshot {
	snap := &Snapshot{
		Index:      fc.Index,
		MaxIndex:   fc.MaxIndex,
		CapturedAt: now,
		Points:     fc.Cloud.Len(),
		Labels:     fc.Labels.Len(),
	}
	snap.Present = fc.Present()
	if b := fc.Image.Bounds(); !b.Empty() {
		snap.ImageSize = [2]int{b.Dx(), b.Dy()}
	}
	if fc.Cloud != nil && len(fc.Cloud.Points) > 0 {
		stride := (len(fc.Cloud.Points) + maxPoints - 1) / maxPoints
		for i := 0; i < len(fc.Cloud.Points); i += stride {
			snap.Sample = append(snap.Sample, fc.Cloud.Points[i])
			if len(fc.Cloud.Colors) == len(fc.Cloud.Points) {
				snap.Colors = append(snap.Colors, fc.Cloud.Colors[i])
			}
		}
	}
	if fc.Labels != nil {
		for _, l := range fc.Labels.Labels {
			snap.Boxes = append(snap.Boxes, l.Box)
		}
	}
	return snap
}
