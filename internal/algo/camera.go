package algo

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
)

// depthShade maps LiDAR range to a red intensity: near points are bright.
func depthShade(p frame.Point) uint8 {
	d := math.Sqrt(p.X*p.X+p.Y*p.Y+p.Z*p.Z) * 6
	return uint8(255 - math.Min(math.Max(d, 0), 255))
}

// ProjectPointCloudPoints draws every point in front of the camera onto a
// copy of the image, shaded red by range.
func ProjectPointCloudPoints(fc *frame.Context, _ *config.Config) error {
	switch {
	case fc.Cloud == nil:
		return missing(fc, "project_point_cloud_points", "point cloud")
	case fc.Image == nil || fc.Image.Img == nil:
		return missing(fc, "project_point_cloud_points", "image")
	case fc.Calib == nil:
		return missing(fc, "project_point_cloud_points", "calibration")
	}
	img := imaging.Clone(fc.Image.Img)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	pr := newProjector(fc.Calib)
	for _, p := range fc.Cloud.Points {
		u, v, ok := pr.project(p)
		if !ok || u < 0 || v < 0 || u >= w || v >= h {
			continue
		}
		img.SetNRGBA(u, v, color.NRGBA{R: depthShade(p), A: 255})
	}
	fc.Image = &frame.Image{Path: fc.Image.Path, Img: img}
	return nil
}

// DrawLabelBoxes2D outlines the image-plane box of every label that carries
// one, in the label colour, on a copy of the image.
func DrawLabelBoxes2D(fc *frame.Context, _ *config.Config) error {
	switch {
	case fc.Labels == nil:
		return missing(fc, "draw_label_boxes_2d", "label list")
	case fc.Image == nil || fc.Image.Img == nil:
		return missing(fc, "draw_label_boxes_2d", "image")
	}
	img := imaging.Clone(fc.Image.Img)
	for _, l := range fc.Labels.Labels {
		if l.Image == nil {
			continue
		}
		b := l.Image.Box2D
		r := image.Rect(int(math.Round(b[0])), int(math.Round(b[1])), int(math.Round(b[2])), int(math.Round(b[3])))
		c := color.NRGBA{R: channel(l.Box.Color.R), G: channel(l.Box.Color.G), B: channel(l.Box.Color.B), A: 255}
		outline(img, r, c)
	}
	fc.Image = &frame.Image{Path: fc.Image.Path, Img: img}
	return nil
}

func channel(v float64) uint8 { return uint8(math.Round(math.Min(math.Max(v, 0), 1) * 255)) }

// outline draws the edges of r, one pixel wide, clipped to img.
func outline(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	if r.Empty() {
		return
	}
	in := func(x, y int) {
		if (image.Point{X: x, Y: y}).In(img.Bounds()) {
			img.SetNRGBA(x, y, c)
		}
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		in(x, r.Min.Y)
		in(x, r.Max.Y-1)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		in(r.Min.X, y)
		in(r.Max.X-1, y)
	}
}
