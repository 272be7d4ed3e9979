package algo

import (
	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
)

func missing(fc *frame.Context, stage, what string) error {
	fc.Log.Errorf("%s: %s not present in frame %d", stage, what, fc.Index)
	return nil
}

// Crop keeps the points inside proc.lidar.crop's inclusive bounds, preserving
// order, and resets point colours.
func Crop(fc *frame.Context, cfg *config.Config) error {
	if fc.Cloud == nil {
		return missing(fc, "crop", "point cloud")
	}
	b, err := cropBounds(cfg)
	if err != nil {
		return err
	}
	kept := make([]frame.Point, 0, len(fc.Cloud.Points))
	for _, p := range fc.Cloud.Points {
		if b.Contains(p.X, p.Y, p.Z) {
			kept = append(kept, p)
		}
	}
	fc.Cloud = &frame.Cloud{Path: fc.Cloud.Path, Points: kept}
	fc.Cloud.ResetColors()
	return nil
}

// ProjectImagePixelColors colours each point with the image pixel it projects
// onto. Points behind the camera or outside the image stay white.
func ProjectImagePixelColors(fc *frame.Context, _ *config.Config) error {
	switch {
	case fc.Cloud == nil:
		return missing(fc, "project_image_pixel_colors", "point cloud")
	case fc.Image == nil || fc.Image.Img == nil:
		return missing(fc, "project_image_pixel_colors", "image")
	case fc.Calib == nil:
		return missing(fc, "project_image_pixel_colors", "calibration")
	}
	img := fc.Image.Img
	bounds := img.Bounds()
	pr := newProjector(fc.Calib)

	cloud := *fc.Cloud
	cloud.ResetColors()
	for i, p := range cloud.Points {
		u, v, ok := pr.project(p)
		if !ok || u < 0 || v < 0 || u >= bounds.Dx() || v >= bounds.Dy() {
			continue
		}
		c := img.NRGBAAt(bounds.Min.X+u, bounds.Min.Y+v)
		cloud.Colors[i] = frame.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
	}
	fc.Cloud = &cloud
	return nil
}

type densifyParams struct {
	Skip   int `yaml:"skip" validate:"gte=0"`
	Count  int `yaml:"count" validate:"gte=1"`
	Points int `yaml:"points" validate:"gte=0"`
}

// Densify skips the first proc.lidar.densify.skip novel frames, then gathers
// count clouds and, once complete, replaces every following cloud with their
// concatenation. points > 0 pads or truncates the result to that size.
func Densify(fc *frame.Context, cfg *config.Config) error {
	if fc.Cloud == nil {
		return missing(fc, "densify", "point cloud")
	}
	p := densifyParams{Count: 1}
	if err := params(cfg, config.GroupLidar, "densify", &p); err != nil {
		return err
	}
	const indexKey = "densify_frames_indices"
	if !frame.Skip(fc, "densify_skip", p.Skip, indexKey) {
		return nil
	}
	if !frame.Gather(fc, "densify_gather", p.Count, indexKey) {
		return nil
	}
	frame.Combine(fc, "densify", "densify_gather")
	pts := frame.Flatten(fc.Gathered("densify"))
	if p.Points > 0 {
		var err error
		if pts, err = frame.FixedSize(pts, p.Points); err != nil {
			return err
		}
	}
	fc.Cloud = &frame.Cloud{Path: fc.Cloud.Path, Points: pts}
	fc.Cloud.ResetColors()
	return nil
}
