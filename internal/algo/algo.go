// Package algo holds the built-in processing stages.
package algo

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/fsutil"
	"github.com/banshee-data/liframe/internal/stage"
)

var validate = validator.New()

// Builtins carries the dependencies of the built-in stages.
type Builtins struct {
	// FS receives the files written by post stages.
	FS fsutil.FileSystem
}

// Register adds every built-in stage to reg. A nil fsys writes to disk.
func Register(reg *stage.Registry, fsys fsutil.FileSystem) error {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	b := &Builtins{FS: fsys}
	entries := []struct {
		group config.Group
		name  string
		fn    stage.Func
	}{
		{config.GroupPre, "frame_summary", FrameSummary},
		{config.GroupLidar, "crop", Crop},
		{config.GroupLidar, "project_image_pixel_colors", ProjectImagePixelColors},
		{config.GroupLidar, "densify", Densify},
		{config.GroupCamera, "project_point_cloud_points", ProjectPointCloudPoints},
		{config.GroupCamera, "draw_label_boxes_2d", DrawLabelBoxes2D},
		{config.GroupCalib, "validate_calibration", ValidateCalibration},
		{config.GroupLabel, "remove_out_of_bound_labels", RemoveOutOfBoundLabels},
		{config.GroupPost, "create_pcdet_dataset", b.CreatePCDetDataset},
		{config.GroupPost, "create_per_object_pcdet_dataset", b.CreatePerObjectPCDetDataset},
	}
	for _, e := range entries {
		if err := reg.Register(e.group, e.name, e.fn); err != nil {
			return err
		}
	}
	return nil
}

// params decodes and validates the parameters of stage (g, name) into v.
// Parameters absent from cfg leave v untouched.
func params(cfg *config.Config, g config.Group, name string, v interface{}) error {
	sc, ok := cfg.Proc.Stage(g, name)
	if !ok {
		return nil
	}
	if err := sc.Decode(v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("stage %s/%s params: %w", g, name, err)
	}
	return nil
}

// Bounds is an axis-aligned box given by its inclusive corners.
type Bounds struct {
	MinXYZ []float64 `yaml:"min_xyz" validate:"len=3"`
	MaxXYZ []float64 `yaml:"max_xyz" validate:"len=3"`
}

func (b Bounds) check() error {
	for i := 0; i < 3; i++ {
		if b.MinXYZ[i] > b.MaxXYZ[i] {
			return fmt.Errorf("min_xyz[%d]=%g exceeds max_xyz[%d]=%g", i, b.MinXYZ[i], i, b.MaxXYZ[i])
		}
	}
	return nil
}

// Contains reports whether (x, y, z) lies within b, boundary included.
func (b Bounds) Contains(x, y, z float64) bool {
	return b.MinXYZ[0] <= x && x <= b.MaxXYZ[0] &&
		b.MinXYZ[1] <= y && y <= b.MaxXYZ[1] &&
		b.MinXYZ[2] <= z && z <= b.MaxXYZ[2]
}

// cropBounds reads the lidar crop parameters.
func cropBounds(cfg *config.Config) (Bounds, error) {
	var b Bounds
	if _, ok := cfg.Proc.Stage(config.GroupLidar, "crop"); !ok {
		return b, fmt.Errorf("proc.lidar.crop is not configured")
	}
	if err := params(cfg, config.GroupLidar, "crop", &b); err != nil {
		return b, err
	}
	return b, b.check()
}
