package algo

import (
	"fmt"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
)

type labelBoundsParams struct {
	MinXYZ []float64 `yaml:"min_xyz" validate:"omitempty,len=3"`
	MaxXYZ []float64 `yaml:"max_xyz" validate:"omitempty,len=3"`
}

// RemoveOutOfBoundLabels keeps labels whose box centre lies within the
// stage's min_xyz/max_xyz, falling back to the lidar crop bounds.
func RemoveOutOfBoundLabels(fc *frame.Context, cfg *config.Config) error {
	if fc.Labels == nil {
		return missing(fc, "remove_out_of_bound_labels", "label list")
	}
	var p labelBoundsParams
	if err := params(cfg, config.GroupLabel, "remove_out_of_bound_labels", &p); err != nil {
		return err
	}
	var b Bounds
	switch {
	case p.MinXYZ == nil && p.MaxXYZ == nil:
		var err error
		if b, err = cropBounds(cfg); err != nil {
			return err
		}
	case p.MinXYZ == nil || p.MaxXYZ == nil:
		return fmt.Errorf("remove_out_of_bound_labels: min_xyz and max_xyz must be set together")
	default:
		b = Bounds{MinXYZ: p.MinXYZ, MaxXYZ: p.MaxXYZ}
		if err := b.check(); err != nil {
			return err
		}
	}

	kept := make([]frame.Label, 0, len(fc.Labels.Labels))
	for _, l := range fc.Labels.Labels {
		c := l.Box.Center
		if b.Contains(c[0], c[1], c[2]) {
			kept = append(kept, l)
		}
	}
	fc.Labels = &frame.LabelSet{Path: fc.Labels.Path, Labels: kept}
	return nil
}
