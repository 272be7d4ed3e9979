package algo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
)

// ValidateCalibration rejects calibrations with non-finite entries or a
// singular LiDAR-to-camera transform. A rejected calibration is removed from
// the frame so later stages skip projection.
func ValidateCalibration(fc *frame.Context, _ *config.Config) error {
	c := fc.Calib
	if c == nil {
		return missing(fc, "validate_calibration", "calibration")
	}
	err := checkCalibration(c)
	if err != nil {
		fc.Calib = nil
		return fmt.Errorf("%s: %w", c.Path, err)
	}
	return nil
}

func checkCalibration(c *frame.Calibration) error {
	for _, m := range []struct {
		name string
		m    *mat.Dense
		r, c int
	}{
		{"P2", c.P2, 3, 4},
		{"R0_rect", c.R0Rect, 4, 4},
		{"Tr_velo_to_cam", c.TrVeloToCam, 4, 4},
	} {
		if m.m == nil {
			if m.name == "R0_rect" {
				continue
			}
			return fmt.Errorf("%s missing", m.name)
		}
		if r, cols := m.m.Dims(); r != m.r || cols != m.c {
			return fmt.Errorf("%s is %dx%d, want %dx%d", m.name, r, cols, m.r, m.c)
		}
		raw := m.m.RawMatrix()
		for i := 0; i < raw.Rows; i++ {
			for j := 0; j < raw.Cols; j++ {
				if v := raw.Data[i*raw.Stride+j]; math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("%s[%d][%d] is not finite", m.name, i, j)
				}
			}
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(c.TrVeloToCam); err != nil {
		return fmt.Errorf("Tr_velo_to_cam is not invertible: %w", err)
	}
	return nil
}
