package algo

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/liframe/internal/frame"
)

// projector maps LiDAR points to image pixels.
type projector struct {
	m *mat.Dense // 3x4
}

func newProjector(c *frame.Calibration) projector {
	return projector{m: c.LidarToImage()}
}

// project returns the pixel (truncated towards zero, like an integer cast)
// and camera depth of p. ok is false for points at or behind the camera.
func (pr projector) project(p frame.Point) (u, v int, ok bool) {
	m := pr.m
	x := m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)*p.Z + m.At(0, 3)
	y := m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)*p.Z + m.At(1, 3)
	z := m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)*p.Z + m.At(2, 3)
	if z <= 0 {
		return 0, 0, false
	}
	return int(x / z), int(y / z), true
}
