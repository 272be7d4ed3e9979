package frame

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestRotationXYZIdentity(t *testing.T) {
	r := RotationXYZ(0, 0, 0)
	assert.True(t, mat.EqualApprox(r, mat.NewDiagDense(3, []float64{1, 1, 1}), 1e-12))
}

func TestRotationZ(t *testing.T) {
	r := RotationXYZ(0, 0, math.Pi/2)
	// x axis maps to y axis.
	assert.InDelta(t, 0, r.At(0, 0), 1e-12)
	assert.InDelta(t, 1, r.At(1, 0), 1e-12)
}

func TestBBoxContains(t *testing.T) {
	box := BBox3D{Center: [3]float64{10, 0, 0}, Extent: [3]float64{4, 2, 2}}
	assert.True(t, box.Contains(Point{X: 12, Y: 1, Z: -1}), "corner is inside")
	assert.False(t, box.Contains(Point{X: 12.1}))

	// Rotated 90 degrees about z, the long side now runs along y.
	box.Euler = [3]float64{0, 0, math.Pi / 2}
	assert.True(t, box.Contains(Point{X: 10, Y: 1.9}))
	assert.False(t, box.Contains(Point{X: 11.9, Y: 0}))
}

func TestLidarToImage(t *testing.T) {
	p2 := mat.NewDense(3, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
	})
	tr := mat.NewDense(4, 4, []float64{
		1, 0, 0, 5,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	c := &Calibration{P2: p2, TrVeloToCam: tr}
	m := c.LidarToImage()
	r, cols := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 4, cols)
	assert.Equal(t, 5.0, m.At(0, 3))

	c.R0Rect = mat.NewDense(4, 4, []float64{
		2, 0, 0, 0,
		0, 2, 0, 0,
		0, 0, 2, 0,
		0, 0, 0, 1,
	})
	m = c.LidarToImage()
	assert.Equal(t, 10.0, m.At(0, 3))
}

func TestContextPresent(t *testing.T) {
	fc := &Context{}
	assert.Empty(t, fc.Present())
	fc.Cloud = &Cloud{}
	fc.Labels = &LabelSet{}
	assert.Equal(t, []string{"lidar", "label"}, fc.Present())
	assert.Equal(t, 0, fc.Labels.Len())
	assert.Equal(t, 0, (*Cloud)(nil).Len())
}

func TestResetColors(t *testing.T) {
	c := &Cloud{Points: make([]Point, 3)}
	c.ResetColors()
	assert.Equal(t, []Color{White, White, White}, c.Colors)
}
