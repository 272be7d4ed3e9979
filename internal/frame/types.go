// Package frame defines the per-frame records produced by sources and the
// Context that carries them through the stage pipeline.
package frame

import (
	"image"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Point is one LiDAR return in the sensor frame.
type Point struct {
	X, Y, Z   float64
	Intensity float64
}

// Color is an RGB triple in [0, 1].
type Color struct {
	R, G, B float64
}

// White is the default point colour.
var White = Color{1, 1, 1}

// Cloud is a decoded point cloud. Colors is nil or parallel to Points.
type Cloud struct {
	Path   string
	Points []Point
	Colors []Color
}

// Len returns the number of points.
func (c *Cloud) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Points)
}

// ResetColors sets every point colour to White.
func (c *Cloud) ResetColors() {
	c.Colors = make([]Color, len(c.Points))
	for i := range c.Colors {
		c.Colors[i] = White
	}
}

// Image is a decoded camera frame.
type Image struct {
	Path string
	Img  *image.NRGBA
}

// Bounds returns the image size, or zero for an empty image.
func (im *Image) Bounds() image.Rectangle {
	if im == nil || im.Img == nil {
		return image.Rectangle{}
	}
	return im.Img.Bounds()
}

// Calibration holds the camera/LiDAR geometry for one frame.
//
//	P2          3x4 camera projection
//	R0Rect      4x4 rectification (identity padded)
//	TrVeloToCam 4x4 LiDAR-to-camera transform
type Calibration struct {
	Path        string
	P2          *mat.Dense
	R0Rect      *mat.Dense
	TrVeloToCam *mat.Dense
}

// LidarToImage returns the 3x4 matrix P2·R0Rect·TrVeloToCam. A nil R0Rect is
// treated as identity.
func (c *Calibration) LidarToImage() *mat.Dense {
	var m mat.Dense
	if c.R0Rect != nil {
		var tmp mat.Dense
		tmp.Mul(c.R0Rect, c.TrVeloToCam)
		m.Mul(c.P2, &tmp)
	} else {
		m.Mul(c.P2, c.TrVeloToCam)
	}
	return &m
}

// BBox3D is an oriented box. Euler angles are radians about x, y, z.
type BBox3D struct {
	Center    [3]float64
	Extent    [3]float64
	Euler     [3]float64
	Color     Color
	Predicted bool
}

// Rotation returns R = Rx·Ry·Rz for the box's Euler angles.
func (b BBox3D) Rotation() *mat.Dense {
	return RotationXYZ(b.Euler[0], b.Euler[1], b.Euler[2])
}

// Contains reports whether p lies inside the box, boundary included.
func (b BBox3D) Contains(p Point) bool {
	r := b.Rotation()
	d := [3]float64{p.X - b.Center[0], p.Y - b.Center[1], p.Z - b.Center[2]}
	for axis := 0; axis < 3; axis++ {
		// Local coordinate is the projection onto column `axis` of R.
		local := r.At(0, axis)*d[0] + r.At(1, axis)*d[1] + r.At(2, axis)*d[2]
		if math.Abs(local) > b.Extent[axis]/2+1e-9 {
			return false
		}
	}
	return true
}

// RotationXYZ builds Rx(rx)·Ry(ry)·Rz(rz).
func RotationXYZ(rx, ry, rz float64) *mat.Dense {
	cx, sx := math.Cos(rx), math.Sin(rx)
	cy, sy := math.Cos(ry), math.Sin(ry)
	cz, sz := math.Cos(rz), math.Sin(rz)
	x := mat.NewDense(3, 3, []float64{1, 0, 0, 0, cx, -sx, 0, sx, cx})
	y := mat.NewDense(3, 3, []float64{cy, 0, sy, 0, 1, 0, -sy, 0, cy})
	z := mat.NewDense(3, 3, []float64{cz, -sz, 0, sz, cz, 0, 0, 0, 1})
	var xy, r mat.Dense
	xy.Mul(x, y)
	r.Mul(&xy, z)
	return &r
}

// Label is one annotated object. CameraBox is set when the source format
// carries camera-frame geometry, Image when it carries image-plane
// annotations.
type Label struct {
	Class     string
	Box       BBox3D
	CameraBox *BBox3D
	Image     *ImageAnnotation
}

// ImageAnnotation holds the image-plane fields of a KITTI object label.
type ImageAnnotation struct {
	Truncated float64 // 0 (fully visible) to 1 (leaving the image)
	Occluded  int     // 0 visible, 1 partly, 2 largely occluded, 3 unknown
	Alpha     float64 // observation angle in radians
	// Box2D is left, top, right, bottom in pixels.
	Box2D [4]float64
}

// LabelSet is the decoded label file for one frame.
type LabelSet struct {
	Path   string
	Labels []Label
}

// Len returns the number of labels.
func (l *LabelSet) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Labels)
}
