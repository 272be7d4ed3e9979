package label

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/fsutil"
	"github.com/banshee-data/liframe/internal/ingest"
	"github.com/banshee-data/liframe/internal/logging"
)

// veloToCam maps LiDAR (x fwd, y left, z up) to camera (x right, y down, z fwd).
func veloToCam() *frame.Calibration {
	return &frame.Calibration{
		P2:     mat.NewDense(3, 4, []float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0}),
		R0Rect: mat.NewDense(4, 4, []float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}),
		TrVeloToCam: mat.NewDense(4, 4, []float64{
			0, -1, 0, 0,
			0, 0, -1, 0,
			1, 0, 0, 0,
			0, 0, 0, 1,
		}),
	}
}

const kittiLine = "Car 0.00 0 -1.58 587.01 173.33 614.12 200.12 1.50 1.60 3.90 1.00 1.50 10.00 -1.59\n"

func TestParseKITTI(t *testing.T) {
	labels, err := ParseKITTI([]byte(kittiLine+"\nMystery 0 0 0 0 0 0 0 1 1 1 0 0 5 0\n"), veloToCam())
	require.NoError(t, err)
	require.Len(t, labels, 2)

	car := labels[0]
	assert.Equal(t, "Car", car.Class)
	assert.InDeltaSlice(t, []float64{10, -1, -0.75}, car.Box.Center[:], 1e-9)
	assert.Equal(t, [3]float64{1.6, 3.9, 1.5}, car.Box.Extent)
	assert.Equal(t, [3]float64{0, 0, 1.59}, car.Box.Euler)
	assert.Equal(t, frame.Color{R: 0, G: 1, B: 0}, car.Box.Color)
	require.NotNil(t, car.CameraBox)
	assert.Equal(t, car.Box, *car.CameraBox)
	assert.Equal(t, &frame.ImageAnnotation{
		Truncated: 0,
		Occluded:  0,
		Alpha:     -1.58,
		Box2D:     [4]float64{587.01, 173.33, 614.12, 200.12},
	}, car.Image)

	assert.Equal(t, frame.White, labels[1].Box.Color)
}

func TestParseKITTIWithoutCalib(t *testing.T) {
	labels, err := ParseKITTI([]byte(kittiLine), nil)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestParseKITTIShortLine(t *testing.T) {
	_, err := ParseKITTI([]byte("Car 0 0\n"), veloToCam())
	assert.ErrorContains(t, err, "line 1 has 3 fields")
}

func TestParseOpenPCDet(t *testing.T) {
	labels, err := ParseOpenPCDet([]byte("1 2 3 4 5 6 0.5 Car\n\n-1 0 0 1 1 2 -0.2 Pedestrian\n"), nil)
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, frame.Label{
		Class: "Car",
		Box: frame.BBox3D{
			Center: [3]float64{1, 2, 3},
			Extent: [3]float64{4, 5, 6},
			Euler:  [3]float64{0, 0, 0.5},
			Color:  frame.Color{G: 1},
		},
	}, labels[0])
	assert.Equal(t, "Pedestrian", labels[1].Class)

	_, err = ParseOpenPCDet([]byte("1 2 3 Car\n"), nil)
	assert.Error(t, err)
}

func TestParseSUSTechPOINTS(t *testing.T) {
	data := `[
		{"obj_id": "1", "obj_type": "Car", "psr": {
			"position": {"x": 1, "y": 2, "z": 0.5},
			"rotation": {"x": 0, "y": 0, "z": 1.2},
			"scale": {"x": 4, "y": 2, "z": 1.5}}},
		{"obj_id": "2", "obj_type": "Spaceship", "psr": {
			"position": {"x": 0, "y": 0, "z": 0},
			"rotation": {"x": 0, "y": 0, "z": 0},
			"scale": {"x": 1, "y": 1, "z": 1}}}
	]`
	labels, err := ParseSUSTechPOINTS([]byte(data), nil)
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, [3]float64{1, 2, 0.5}, labels[0].Box.Center)
	assert.Equal(t, [3]float64{4, 2, 1.5}, labels[0].Box.Extent)
	assert.Equal(t, [3]float64{0, 0, 1.2}, labels[0].Box.Euler)
	assert.Equal(t, frame.Color{G: 1}, labels[0].Box.Color)
	assert.Equal(t, frame.Color{}, labels[1].Box.Color, "unknown types are black")
}

func TestNewFileSourceUsesCalibLookup(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/d/label/000000.txt", []byte(kittiLine), 0o644))
	require.NoError(t, mfs.WriteFile("/d/label/000001.txt", []byte(kittiLine), 0o644))

	var asked []int
	lookup := func(idx int) *frame.Calibration {
		asked = append(asked, idx)
		if idx == 0 {
			return veloToCam()
		}
		return nil
	}
	src, err := NewFileSource("kitti", ingest.IndexedConfig{Name: "label", Dir: "/d/label", FS: mfs, Log: logging.Nop()}, lookup)
	require.NoError(t, err)
	src.Wait()
	defer src.Close()

	first := src.Get(0)
	require.NoError(t, first.Err)
	assert.Equal(t, 1, first.Record.Len())
	second := src.Get(1)
	require.NoError(t, second.Err)
	assert.Equal(t, 0, second.Record.Len(), "no calibration, no labels")
	assert.Equal(t, []int{0, 1}, asked)
}

func TestNewFileSourceUnsupported(t *testing.T) {
	_, err := NewFileSource("waymo", ingest.IndexedConfig{Dir: "/d", FS: fsutil.NewMemoryFileSystem()}, nil)
	assert.True(t, errors.Is(err, ingest.ErrUnsupportedFormat))
	assert.Equal(t, []string{"kitti", "openpcdet", "sustechpoints"}, Types())
}
