package calib

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/liframe/internal/fsutil"
	"github.com/banshee-data/liframe/internal/ingest"
	"github.com/banshee-data/liframe/internal/logging"
)

const kittiCalib = `P0: 7.215377e+02 0.000000e+00 6.095593e+02 0.000000e+00 0.000000e+00 7.215377e+02 1.728540e+02 0.000000e+00 0.000000e+00 0.000000e+00 1.000000e+00 0.000000e+00
P2: 7.215377e+02 0.000000e+00 6.095593e+02 4.485728e+01 0.000000e+00 7.215377e+02 1.728540e+02 2.163791e-01 0.000000e+00 0.000000e+00 1.000000e+00 2.745884e-03
R0_rect: 9.999239e-01 9.837760e-03 -7.445048e-03 -9.869795e-03 9.999421e-01 -4.278459e-03 7.402527e-03 4.351614e-03 9.999631e-01
Tr_velo_to_cam: 7.533745e-03 -9.999714e-01 -6.166020e-04 -4.069766e-03 1.480249e-02 7.280733e-04 -9.998902e-01 -7.631618e-02 9.998621e-01 7.523790e-03 1.480755e-02 -2.717806e-01

Tr_imu_to_velo: 9.999976e-01 7.553071e-04 -2.035826e-03 -8.086759e-01 -7.854027e-04 9.998898e-01 -1.482298e-02 3.195559e-01 2.024406e-03 1.482454e-02 9.998881e-01 -7.997231e-01
`

func TestParseKITTI(t *testing.T) {
	c, err := ParseKITTI([]byte(kittiCalib))
	require.NoError(t, err)

	r, cols := c.P2.Dims()
	assert.Equal(t, [2]int{3, 4}, [2]int{r, cols})
	assert.InDelta(t, 44.85728, c.P2.At(0, 3), 1e-9)

	assert.InDelta(t, 0.9999239, c.R0Rect.At(0, 0), 1e-9)
	assert.Equal(t, 0.0, c.R0Rect.At(0, 3))
	assert.Equal(t, 0.0, c.R0Rect.At(3, 0))
	assert.Equal(t, 1.0, c.R0Rect.At(3, 3))

	assert.InDelta(t, -0.2717806, c.TrVeloToCam.At(2, 3), 1e-9)
	assert.Equal(t, []float64{0, 0, 0, 1}, mat.Row(nil, 3, c.TrVeloToCam))
}

func TestParseKITTIErrors(t *testing.T) {
	_, err := ParseKITTI([]byte("P2: 1 2 3\nR0_rect: 1 0 0 0 1 0 0 0 1\nTr_velo_to_cam: 1 0 0 0 0 1 0 0 0 0 1 0\n"))
	assert.ErrorContains(t, err, "P2 has 3 values")

	_, err = ParseKITTI([]byte("P2 1 2 3\n"))
	assert.ErrorContains(t, err, "malformed line")

	_, err = ParseKITTI([]byte("P2: 1 0 0 0 0 1 0 0 0 0 1 0\n"))
	assert.ErrorContains(t, err, "missing R0_rect")
}

func TestParseSUSTechPOINTS(t *testing.T) {
	data := `{
		"extrinsic": [0,-1,0,0.1, 0,0,-1,0.2, 1,0,0,0.3, 0,0,0,1],
		"intrinsic": [1000,0,960, 0,1000,540, 0,0,1]
	}`
	c, err := ParseSUSTechPOINTS([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, []float64{1000, 0, 960, 0}, mat.Row(nil, 0, c.P2))
	assert.Equal(t, []float64{0, 0, 1, 0}, mat.Row(nil, 2, c.P2))
	assert.True(t, mat.Equal(c.R0Rect, mat.NewDiagDense(4, []float64{1, 1, 1, 1})))
	assert.Equal(t, 0.3, c.TrVeloToCam.At(2, 3))

	_, err = ParseSUSTechPOINTS([]byte(`{"extrinsic": [1], "intrinsic": []}`))
	assert.ErrorContains(t, err, "extrinsic has 1 values")
}

func TestNewFileSource(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/d/calib/000000.txt", []byte(kittiCalib), 0o644))
	require.NoError(t, mfs.WriteFile("/d/calib/000001.txt", []byte("broken"), 0o644))

	src, err := NewFileSource("KITTI", ingest.IndexedConfig{Name: "calib", Dir: "/d/calib", FS: mfs, Log: logging.Nop()})
	require.NoError(t, err)
	defer src.Close()

	require.Equal(t, 2, src.Len())
	it := src.Get(0)
	require.NoError(t, it.Err)
	assert.Equal(t, "/d/calib/000000.txt", it.Record.Path)
	assert.Error(t, src.Get(1).Err)
}

func TestUnsupportedType(t *testing.T) {
	_, err := NewFileSource("nuscenes", ingest.IndexedConfig{Dir: "/d", FS: fsutil.NewMemoryFileSystem()})
	assert.True(t, errors.Is(err, ingest.ErrUnsupportedFormat))
	assert.Equal(t, []string{"kitti", "sustechpoints"}, Types())
}
