package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/fsutil"
	"github.com/banshee-data/liframe/internal/httputil"
	"github.com/banshee-data/liframe/internal/ingest"
	"github.com/banshee-data/liframe/internal/logging"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeKeepsRGB(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.RGBA{R: 255, A: 255})
	src.Set(1, 0, color.RGBA{B: 255, A: 255})

	img, err := Decode(encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, img.NRGBAAt(1, 0))

	_, err = Decode([]byte("not an image"))
	assert.Error(t, err)
}

func TestNewFileSource(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/d/camera/000002.png", encodePNG(t, Pattern(4, 3, 0)), 0o644))
	require.NoError(t, mfs.WriteFile("/d/camera/000010.png", encodePNG(t, Pattern(4, 3, 1)), 0o644))
	require.NoError(t, mfs.WriteFile("/d/camera/000001.txt", []byte("ignored"), 0o644))

	src, err := NewFileSource(ingest.IndexedConfig{Name: "camera", Dir: "/d/camera", Ext: ".png", FS: mfs, Log: logging.Nop()})
	require.NoError(t, err)
	defer src.Close()

	require.Equal(t, 2, src.Len())
	it := src.Get(1)
	require.NoError(t, it.Err)
	assert.Equal(t, "/d/camera/000010.png", it.Record.Path)
	assert.Equal(t, image.Rect(0, 0, 4, 3), it.Record.Bounds())
	assert.Equal(t, Pattern(4, 3, 1).Pix, it.Record.Img.Pix)
}

func TestNewFileSourceUnsupported(t *testing.T) {
	_, err := NewFileSource(ingest.IndexedConfig{Dir: "/d", Ext: ".webp", FS: fsutil.NewMemoryFileSystem()})
	assert.True(t, errors.Is(err, ingest.ErrUnsupportedFormat))
}

func TestSnapshotProducer(t *testing.T) {
	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, Pattern(8, 8, 0), nil))
	client := httputil.NewStubClient(
		httputil.StubResponse{Status: http.StatusOK, Body: jpg.Bytes()},
		httputil.StubResponse{Status: http.StatusNotFound},
	)
	p := NewSnapshotProducer(client, "http://cam:8080/snapshot", 0, nil)

	im, err := p.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), im.Bounds())

	_, err = p.Next(context.Background())
	assert.ErrorContains(t, err, "status 404")
	assert.Equal(t, 2, client.Requests())
}

func TestPatternProducer(t *testing.T) {
	p := NewPatternProducer(16, 8, 0, nil)
	a, err := p.Next(context.Background())
	require.NoError(t, err)
	b, err := p.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Pattern(16, 8, 0).Pix, a.Img.Pix)
	assert.NotEqual(t, a.Img.Pix, b.Img.Pix)
}

func TestSnapshotURL(t *testing.T) {
	assert.Equal(t, "http://10.0.0.5:8080/snapshot", SnapshotURL(config.SensorConfig{Hostname: "10.0.0.5", Port: 8080}))
	assert.Equal(t, "http://localhost:80/snapshot", SnapshotURL(config.SensorConfig{}))
	assert.Equal(t, "https://cam.local/still.jpg", SnapshotURL(config.SensorConfig{Hostname: "https://cam.local/still.jpg"}))
}

func TestNewSensorSource(t *testing.T) {
	_, err := NewSensorSource(config.SensorConfig{Manufacturer: "flir", Model: "bfs-pge-16s2c-cs"}, 5, nil, logging.Nop())
	assert.True(t, errors.Is(err, ingest.ErrUnsupportedFormat))

	interval := 0.001
	src, err := NewSensorSource(config.SensorConfig{Manufacturer: "Synthetic", Model: "Pattern", PollInterval: &interval}, 5, nil, logging.Nop())
	require.NoError(t, err)
	defer src.Close()
	it := src.Get(0)
	require.NoError(t, it.Err)
	assert.Equal(t, image.Rect(0, 0, 640, 480), it.Record.Bounds())
}
