// Package camera decodes camera frames from dataset files and live devices.
package camera

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/fsutil"
	"github.com/banshee-data/liframe/internal/ingest"
)

var extensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".gif":  true,
}

// Extensions lists the supported image file extensions.
func Extensions() []string {
	out := make([]string, 0, len(extensions))
	for ext := range extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Decode converts encoded image bytes into RGB(A) pixels, applying any EXIF
// orientation.
func Decode(data []byte) (*image.NRGBA, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return imaging.Clone(img), nil
}

// NewFileSource opens a directory of images with extension cfg.Ext.
func NewFileSource(cfg ingest.IndexedConfig) (*ingest.Indexed[*frame.Image], error) {
	if !extensions[strings.ToLower(cfg.Ext)] {
		return nil, fmt.Errorf("%w: image type %q (supported: %s)",
			ingest.ErrUnsupportedFormat, cfg.Ext, strings.Join(Extensions(), ", "))
	}
	if cfg.FS == nil {
		cfg.FS = fsutil.OSFileSystem{}
	}
	fsys := cfg.FS
	return ingest.NewIndexed(cfg, func(idx int, path string) (*frame.Image, error) {
		data, err := fsys.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ingest.ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		img, err := Decode(data)
		if err != nil {
			return nil, err
		}
		return &frame.Image{Path: path, Img: img}, nil
	})
}
