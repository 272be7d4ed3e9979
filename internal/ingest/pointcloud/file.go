package pointcloud

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/fsutil"
	"github.com/banshee-data/liframe/internal/ingest"
)

// Decoder converts file contents into points.
type Decoder func(data []byte) ([]frame.Point, error)

var decoders = map[string]Decoder{
	".bin": DecodeBin,
	".npy": DecodeNPY,
	".pcd": DecodePCD,
	".ply": DecodePLY,
}

// Extensions lists the supported file extensions.
func Extensions() []string {
	out := make([]string, 0, len(decoders))
	for ext := range decoders {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// DecoderFor returns the decoder registered for ext.
func DecoderFor(ext string) (Decoder, error) {
	dec, ok := decoders[strings.ToLower(ext)]
	if !ok {
		return nil, fmt.Errorf("%w: point cloud type %q (supported: %s)",
			ingest.ErrUnsupportedFormat, ext, strings.Join(Extensions(), ", "))
	}
	return dec, nil
}

// NewFileSource opens a directory of point cloud files. cfg.Ext selects the decoder.
func NewFileSource(cfg ingest.IndexedConfig) (*ingest.Indexed[*frame.Cloud], error) {
	dec, err := DecoderFor(cfg.Ext)
	if err != nil {
		return nil, err
	}
	if cfg.FS == nil {
		cfg.FS = fsutil.OSFileSystem{}
	}
	fsys := cfg.FS
	return ingest.NewIndexed(cfg, func(idx int, path string) (*frame.Cloud, error) {
		data, err := fsys.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ingest.ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		pts, err := dec(data)
		if err != nil {
			return nil, err
		}
		return &frame.Cloud{Path: path, Points: pts}, nil
	})
}
