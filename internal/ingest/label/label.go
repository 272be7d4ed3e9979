// Package label reads per-frame 3D object annotations.
package label

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

// CalibLookup returns the calibration for a frame index, or nil.
type CalibLookup func(idx int) *frame.Calibration

// Parser decodes one label file. calib is the same frame's calibration and
// may be nil.
type Parser func(data []byte, calib *frame.Calibration) ([]frame.Label, error)

type format struct {
	ext   string
	parse Parser
}

var formats = map[string]format{
	"kitti":         {ext: ".txt", parse: ParseKITTI},
	"openpcdet":     {ext: ".txt", parse: ParseOpenPCDet},
	"sustechpoints": {ext: ".json", parse: ParseSUSTechPOINTS},
}

// Types lists the supported label types.
func Types() []string {
	out := make([]string, 0, len(formats))
	for t := range formats {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Extension returns the file extension used by typ.
func Extension(typ string) (string, error) {
	f, ok := formats[strings.ToLower(typ)]
	if !ok {
		return "", fmt.Errorf("%w: label type %q (supported: %s)",
			ingest.ErrUnsupportedFormat, typ, strings.Join(Types(), ", "))
	}
	return f.ext, nil
}

// NewFileSource opens a directory of label files of type typ. A file that
// disappeared after discovery decodes to an empty set. calib may be nil.
func NewFileSource(typ string, cfg ingest.IndexedConfig, calib CalibLookup) (*ingest.Indexed[*frame.LabelSet], error) {
	ext, err := Extension(typ)
	if err != nil {
		return nil, err
	}
	parse := formats[strings.ToLower(typ)].parse
	cfg.Ext = ext
	if cfg.FS == nil {
		cfg.FS = fsutil.OSFileSystem{}
	}
	fsys := cfg.FS
	return ingest.NewIndexed(cfg, func(idx int, path string) (*frame.LabelSet, error) {
		set := &frame.LabelSet{Path: path}
		data, err := fsys.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return set, nil
		}
		if err != nil {
			return nil, err
		}
		var c *frame.Calibration
		if calib != nil {
			c = calib(idx)
		}
		set.Labels, err = parse(data, c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return set, nil
	})
}
