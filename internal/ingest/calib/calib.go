// Package calib reads per-frame camera/LiDAR calibration files.
package calib

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/fsutil"
	"github.com/banshee-data/liframe/internal/ingest"
)

// Parser decodes one calibration file.
type Parser func(data []byte) (*frame.Calibration, error)

type format struct {
	ext   string
	parse Parser
}

var formats = map[string]format{
	"kitti":         {ext: ".txt", parse: ParseKITTI},
	"sustechpoints": {ext: ".json", parse: ParseSUSTechPOINTS},
}

// Types lists the supported calibration types.
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
		return "", fmt.Errorf("%w: calibration type %q (supported: %s)",
			ingest.ErrUnsupportedFormat, typ, strings.Join(Types(), ", "))
	}
	return f.ext, nil
}

// NewFileSource opens a directory of calibration files of type typ. cfg.Ext is
// set from the type.
func NewFileSource(typ string, cfg ingest.IndexedConfig) (*ingest.Indexed[*frame.Calibration], error) {
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
	return ingest.NewIndexed(cfg, func(idx int, path string) (*frame.Calibration, error) {
		data, err := fsys.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ingest.ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		c, err := parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		c.Path = path
		return c, nil
	})
}

// ParseKITTI reads "key: v1 v2 ..." lines. P2 is 3x4, R0_rect 3x3 and
// Tr_velo_to_cam 3x4; both of the latter are padded to homogeneous 4x4.
func ParseKITTI(data []byte) (*frame.Calibration, error) {
	values := make(map[string][]float64)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, rest, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("kitti calib: malformed line %q", line)
		}
		var vals []float64
		for _, f := range strings.Fields(rest) {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("kitti calib: %s: %w", key, err)
			}
			vals = append(vals, v)
		}
		values[strings.TrimSpace(key)] = vals
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	get := func(key string, n int) ([]float64, error) {
		v, ok := values[key]
		if !ok {
			return nil, fmt.Errorf("kitti calib: missing %s", key)
		}
		if len(v) != n {
			return nil, fmt.Errorf("kitti calib: %s has %d values, want %d", key, len(v), n)
		}
		return v, nil
	}
	p2, err := get("P2", 12)
	if err != nil {
		return nil, err
	}
	r0, err := get("R0_rect", 9)
	if err != nil {
		return nil, err
	}
	tr, err := get("Tr_velo_to_cam", 12)
	if err != nil {
		return nil, err
	}
	return &frame.Calibration{
		P2:          mat.NewDense(3, 4, p2),
		R0Rect:      padRotation(r0),
		TrVeloToCam: padTransform(tr),
	}, nil
}

// padRotation embeds a row-major 3x3 into a 4x4 identity.
func padRotation(r []float64) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		r[0], r[1], r[2], 0,
		r[3], r[4], r[5], 0,
		r[6], r[7], r[8], 0,
		0, 0, 0, 1,
	})
}

// padTransform appends the homogeneous row to a row-major 3x4.
func padTransform(t []float64) *mat.Dense {
	out := make([]float64, 16)
	copy(out, t)
	out[15] = 1
	return mat.NewDense(4, 4, out)
}

type sustechCalib struct {
	Extrinsic []float64 `json:"extrinsic"`
	Intrinsic []float64 `json:"intrinsic"`
}

// ParseSUSTechPOINTS reads a SUSTechPOINTS camera calibration. The 4x4
// extrinsic is the LiDAR-to-camera transform; the 3x3 intrinsic becomes P2
// with a zero fourth column. R0_rect is identity.
func ParseSUSTechPOINTS(data []byte) (*frame.Calibration, error) {
	var raw sustechCalib
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("sustechpoints calib: %w", err)
	}
	if len(raw.Extrinsic) != 16 {
		return nil, fmt.Errorf("sustechpoints calib: extrinsic has %d values, want 16", len(raw.Extrinsic))
	}
	if len(raw.Intrinsic) != 9 {
		return nil, fmt.Errorf("sustechpoints calib: intrinsic has %d values, want 9", len(raw.Intrinsic))
	}
	k := raw.Intrinsic
	p2 := mat.NewDense(3, 4, []float64{
		k[0], k[1], k[2], 0,
		k[3], k[4], k[5], 0,
		k[6], k[7], k[8], 0,
	})
	eye := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		eye.Set(i, i, 1)
	}
	return &frame.Calibration{
		P2:          p2,
		R0Rect:      eye,
		TrVeloToCam: mat.NewDense(4, 4, append([]float64(nil), raw.Extrinsic...)),
	}, nil
}
