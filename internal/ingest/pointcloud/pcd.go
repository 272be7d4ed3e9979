package pointcloud

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/liframe/internal/frame"
)

// scalar describes one binary field.
type scalar struct {
	size  int
	kind  byte // 'f' float, 'i' signed, 'u' unsigned
	count int
}

func (s scalar) read(b []byte) float64 {
	switch s.kind {
	case 'f':
		if s.size == 8 {
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case 'i':
		switch s.size {
		case 1:
			return float64(int8(b[0]))
		case 2:
			return float64(int16(binary.LittleEndian.Uint16(b)))
		case 4:
			return float64(int32(binary.LittleEndian.Uint32(b)))
		case 8:
			return float64(int64(binary.LittleEndian.Uint64(b)))
		}
	case 'u':
		switch s.size {
		case 1:
			return float64(b[0])
		case 2:
			return float64(binary.LittleEndian.Uint16(b))
		case 4:
			return float64(binary.LittleEndian.Uint32(b))
		case 8:
			return float64(binary.LittleEndian.Uint64(b))
		}
	}
	return 0
}

// xyzi records the column of each coordinate within a record, or -1.
type xyzi struct{ x, y, z, i int }

func locate(names []string) (xyzi, error) {
	loc := xyzi{-1, -1, -1, -1}
	for idx, n := range names {
		switch strings.ToLower(n) {
		case "x":
			loc.x = idx
		case "y":
			loc.y = idx
		case "z":
			loc.z = idx
		case "intensity", "reflectivity", "i":
			loc.i = idx
		}
	}
	if loc.x < 0 || loc.y < 0 || loc.z < 0 {
		return loc, fmt.Errorf("missing x, y or z field in %v", names)
	}
	return loc, nil
}

func (l xyzi) point(vals []float64) frame.Point {
	p := frame.Point{X: vals[l.x], Y: vals[l.y], Z: vals[l.z], Intensity: 1}
	if l.i >= 0 {
		p.Intensity = vals[l.i]
	}
	return p
}

// DecodePCD decodes ASCII and binary PCD files. Compressed binary data is
// rejected. Missing intensity defaults to 1.
func DecodePCD(data []byte) ([]frame.Point, error) {
	var (
		fields []string
		sizes  []int
		types  []string
		counts []int
		points = -1
		mode   string
	)

	r := bufio.NewReader(bytes.NewReader(data))
	consumed := 0
	for mode == "" {
		line, err := r.ReadString('\n')
		consumed += len(line)
		if err != nil && line == "" {
			return nil, fmt.Errorf("pcd: header ended without DATA")
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		key, vals := strings.ToUpper(parts[0]), parts[1:]
		switch key {
		case "FIELDS":
			fields = vals
		case "SIZE":
			sizes, err = atois(vals)
		case "TYPE":
			types = vals
		case "COUNT":
			counts, err = atois(vals)
		case "POINTS":
			if len(vals) == 1 {
				points, err = strconv.Atoi(vals[0])
			}
		case "DATA":
			if len(vals) != 1 {
				return nil, fmt.Errorf("pcd: malformed DATA line")
			}
			mode = strings.ToLower(vals[0])
		}
		if err != nil {
			return nil, fmt.Errorf("pcd: %s: %w", key, err)
		}
	}

	if counts == nil {
		counts = make([]int, len(fields))
		for i := range counts {
			counts[i] = 1
		}
	}
	if len(sizes) != len(fields) || len(types) != len(fields) || len(counts) != len(fields) {
		return nil, fmt.Errorf("pcd: FIELDS, SIZE, TYPE and COUNT disagree")
	}
	if points < 0 {
		return nil, fmt.Errorf("pcd: missing POINTS")
	}

	// Expand multi-count fields into columns; only the first column carries the name.
	var names []string
	var cols []scalar
	for i, f := range fields {
		kind := strings.ToLower(types[i])
		if kind != "f" && kind != "i" && kind != "u" {
			return nil, fmt.Errorf("pcd: unknown TYPE %q", types[i])
		}
		for c := 0; c < counts[i]; c++ {
			name := f
			if c > 0 {
				name = ""
			}
			names = append(names, name)
			cols = append(cols, scalar{size: sizes[i], kind: kind[0], count: 1})
		}
	}
	loc, err := locate(names)
	if err != nil {
		return nil, fmt.Errorf("pcd: %w", err)
	}

	hint := points
	if rest := len(data) - consumed; hint > rest {
		hint = rest
	}
	pts := make([]frame.Point, 0, hint)
	vals := make([]float64, len(cols))
	switch mode {
	case "ascii":
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() && len(pts) < points {
			parts := strings.Fields(sc.Text())
			if len(parts) == 0 {
				continue
			}
			if len(parts) < len(cols) {
				return nil, fmt.Errorf("pcd: row %d has %d values, want %d", len(pts), len(parts), len(cols))
			}
			for c := range cols {
				v, err := strconv.ParseFloat(parts[c], 64)
				if err != nil {
					return nil, fmt.Errorf("pcd: row %d: %w", len(pts), err)
				}
				vals[c] = v
			}
			pts = append(pts, loc.point(vals))
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("pcd: %w", err)
		}
	case "binary":
		stride := 0
		for _, c := range cols {
			stride += c.size
		}
		body := data[consumed:]
		if stride == 0 || points > len(body)/stride {
			return nil, fmt.Errorf("pcd: body has %d bytes, %d points of %d bytes need more", len(body), points, stride)
		}
		for n := 0; n < points; n++ {
			rec := body[n*stride:]
			off := 0
			for c, col := range cols {
				vals[c] = col.read(rec[off:])
				off += col.size
			}
			pts = append(pts, loc.point(vals))
		}
	default:
		return nil, fmt.Errorf("pcd: unsupported DATA %q", mode)
	}
	return pts, nil
}

func atois(vals []string) ([]int, error) {
	out := make([]int, len(vals))
	for i, v := range vals {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
