package pointcloud

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/liframe/internal/frame"
)

var plyTypes = map[string]scalar{
	"char": {1, 'i', 1}, "int8": {1, 'i', 1},
	"uchar": {1, 'u', 1}, "uint8": {1, 'u', 1},
	"short": {2, 'i', 1}, "int16": {2, 'i', 1},
	"ushort": {2, 'u', 1}, "uint16": {2, 'u', 1},
	"int": {4, 'i', 1}, "int32": {4, 'i', 1},
	"uint": {4, 'u', 1}, "uint32": {4, 'u', 1},
	"float": {4, 'f', 1}, "float32": {4, 'f', 1},
	"double": {8, 'f', 1}, "float64": {8, 'f', 1},
}

// DecodePLY decodes the vertex element of ASCII and binary little-endian PLY
// files. The vertex element must be the first element and have no list
// properties. Missing intensity defaults to 1.
func DecodePLY(data []byte) ([]frame.Point, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	consumed := 0
	readLine := func() (string, error) {
		line, err := r.ReadString('\n')
		consumed += len(line)
		if err != nil && line == "" {
			return "", fmt.Errorf("ply: unexpected end of header")
		}
		return strings.TrimSpace(line), nil
	}

	first, err := readLine()
	if err != nil || first != "ply" {
		return nil, fmt.Errorf("ply: bad magic")
	}

	var (
		format   string
		vertices = -1
		element  string
		names    []string
		cols     []scalar
		sawOther bool
	)
	for {
		line, err := readLine()
		if err != nil {
			return nil, err
		}
		if line == "end_header" {
			break
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "format":
			if len(parts) < 2 {
				return nil, fmt.Errorf("ply: malformed format line")
			}
			format = parts[1]
		case "element":
			if len(parts) != 3 {
				return nil, fmt.Errorf("ply: malformed element line %q", line)
			}
			element = parts[1]
			if element == "vertex" {
				if sawOther {
					return nil, fmt.Errorf("ply: vertex must be the first element")
				}
				vertices, err = strconv.Atoi(parts[2])
				if err != nil {
					return nil, fmt.Errorf("ply: vertex count: %w", err)
				}
			} else {
				sawOther = true
			}
		case "property":
			if element != "vertex" {
				continue
			}
			if len(parts) != 3 {
				return nil, fmt.Errorf("ply: unsupported vertex property %q", line)
			}
			t, ok := plyTypes[parts[1]]
			if !ok {
				return nil, fmt.Errorf("ply: unknown property type %q", parts[1])
			}
			names = append(names, parts[2])
			cols = append(cols, t)
		}
	}
	if vertices < 0 {
		return nil, fmt.Errorf("ply: no vertex element")
	}
	loc, err := locate(names)
	if err != nil {
		return nil, fmt.Errorf("ply: %w", err)
	}

	// Every vertex takes at least one byte, so the remaining payload bounds
	// the allocation whatever the header claims.
	hint := vertices
	if rest := len(data) - consumed; hint > rest {
		hint = rest
	}
	pts := make([]frame.Point, 0, hint)
	vals := make([]float64, len(cols))
	switch format {
	case "ascii":
		for len(pts) < vertices {
			line, err := r.ReadString('\n')
			parts := strings.Fields(line)
			if len(parts) == 0 {
				if err != nil {
					return nil, fmt.Errorf("ply: %d of %d vertices present", len(pts), vertices)
				}
				continue
			}
			if len(parts) < len(cols) {
				return nil, fmt.Errorf("ply: vertex %d has %d values, want %d", len(pts), len(parts), len(cols))
			}
			for c := range cols {
				v, perr := strconv.ParseFloat(parts[c], 64)
				if perr != nil {
					return nil, fmt.Errorf("ply: vertex %d: %w", len(pts), perr)
				}
				vals[c] = v
			}
			pts = append(pts, loc.point(vals))
		}
	case "binary_little_endian":
		stride := 0
		for _, c := range cols {
			stride += c.size
		}
		body := data[consumed:]
		if stride == 0 || vertices > len(body)/stride {
			return nil, fmt.Errorf("ply: body has %d bytes, %d vertices of %d bytes need more", len(body), vertices, stride)
		}
		for n := 0; n < vertices; n++ {
			rec := body[n*stride:]
			off := 0
			for c, col := range cols {
				vals[c] = col.read(rec[off:])
				off += col.size
			}
			pts = append(pts, loc.point(vals))
		}
	default:
		return nil, fmt.Errorf("ply: unsupported format %q", format)
	}
	return pts, nil
}
