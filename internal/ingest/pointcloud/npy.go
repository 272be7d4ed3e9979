package pointcloud

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/banshee-data/liframe/internal/frame"
)

var npyMagic = []byte("\x93NUMPY")

var (
	npyDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']+)'`)
	npyFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// DecodeNPY decodes a C-ordered (N, 3) or (N, 4+) float32/float64 array.
// Rows with three columns get intensity 1.
func DecodeNPY(data []byte) ([]frame.Point, error) {
	if len(data) < 10 || !bytes.HasPrefix(data, npyMagic) {
		return nil, fmt.Errorf("npy: bad magic")
	}
	major := data[6]
	var headerLen, off int
	switch major {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(data[8:10]))
		off = 10
	case 2, 3:
		if len(data) < 12 {
			return nil, fmt.Errorf("npy: truncated header")
		}
		headerLen = int(binary.LittleEndian.Uint32(data[8:12]))
		off = 12
	default:
		return nil, fmt.Errorf("npy: unsupported version %d", major)
	}
	if off+headerLen > len(data) {
		return nil, fmt.Errorf("npy: truncated header")
	}
	header := string(data[off : off+headerLen])
	body := data[off+headerLen:]

	m := npyDescr.FindStringSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("npy: missing descr")
	}
	descr := m[1]
	if f := npyFortran.FindStringSubmatch(header); f != nil && f[1] == "True" {
		return nil, fmt.Errorf("npy: fortran order not supported")
	}
	s := npyShape.FindStringSubmatch(header)
	if s == nil {
		return nil, fmt.Errorf("npy: missing shape")
	}
	var dims []int
	for _, part := range strings.Split(s[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("npy: bad shape %q", s[1])
		}
		dims = append(dims, d)
	}
	if len(dims) != 2 || dims[1] < 3 {
		return nil, fmt.Errorf("npy: expected shape (N, 3+), got (%s)", s[1])
	}
	rows, cols := dims[0], dims[1]

	var size int
	var read func([]byte) float64
	switch descr {
	case "<f4", "=f4", "|f4":
		size = 4
		read = func(b []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) }
	case "<f8", "=f8", "|f8":
		size = 8
		read = func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }
	default:
		return nil, fmt.Errorf("npy: unsupported dtype %q", descr)
	}
	if rows < 0 {
		return nil, fmt.Errorf("npy: negative row count %d", rows)
	}
	stride := cols * size
	if stride <= 0 || rows > len(body)/stride {
		return nil, fmt.Errorf("npy: body has %d bytes, shape (%d, %d) needs more", len(body), rows, cols)
	}

	pts := make([]frame.Point, rows)
	for i := range pts {
		row := body[i*stride:]
		pts[i] = frame.Point{X: read(row), Y: read(row[size:]), Z: read(row[2*size:]), Intensity: 1}
		if cols > 3 {
			pts[i].Intensity = read(row[3*size:])
		}
	}
	return pts, nil
}

// EncodeNPY writes pts as a version 1.0 (N, 4) little-endian float32 array.
func EncodeNPY(pts []frame.Point) []byte {
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, 4), }", len(pts))
	// Magic, version and length take 10 bytes; pad so data starts on a 64-byte boundary.
	total := 10 + len(header) + 1
	if rem := total % 64; rem != 0 {
		header += strings.Repeat(" ", 64-rem)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	var hl [2]byte
	binary.LittleEndian.PutUint16(hl[:], uint16(len(header)))
	buf.Write(hl[:])
	buf.WriteString(header)
	buf.Write(EncodeBin(pts))
	return buf.Bytes()
}
