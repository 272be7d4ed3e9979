// Package pointcloud decodes LiDAR point clouds from dataset files and live
// sensors.
package pointcloud

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/banshee-data/liframe/internal/frame"
)

const binPointSize = 16 // x, y, z, intensity as little-endian float32

// DecodeBin decodes KITTI-style .bin scans: packed float32 (x, y, z, intensity).
func DecodeBin(data []byte) ([]frame.Point, error) {
	if len(data)%binPointSize != 0 {
		return nil, fmt.Errorf("bin: size %d is not a multiple of %d", len(data), binPointSize)
	}
	n := len(data) / binPointSize
	pts := make([]frame.Point, n)
	for i := 0; i < n; i++ {
		off := i * binPointSize
		pts[i] = frame.Point{
			X:         float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))),
			Y:         float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:]))),
			Z:         float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:]))),
			Intensity: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off+12:]))),
		}
	}
	return pts, nil
}

// EncodeBin is the inverse of DecodeBin.
func EncodeBin(pts []frame.Point) []byte {
	out := make([]byte, len(pts)*binPointSize)
	for i, p := range pts {
		off := i * binPointSize
		binary.LittleEndian.PutUint32(out[off:], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(out[off+4:], math.Float32bits(float32(p.Y)))
		binary.LittleEndian.PutUint32(out[off+8:], math.Float32bits(float32(p.Z)))
		binary.LittleEndian.PutUint32(out[off+12:], math.Float32bits(float32(p.Intensity)))
	}
	return out
}
