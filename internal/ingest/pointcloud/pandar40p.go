package pointcloud

import (
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/liframe/internal/frame"
)

// Pandar40P packet layout. Data blocks start at offset 0 of the UDP payload.
const (
	pandarPacketSize      = 1262
	pandarPacketSizeSeq   = 1266 // with trailing 4-byte UDP sequence
	pandarBlocks          = 10
	pandarChannels        = 40
	pandarBytesPerChannel = 3
	pandarBlockSize       = 4 + pandarChannels*pandarBytesPerChannel // preamble + azimuth + channels
	pandarTailStart       = pandarBlocks * pandarBlockSize
	pandarTailSize        = 22
	pandarPreamble        = 0xEEFF // 0xFFEE on the wire, read little-endian
	pandarMotorSpeedOff   = 8      // within the tail

	distanceResolution = 0.004 // metres per LSB
	azimuthResolution  = 0.01  // degrees per LSB
)

// AngleCorrection is one channel's calibration in degrees.
type AngleCorrection struct {
	Elevation float64
	Azimuth   float64
}

// nominalElevations are the Pandar40P design elevations, channel 1 first.
var nominalElevations = [pandarChannels]float64{
	15, 11, 8, 5, 3, 2, 1.67, 1.33, 1, 0.67,
	0.33, 0, -0.33, -0.67, -1, -1.33, -1.67, -2, -2.33, -2.67,
	-3, -3.33, -3.67, -4, -4.33, -4.67, -5, -5.33, -5.67, -6,
	-7, -8, -9, -10, -11, -12, -13, -14, -19, -25,
}

// NominalAngles returns the design angle table with no azimuth offsets.
func NominalAngles() [pandarChannels]AngleCorrection {
	var out [pandarChannels]AngleCorrection
	for i, e := range nominalElevations {
		out[i] = AngleCorrection{Elevation: e}
	}
	return out
}

// LoadAngleCorrections parses a "Channel,Elevation,Azimuth" CSV with one row
// per channel (1-40).
func LoadAngleCorrections(r io.Reader) ([pandarChannels]AngleCorrection, error) {
	var out [pandarChannels]AngleCorrection
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return out, fmt.Errorf("read angle corrections: %w", err)
	}
	if len(records) < 2 {
		return out, fmt.Errorf("insufficient data in angle correction file")
	}
	h := records[0]
	if len(h) != 3 || !strings.EqualFold(h[0], "channel") || !strings.EqualFold(h[1], "elevation") || !strings.EqualFold(h[2], "azimuth") {
		return out, fmt.Errorf("invalid header in angle correction file, expected: Channel,Elevation,Azimuth")
	}
	seen := 0
	for i, rec := range records[1:] {
		if len(rec) != 3 {
			return out, fmt.Errorf("invalid record at line %d: expected 3 fields", i+2)
		}
		ch, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil || ch < 1 || ch > pandarChannels {
			return out, fmt.Errorf("invalid channel at line %d: %q", i+2, rec[0])
		}
		el, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return out, fmt.Errorf("invalid elevation at line %d: %w", i+2, err)
		}
		az, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return out, fmt.Errorf("invalid azimuth at line %d: %w", i+2, err)
		}
		out[ch-1] = AngleCorrection{Elevation: el, Azimuth: az}
		seen++
	}
	if seen != pandarChannels {
		return out, fmt.Errorf("angle correction file has %d channels, want %d", seen, pandarChannels)
	}
	return out, nil
}

// Sample is a decoded return with the azimuth it was measured at.
type Sample struct {
	Point   frame.Point
	Azimuth float64
}

// Pandar40P decodes Hesai Pandar40P data packets.
type Pandar40P struct {
	angles     [pandarChannels]AngleCorrection
	motorSpeed uint16
}

// NewPandar40P returns a decoder using the given angle table.
func NewPandar40P(angles [pandarChannels]AngleCorrection) *Pandar40P {
	return &Pandar40P{angles: angles}
}

// MotorSpeed is the RPM reported by the last decoded packet.
func (p *Pandar40P) MotorSpeed() uint16 { return p.motorSpeed }

// Decode converts one UDP payload into samples. Zero-distance returns are skipped.
func (p *Pandar40P) Decode(payload []byte) ([]Sample, error) {
	switch len(payload) {
	case pandarPacketSize:
	case pandarPacketSizeSeq:
		payload = payload[:pandarPacketSize]
	default:
		return nil, fmt.Errorf("invalid packet size: expected %d or %d, got %d",
			pandarPacketSize, pandarPacketSizeSeq, len(payload))
	}
	tail := payload[pandarTailStart : pandarTailStart+pandarTailSize]
	p.motorSpeed = binary.LittleEndian.Uint16(tail[pandarMotorSpeedOff:])

	out := make([]Sample, 0, pandarBlocks*pandarChannels)
	for b := 0; b < pandarBlocks; b++ {
		block := payload[b*pandarBlockSize : (b+1)*pandarBlockSize]
		if pre := binary.LittleEndian.Uint16(block[0:2]); pre != pandarPreamble {
			return nil, fmt.Errorf("block %d: invalid preamble 0x%04X", b, pre)
		}
		base := float64(binary.LittleEndian.Uint16(block[2:4])) * azimuthResolution

		for ch := 0; ch < pandarChannels; ch++ {
			off := 4 + ch*pandarBytesPerChannel
			raw := binary.LittleEndian.Uint16(block[off:])
			if raw == 0 {
				continue
			}
			dist := float64(raw) * distanceResolution
			corr := p.angles[ch]
			az := math.Mod(base+corr.Azimuth+360, 360)
			azRad := az * math.Pi / 180
			elRad := corr.Elevation * math.Pi / 180
			cosEl := math.Cos(elRad)
			out = append(out, Sample{
				Point: frame.Point{
					X:         dist * cosEl * math.Sin(azRad),
					Y:         dist * cosEl * math.Cos(azRad),
					Z:         dist * math.Sin(elRad),
					Intensity: float64(block[off+2]),
				},
				Azimuth: az,
			})
		}
	}
	return out, nil
}

// rotation assembles samples into full sweeps, closing a sweep when the
// azimuth wraps from near 360 back towards 0.
type rotation struct {
	points  []frame.Point
	lastAz  float64
	started bool
	min     int
}

// add appends samples and returns a finished sweep when one completes.
func (r *rotation) add(samples []Sample) []frame.Point {
	var done []frame.Point
	for _, s := range samples {
		if r.started && r.lastAz-s.Azimuth > 180 {
			if len(r.points) >= r.min && done == nil {
				done = r.points
			}
			r.points = nil
		}
		r.points = append(r.points, s.Point)
		r.lastAz = s.Azimuth
		r.started = true
	}
	return done
}
