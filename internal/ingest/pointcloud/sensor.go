package pointcloud

import (
	"context"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/ingest"
	"github.com/banshee-data/liframe/internal/logging"
	"github.com/banshee-data/liframe/internal/timeutil"
)

// SensorKey normalises a manufacturer/model pair, e.g. "Hesai", "Pandar-40P"
// becomes "hesai/pandar40p".
func SensorKey(manufacturer, model string) string {
	clean := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
	}
	return clean(manufacturer) + "/" + clean(model)
}

const defaultHesaiPort = 2368

// NewSensorSource builds a live point cloud source for the configured device.
func NewSensorSource(sc config.SensorConfig, size int, clock timeutil.Clock, log *logging.Logger) (*ingest.Live[*frame.Cloud], error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	var p ingest.Producer[*frame.Cloud]
	switch key := SensorKey(sc.Manufacturer, sc.Model); key {
	case "hesai/pandar40p":
		angles := NominalAngles()
		if sc.Calibration != "" {
			f, err := os.Open(sc.Calibration)
			if err != nil {
				return nil, fmt.Errorf("open calibration: %w", err)
			}
			angles, err = LoadAngleCorrections(f)
			f.Close()
			if err != nil {
				return nil, err
			}
		}
		port := sc.Port
		if port == 0 {
			port = defaultHesaiPort
		}
		var src PacketSource
		var err error
		if sc.PCAPFile != "" {
			src, err = OpenPCAP(sc.PCAPFile, port, true, clock)
		} else {
			src, err = ListenUDP(net.JoinHostPort(sc.Hostname, strconv.Itoa(port)), 4<<20)
		}
		if err != nil {
			return nil, err
		}
		p = NewRotationProducer(src, NewPandar40P(angles), log)
	case "synthetic/disc":
		p = NewDiscProducer(sc.GetPollInterval(), clock)
	default:
		return nil, fmt.Errorf("%w: lidar sensor %q", ingest.ErrUnsupportedFormat, key)
	}
	return ingest.NewLive(ingest.LiveConfig{
		Name:  "lidar sensor",
		Size:  size,
		Clock: clock,
		Log:   log,
	}, p), nil
}

// RotationProducer turns a packet stream into one cloud per sweep.
type RotationProducer struct {
	src PacketSource
	dec *Pandar40P
	rot rotation
	log *logging.Logger
	bad uint64
}

// NewRotationProducer assembles sweeps decoded by dec from src.
func NewRotationProducer(src PacketSource, dec *Pandar40P, log *logging.Logger) *RotationProducer {
	return &RotationProducer{src: src, dec: dec, rot: rotation{min: 1}, log: log}
}

// Next implements ingest.Producer.
func (p *RotationProducer) Next(ctx context.Context) (*frame.Cloud, error) {
	for {
		payload, err := p.src.ReadPacket(ctx)
		if err != nil {
			return nil, err
		}
		samples, err := p.dec.Decode(payload)
		if err != nil {
			p.bad++
			if p.bad == 1 || p.bad%1000 == 0 {
				p.log.Warnf("lidar: dropped %d malformed packets: %v", p.bad, err)
			}
			continue
		}
		if pts := p.rot.add(samples); pts != nil {
			p.log.Debugf("lidar: sweep with %d points at %d RPM", len(pts), p.dec.MotorSpeed())
			return &frame.Cloud{Points: pts}, nil
		}
	}
}

func (p *RotationProducer) Close() error { return p.src.Close() }

// DiscProducer generates a flat ring of ground points with a box-shaped
// object moving through it, one cloud per interval.
type DiscProducer struct {
	interval time.Duration
	clock    timeutil.Clock
	n        int
}

// NewDiscProducer returns a synthetic LiDAR.
func NewDiscProducer(interval time.Duration, clock timeutil.Clock) *DiscProducer {
	return &DiscProducer{interval: interval, clock: clock}
}

// Next implements ingest.Producer.
func (d *DiscProducer) Next(ctx context.Context) (*frame.Cloud, error) {
	if err := timeutil.SleepContext(ctx, d.clock, d.interval); err != nil {
		return nil, err
	}
	cloud := &frame.Cloud{Points: DiscCloud(d.n)}
	d.n++
	return cloud, nil
}

func (d *DiscProducer) Close() error { return nil }

// DiscCloud is the deterministic cloud for sweep n.
func DiscCloud(n int) []frame.Point {
	const (
		rings        = 8
		perRing      = 180
		groundZ      = -1.7
		objectPoints = 200
	)
	pts := make([]frame.Point, 0, rings*perRing+objectPoints)
	for r := 1; r <= rings; r++ {
		radius := float64(r) * 2.5
		for i := 0; i < perRing; i++ {
			a := 2 * math.Pi * float64(i) / perRing
			pts = append(pts, frame.Point{
				X:         radius * math.Cos(a),
				Y:         radius * math.Sin(a),
				Z:         groundZ,
				Intensity: 0.2,
			})
		}
	}
	// A 4m x 1.8m x 1.5m object crossing along x at 1m per sweep.
	cx := -15 + float64(n%30)
	for i := 0; i < objectPoints; i++ {
		u := float64(i%20) / 19
		v := float64(i/20) / 9
		pts = append(pts, frame.Point{
			X:         cx - 2 + 4*u,
			Y:         4,
			Z:         groundZ + 1.5*v,
			Intensity: 0.9,
		})
	}
	return pts
}
