package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/httputil"
	"github.com/banshee-data/liframe/internal/ingest"
	"github.com/banshee-data/liframe/internal/logging"
	"github.com/banshee-data/liframe/internal/timeutil"
)

const maxSnapshotBytes = 32 << 20

// SensorKey normalises a manufacturer/model pair, e.g. "HTTP", "Snap-Shot"
// becomes "http/snapshot".
func SensorKey(manufacturer, model string) string {
	clean := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
	}
	return clean(manufacturer) + "/" + clean(model)
}

// SnapshotURL derives the poll URL from a sensor entry. A hostname carrying
// a scheme is used as is.
func SnapshotURL(sc config.SensorConfig) string {
	if strings.Contains(sc.Hostname, "://") {
		return sc.Hostname
	}
	host := sc.Hostname
	if host == "" {
		host = "localhost"
	}
	port := sc.Port
	if port == 0 {
		port = 80
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/snapshot"
}

// NewSensorSource builds a live camera source for the configured device.
func NewSensorSource(sc config.SensorConfig, size int, clock timeutil.Clock, log *logging.Logger) (*ingest.Live[*frame.Image], error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	var p ingest.Producer[*frame.Image]
	switch key := SensorKey(sc.Manufacturer, sc.Model); key {
	case "http/snapshot":
		client := &http.Client{Timeout: 5 * time.Second}
		p = NewSnapshotProducer(client, SnapshotURL(sc), sc.GetPollInterval(), clock)
	case "synthetic/pattern":
		p = NewPatternProducer(640, 480, sc.GetPollInterval(), clock)
	default:
		return nil, fmt.Errorf("%w: camera sensor %q", ingest.ErrUnsupportedFormat, key)
	}
	return ingest.NewLive(ingest.LiveConfig{
		Name:  "camera sensor",
		Size:  size,
		Clock: clock,
		Log:   log,
	}, p), nil
}

// SnapshotProducer polls a URL for still images.
type SnapshotProducer struct {
	client   httputil.Doer
	url      string
	interval time.Duration
	clock    timeutil.Clock
	polled   bool
}

// NewSnapshotProducer polls url every interval.
func NewSnapshotProducer(client httputil.Doer, url string, interval time.Duration, clock timeutil.Clock) *SnapshotProducer {
	return &SnapshotProducer{client: client, url: url, interval: interval, clock: clock}
}

// Next implements ingest.Producer.
func (s *SnapshotProducer) Next(ctx context.Context) (*frame.Image, error) {
	if s.polled {
		if err := timeutil.SleepContext(ctx, s.clock, s.interval); err != nil {
			return nil, err
		}
	}
	s.polled = true
	data, err := httputil.Fetch(ctx, s.client, s.url, maxSnapshotBytes)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return &frame.Image{Img: img}, nil
}

func (s *SnapshotProducer) Close() error { return nil }

// PatternProducer generates a diagonal gradient that scrolls one step per frame.
type PatternProducer struct {
	w, h     int
	interval time.Duration
	clock    timeutil.Clock
	n        int
}

// NewPatternProducer returns a synthetic camera of the given size.
func NewPatternProducer(w, h int, interval time.Duration, clock timeutil.Clock) *PatternProducer {
	return &PatternProducer{w: w, h: h, interval: interval, clock: clock}
}

// Next implements ingest.Producer.
func (p *PatternProducer) Next(ctx context.Context) (*frame.Image, error) {
	if err := timeutil.SleepContext(ctx, p.clock, p.interval); err != nil {
		return nil, err
	}
	img := Pattern(p.w, p.h, p.n)
	p.n++
	return &frame.Image{Img: img}, nil
}

func (p *PatternProducer) Close() error { return nil }

// Pattern is the deterministic frame n of the synthetic camera.
func Pattern(w, h, n int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x + n*4) % 256),
				G: uint8((y + n*2) % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}
