package orchestrator

import (
	"errors"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/fsutil"
	"github.com/banshee-data/liframe/internal/ingest"
	"github.com/banshee-data/liframe/internal/ingest/calib"
	"github.com/banshee-data/liframe/internal/ingest/camera"
	"github.com/banshee-data/liframe/internal/ingest/label"
	"github.com/banshee-data/liframe/internal/ingest/pointcloud"
	"github.com/banshee-data/liframe/internal/logging"
	"github.com/banshee-data/liframe/internal/timeutil"
)

// Sources holds one source per modality. A nil field is an inactive modality.
type Sources struct {
	Lidar  ingest.Source[*frame.Cloud]
	Camera ingest.Source[*frame.Image]
	Calib  ingest.Source[*frame.Calibration]
	Label  ingest.Source[*frame.LabelSet]
}

// Active reports whether m has a source.
func (s *Sources) Active(m config.Modality) bool {
	if s == nil {
		return false
	}
	switch m {
	case config.ModalityLidar:
		return s.Lidar != nil
	case config.ModalityCamera:
		return s.Camera != nil
	case config.ModalityCalib:
		return s.Calib != nil
	case config.ModalityLabel:
		return s.Label != nil
	}
	return false
}

// Any reports whether at least one modality is active.
func (s *Sources) Any() bool {
	for _, m := range config.Modalities {
		if s.Active(m) {
			return true
		}
	}
	return false
}

// Lens returns the length of every active source.
func (s *Sources) Lens() map[config.Modality]int {
	out := make(map[config.Modality]int)
	if s == nil {
		return out
	}
	if s.Lidar != nil {
		out[config.ModalityLidar] = s.Lidar.Len()
	}
	if s.Camera != nil {
		out[config.ModalityCamera] = s.Camera.Len()
	}
	if s.Calib != nil {
		out[config.ModalityCalib] = s.Calib.Len()
	}
	if s.Label != nil {
		out[config.ModalityLabel] = s.Label.Len()
	}
	return out
}

// MaxIndex is the largest length across active sources minus one, or -1
// when nothing is active or every source is empty. Unbounded live sources
// only count when no bounded source is active.
func (s *Sources) MaxIndex() int {
	longest, unbounded := 0, false
	for _, n := range s.Lens() {
		switch {
		case n >= ingest.Unbounded:
			unbounded = true
		case n > longest:
			longest = n
		}
	}
	if longest == 0 && unbounded {
		return ingest.Unbounded - 1
	}
	return longest - 1
}

// Stats returns the statistics of every active source that exposes them.
func (s *Sources) Stats() map[config.Modality]ingest.Stats {
	out := make(map[config.Modality]ingest.Stats)
	if s == nil {
		return out
	}
	add := func(m config.Modality, src interface{}) {
		if ss, ok := src.(ingest.StatsSource); ok {
			out[m] = ss.Stats()
		}
	}
	if s.Lidar != nil {
		add(config.ModalityLidar, s.Lidar)
	}
	if s.Camera != nil {
		add(config.ModalityCamera, s.Camera)
	}
	if s.Calib != nil {
		add(config.ModalityCalib, s.Calib)
	}
	if s.Label != nil {
		add(config.ModalityLabel, s.Label)
	}
	return out
}

// Load fills fc with the records at idx. Inactive modalities and indices a
// source has no record for leave the field nil.
func (s *Sources) Load(fc *frame.Context, idx int) {
	fc.Cloud = fetch(s.Lidar, idx)
	fc.Image = fetch(s.Camera, idx)
	fc.Calib = fetch(s.Calib, idx)
	fc.Labels = fetch(s.Label, idx)
}

func fetch[T any](src ingest.Source[T], idx int) T {
	var zero T
	if src == nil {
		return zero
	}
	it := src.Get(idx)
	if it.Err != nil {
		return zero
	}
	return it.Record
}

// Close closes every source and returns the joined errors.
func (s *Sources) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.Lidar != nil {
		errs = append(errs, s.Lidar.Close())
	}
	if s.Camera != nil {
		errs = append(errs, s.Camera.Close())
	}
	if s.Calib != nil {
		errs = append(errs, s.Calib.Close())
	}
	if s.Label != nil {
		errs = append(errs, s.Label.Close())
	}
	return errors.Join(errs...)
}

// Factory builds Sources from configuration.
type Factory struct {
	FS    fsutil.FileSystem
	Clock timeutil.Clock
	Log   *logging.Logger
}

func (f Factory) indexed(cfg *config.Config, m config.Modality, ext string) ingest.IndexedConfig {
	return ingest.IndexedConfig{
		Name:     string(m) + " files",
		Dir:      cfg.Dir(m),
		Ext:      ext,
		MaxCount: cfg.Data.Size,
		Delay:    cfg.GetIOSleep(),
		FS:       f.FS,
		Clock:    f.Clock,
		Log:      f.Log.Component(string(m)),
	}
}

// Build constructs a source for every enabled modality. File sources take
// precedence over sensors. A modality whose source cannot be built is logged
// at critical level and left inactive.
func (f Factory) Build(cfg *config.Config) *Sources {
	s := &Sources{}
	fail := func(m config.Modality, err error) {
		f.Log.Criticalf("%s source creation failed, disabling it: %v", m, err)
	}

	switch {
	case cfg.FileEnabled(config.ModalityLidar):
		if src, err := pointcloud.NewFileSource(f.indexed(cfg, config.ModalityLidar, cfg.Data.Lidar.PCDType)); err != nil {
			fail(config.ModalityLidar, err)
		} else {
			s.Lidar = src
		}
	case cfg.SensorEnabled(config.ModalityLidar):
		if src, err := pointcloud.NewSensorSource(cfg.Sensors.Lidar, cfg.Data.Size, f.Clock, f.Log.Component("lidar")); err != nil {
			fail(config.ModalityLidar, err)
		} else {
			s.Lidar = src
		}
	}

	switch {
	case cfg.FileEnabled(config.ModalityCamera):
		if src, err := camera.NewFileSource(f.indexed(cfg, config.ModalityCamera, cfg.Data.Camera.ImgType)); err != nil {
			fail(config.ModalityCamera, err)
		} else {
			s.Camera = src
		}
	case cfg.SensorEnabled(config.ModalityCamera):
		if src, err := camera.NewSensorSource(cfg.Sensors.Camera, cfg.Data.Size, f.Clock, f.Log.Component("camera")); err != nil {
			fail(config.ModalityCamera, err)
		} else {
			s.Camera = src
		}
	}

	if cfg.FileEnabled(config.ModalityCalib) {
		if src, err := calib.NewFileSource(cfg.Data.Calib.ClbType, f.indexed(cfg, config.ModalityCalib, "")); err != nil {
			fail(config.ModalityCalib, err)
		} else {
			s.Calib = src
		}
	}

	if cfg.FileEnabled(config.ModalityLabel) {
		lookup := func(idx int) *frame.Calibration { return fetch(s.Calib, idx) }
		if src, err := label.NewFileSource(cfg.Data.Label.LblType, f.indexed(cfg, config.ModalityLabel, ""), lookup); err != nil {
			fail(config.ModalityLabel, err)
		} else {
			s.Label = src
		}
	}
	return s
}
