// Package config loads the YAML configuration that drives sources, stages,
// playback pacing, logging and the optional monitor and store surfaces.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure returned by Load and Validate.
var ErrInvalid = errors.New("invalid configuration")

// Modality names a kind of per-frame record.
type Modality string

const (
	ModalityLidar  Modality = "lidar"
	ModalityCamera Modality = "camera"
	ModalityCalib  Modality = "calib"
	ModalityLabel  Modality = "label"
)

// Modalities lists every modality in source construction order. Calibration
// precedes labels because some label formats need it.
var Modalities = []Modality{ModalityLidar, ModalityCamera, ModalityCalib, ModalityLabel}

// Config is the root document.
type Config struct {
	Data          DataConfig          `yaml:"data"`
	Sensors       SensorsConfig       `yaml:"sensors"`
	Proc          Proc                `yaml:"proc"`
	Visualization VisualizationConfig `yaml:"visualization"`
	Logging       LoggingConfig       `yaml:"logging"`
	Threads       ThreadsConfig       `yaml:"threads"`
	Monitor       MonitorConfig       `yaml:"monitor"`
	Store         StoreConfig         `yaml:"store"`
}

// DataConfig describes the on-disk dataset layout.
type DataConfig struct {
	Path         string `yaml:"path"`
	LidarSubdir  string `yaml:"lidar_subdir"`
	CameraSubdir string `yaml:"camera_subdir"`
	CalibSubdir  string `yaml:"calib_subdir"`
	LabelSubdir  string `yaml:"label_subdir"`
	// Size caps the number of frames read from each directory. Zero means no cap.
	Size   int         `yaml:"size" validate:"gte=0"`
	Lidar  LidarFiles  `yaml:"lidar"`
	Camera CameraFiles `yaml:"camera"`
	Calib  CalibFiles  `yaml:"calib"`
	Label  LabelFiles  `yaml:"label"`
}

type LidarFiles struct {
	Enabled bool   `yaml:"enabled"`
	PCDType string `yaml:"pcd_type" validate:"required_if=Enabled true"`
}

type CameraFiles struct {
	Enabled bool   `yaml:"enabled"`
	ImgType string `yaml:"img_type" validate:"required_if=Enabled true"`
}

type CalibFiles struct {
	Enabled bool   `yaml:"enabled"`
	ClbType string `yaml:"clb_type" validate:"required_if=Enabled true"`
}

type LabelFiles struct {
	Enabled bool   `yaml:"enabled"`
	LblType string `yaml:"lbl_type" validate:"required_if=Enabled true"`
}

// SensorsConfig holds the live sensor definitions.
type SensorsConfig struct {
	Lidar  SensorConfig `yaml:"lidar"`
	Camera SensorConfig `yaml:"camera"`
}

// SensorConfig selects a live device by manufacturer and model.
type SensorConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Manufacturer string `yaml:"manufacturer" validate:"required_if=Enabled true"`
	Model        string `yaml:"model" validate:"required_if=Enabled true"`
	SerialNumber string `yaml:"serial_number"`
	Hostname     string `yaml:"hostname"`
	Port         int    `yaml:"port" validate:"gte=0,lte=65535"`
	// PCAPFile replays a capture instead of listening on the network.
	PCAPFile string `yaml:"pcap_file"`
	// Calibration is an optional per-channel angle table (CSV).
	Calibration string `yaml:"calibration"`
	// PollInterval in seconds, for sensors that are polled.
	PollInterval *float64 `yaml:"poll_interval" validate:"omitempty,gte=0"`
}

type VisualizationConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LoggingConfig struct {
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warning error critical"`
	Path    string `yaml:"path"`
	Console *bool  `yaml:"console"`
	Format  string `yaml:"format" validate:"omitempty,oneof=console json"`
}

// ThreadsConfig holds pacing values in seconds.
type ThreadsConfig struct {
	IOSleep         *float64 `yaml:"io_sleep" validate:"omitempty,gte=0"`
	VisSleep        *float64 `yaml:"vis_sleep" validate:"omitempty,gte=0"`
	StarvationGrace *float64 `yaml:"starvation_grace" validate:"omitempty,gte=0"`
}

type MonitorConfig struct {
	// Listen is the HTTP address for the monitor. Empty disables it.
	Listen string `yaml:"listen"`
}

type StoreConfig struct {
	// Path is the sqlite database for run records. Empty disables recording.
	Path string `yaml:"path"`
}

// Default returns a configuration with every modality disabled and the
// standard subdirectory names.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Path:         "data",
			LidarSubdir:  "lidar",
			CameraSubdir: "camera",
			CalibSubdir:  "calib",
			LabelSubdir:  "label",
			Lidar:        LidarFiles{PCDType: ".bin"},
			Camera:       CameraFiles{ImgType: ".png"},
			Calib:        CalibFiles{ClbType: "kitti"},
			Label:        LabelFiles{LblType: "kitti"},
		},
		Visualization: VisualizationConfig{Enabled: true},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Parse decodes YAML on top of Default and validates the result. Unknown
// top-level and section keys are rejected; stage parameters are free-form.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yml" && ext != ".yaml" {
		return nil, fmt.Errorf("config file must have .yml or .yaml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	anyFiles := c.Data.Lidar.Enabled || c.Data.Camera.Enabled || c.Data.Calib.Enabled || c.Data.Label.Enabled
	if anyFiles && c.Data.Path == "" {
		return fmt.Errorf("%w: data.path is required when a file source is enabled", ErrInvalid)
	}
	return nil
}

// Dir returns the dataset directory for a file-backed modality.
func (c *Config) Dir(m Modality) string {
	var sub string
	switch m {
	case ModalityLidar:
		sub = c.Data.LidarSubdir
	case ModalityCamera:
		sub = c.Data.CameraSubdir
	case ModalityCalib:
		sub = c.Data.CalibSubdir
	case ModalityLabel:
		sub = c.Data.LabelSubdir
	}
	return filepath.Join(c.Data.Path, sub)
}

// FileEnabled reports whether m is configured to read from disk.
func (c *Config) FileEnabled(m Modality) bool {
	switch m {
	case ModalityLidar:
		return c.Data.Lidar.Enabled
	case ModalityCamera:
		return c.Data.Camera.Enabled
	case ModalityCalib:
		return c.Data.Calib.Enabled
	case ModalityLabel:
		return c.Data.Label.Enabled
	}
	return false
}

// Sensor returns the live sensor configuration for m, if the modality has one.
func (c *Config) Sensor(m Modality) (SensorConfig, bool) {
	switch m {
	case ModalityLidar:
		return c.Sensors.Lidar, true
	case ModalityCamera:
		return c.Sensors.Camera, true
	}
	return SensorConfig{}, false
}

// SensorEnabled reports whether m is configured as a live sensor and no file
// source takes precedence.
func (c *Config) SensorEnabled(m Modality) bool {
	if c.FileEnabled(m) {
		return false
	}
	s, ok := c.Sensor(m)
	return ok && s.Enabled
}

// Enabled reports whether m has any configured source.
func (c *Config) Enabled(m Modality) bool {
	return c.FileEnabled(m) || c.SensorEnabled(m)
}

func seconds(v *float64, def float64) time.Duration {
	s := def
	if v != nil {
		s = *v
	}
	return time.Duration(s * float64(time.Second))
}

// GetIOSleep is the delay between prefetched items.
func (c *Config) GetIOSleep() time.Duration { return seconds(c.Threads.IOSleep, 0.01) }

// GetVisSleep is the delay between loop iterations.
func (c *Config) GetVisSleep() time.Duration { return seconds(c.Threads.VisSleep, 0.01) }

// GetStarvationGrace is how long playback lingers before stopping when no
// modality is active.
func (c *Config) GetStarvationGrace() time.Duration {
	return seconds(c.Threads.StarvationGrace, 5)
}

// GetPollInterval returns the sensor polling interval, defaulting to 100ms.
func (s SensorConfig) GetPollInterval() time.Duration {
	return seconds(s.PollInterval, 0.1)
}

// GetConsole reports whether logs are mirrored to stderr. Defaults to true.
func (l LoggingConfig) GetConsole() bool {
	if l.Console == nil {
		return true
	}
	return *l.Console
}
