// Package logging provides the leveled, component-scoped logger shared by
// sources, stages, the orchestrator and the command line.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Level names accepted in configuration.
const (
	LevelDebug    = "debug"
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
)

// Config selects the level and destinations for a Logger.
type Config struct {
	Level string
	// Dir receives one liframe-<unix>.log file per session. Empty disables file output.
	Dir string
	// Console mirrors records to stderr.
	Console bool
	// Format is "console" (human readable) or "json".
	Format string
}

// Logger wraps zerolog.Logger. Child loggers created with Component share the
// parent's level, so SetLevel affects the whole tree.
type Logger struct {
	zl     zerolog.Logger
	level  *atomic.Int32
	closer *sessionFile
}

type sessionFile struct {
	once sync.Once
	f    *os.File
}

func (s *sessionFile) close() error {
	if s == nil || s.f == nil {
		return nil
	}
	var err error
	s.once.Do(func() { err = s.f.Close() })
	return err
}

// ParseLevel maps a configuration level name to a zerolog level. Critical
// records are written at zerolog's fatal level, which is only ever emitted
// through WithLevel and never exits the process.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case LevelDebug:
		return zerolog.DebugLevel, nil
	case "", LevelInfo:
		return zerolog.InfoLevel, nil
	case LevelWarning, "warn":
		return zerolog.WarnLevel, nil
	case LevelError:
		return zerolog.ErrorLevel, nil
	case LevelCritical:
		return zerolog.FatalLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// New builds a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var writers []io.Writer
	var sf *sessionFile
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		name := filepath.Join(cfg.Dir, fmt.Sprintf("liframe-%d.log", time.Now().Unix()))
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		sf = &sessionFile{f: f}
		writers = append(writers, f)
	}
	if cfg.Console {
		var w io.Writer = os.Stderr
		if cfg.Format != "json" {
			w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
		}
		writers = append(writers, w)
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	l := NewWithWriter(out, lvl)
	l.closer = sf
	return l, nil
}

// NewWithWriter returns a Logger writing JSON records to w.
func NewWithWriter(w io.Writer, lvl zerolog.Level) *Logger {
	level := new(atomic.Int32)
	level.Store(int32(lvl))
	return &Logger{
		zl:    zerolog.New(w).With().Timestamp().Logger(),
		level: level,
	}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return NewWithWriter(io.Discard, zerolog.Disabled)
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		zl:     l.zl.With().Str("component", name).Logger(),
		level:  l.level,
		closer: l.closer,
	}
}

// With returns a child logger carrying one extra string field.
func (l *Logger) With(key, value string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		zl:     l.zl.With().Str(key, value).Logger(),
		level:  l.level,
		closer: l.closer,
	}
}

// SetLevel changes the threshold for this logger and every logger derived from it.
func (l *Logger) SetLevel(name string) error {
	if l == nil {
		return nil
	}
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	l.level.Store(int32(lvl))
	return nil
}

// Enabled reports whether records at lvl would be written.
func (l *Logger) Enabled(lvl zerolog.Level) bool {
	if l == nil {
		return false
	}
	min := zerolog.Level(l.level.Load())
	return min != zerolog.Disabled && lvl >= min
}

func (l *Logger) logf(lvl zerolog.Level, format string, args ...interface{}) {
	if !l.Enabled(lvl) {
		return
	}
	l.zl.WithLevel(lvl).Msgf(format, args...)
}

// Debugf logs high-frequency diagnostics.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(zerolog.DebugLevel, format, args...)
}

// Infof logs lifecycle events.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(zerolog.InfoLevel, format, args...)
}

// Warnf logs recoverable anomalies.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf(zerolog.WarnLevel, format, args...)
}

// Errorf logs failures that were contained.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(zerolog.ErrorLevel, format, args...)
}

// Criticalf logs failures that disable a modality or stop playback.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.logf(zerolog.FatalLevel, format, args...)
}

// Close releases the session log file, if any.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	return l.closer.close()
}
