package orchestrator

import (
	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/logging"
)

// Sink consumes processed frames. Update is called once per newly processed
// frame, Redraw on every loop iteration after it.
type Sink interface {
	Update(fc *frame.Context) error
	Redraw() error
	Close() error
}

// LogSink reports each processed frame at info level. It stands in for a
// visual sink when visualization is disabled.
type LogSink struct {
	Log *logging.Logger
}

func (s LogSink) Update(fc *frame.Context) error {
	s.Log.Infof("Processed frame %d", fc.Index)
	return nil
}

func (LogSink) Redraw() error { return nil }
func (LogSink) Close() error  { return nil }
