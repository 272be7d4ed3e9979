package stage

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/logging"
	"github.com/banshee-data/liframe/internal/timeutil"
)

// Result records one stage invocation.
type Result struct {
	Group    config.Group
	Name     string
	Index    int
	Duration time.Duration
	Err      error
}

// Observer receives every stage result, e.g. for metrics or persistence.
type Observer interface {
	ObserveStage(Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Result)

func (f ObserverFunc) ObserveStage(r Result) { f(r) }

// ActiveFunc reports whether a modality currently has a source.
type ActiveFunc func(config.Modality) bool

// Executor runs a Plan against a frame.
type Executor struct {
	log       *logging.Logger
	clock     timeutil.Clock
	observers []Observer
}

// NewExecutor returns an executor. clock may be nil.
func NewExecutor(log *logging.Logger, clock timeutil.Clock, observers ...Observer) *Executor {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Executor{log: log, clock: clock, observers: observers}
}

// AddObserver registers o for subsequent runs.
func (e *Executor) AddObserver(o Observer) { e.observers = append(e.observers, o) }

// Run executes the groups of p in order. Modality groups whose source is not
// active are skipped. A failing or panicking stage is logged and the
// pipeline continues.
func (e *Executor) Run(p *Plan, fc *frame.Context, cfg *config.Config, active ActiveFunc) []Result {
	var results []Result
	for _, g := range config.Groups {
		stages := p.Stages(g)
		if len(stages) == 0 {
			continue
		}
		if m, ok := g.Modality(); ok && (active == nil || !active(m)) {
			continue
		}
		for _, d := range stages {
			start := e.clock.Now()
			err := call(d, fc, cfg)
			r := Result{Group: g, Name: d.Name, Index: fc.Index, Duration: e.clock.Since(start), Err: err}
			if err != nil {
				e.log.Errorf("stage %s failed on frame %d: %v", d.ID(), fc.Index, err)
			}
			for _, o := range e.observers {
				o.ObserveStage(r)
			}
			results = append(results, r)
		}
	}
	return results
}

func call(d Descriptor, fc *frame.Context, cfg *config.Config) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return d.Fn(fc, cfg)
}
