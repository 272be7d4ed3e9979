// Package orchestrator drives playback: it owns the sources and the frame
// context, advances the frame index under user control and runs every newly
// selected frame through the stage pipeline before handing it to the sinks.
package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/ingest"
	"github.com/banshee-data/liframe/internal/logging"
	"github.com/banshee-data/liframe/internal/stage"
	"github.com/banshee-data/liframe/internal/timeutil"
)

var (
	// ErrStopped is returned by Step once playback is stopped.
	ErrStopped = errors.New("playback stopped")
	// ErrStarved is returned by Step when no modality has a source.
	ErrStarved = errors.New("no data source is available")
	// ErrNotConfigured is returned by Start before the first Reset.
	ErrNotConfigured = errors.New("orchestrator has no configuration")
)

// BuildFunc constructs the sources for a configuration.
type BuildFunc func(cfg *config.Config) *Sources

// Options configures an Orchestrator.
type Options struct {
	Registry *stage.Registry
	// Build defaults to a Factory using Clock and Log on the OS filesystem.
	Build     BuildFunc
	Clock     timeutil.Clock
	Log       *logging.Logger
	Observers []stage.Observer
}

// Status is a point-in-time view of playback.
type Status struct {
	State     State                   `json:"state"`
	Index     int                     `json:"index"`
	MaxIndex  int                     `json:"max_index"`
	Processed int                     `json:"processed"` // last index run through the pipeline, -1 before the first
	Sources   map[config.Modality]int `json:"sources"`
	// Unbounded is set when only live sources without a size are active and
	// MaxIndex is not a real frame count.
	Unbounded bool `json:"unbounded"`
}

// Orchestrator is the playback engine. Control methods may be called from
// any goroutine; Reset, Step and Run belong to the loop goroutine.
type Orchestrator struct {
	reg   *stage.Registry
	build BuildFunc
	exec  *stage.Executor
	clock timeutil.Clock
	log   *logging.Logger

	mu        sync.Mutex
	state     State
	index     int
	maxIndex  int
	processed int
	sources   *Sources
	lens      map[config.Modality]int
	pending   *config.Config
	results   []stage.Result
	ready     bool

	// loop goroutine only
	cfg   *config.Config
	plan  *stage.Plan
	fc    *frame.Context
	last  int
	sinks []Sink
}

// New returns a stopped orchestrator. Call Reset before Start.
func New(opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Registry == nil {
		opts.Registry = stage.NewRegistry()
	}
	if opts.Build == nil {
		opts.Build = Factory{Clock: opts.Clock, Log: opts.Log}.Build
	}
	return &Orchestrator{
		reg:       opts.Registry,
		build:     opts.Build,
		exec:      stage.NewExecutor(opts.Log.Component("stage"), opts.Clock, opts.Observers...),
		clock:     opts.Clock,
		log:       opts.Log,
		processed: -1,
		last:      -1,
		fc:        frame.NewContext(opts.Log.Component("frame")),
	}
}

// AddSink registers s. Sinks are closed by Close.
func (o *Orchestrator) AddSink(s Sink) { o.sinks = append(o.sinks, s) }

// AddObserver registers a stage observer.
func (o *Orchestrator) AddObserver(obs stage.Observer) { o.exec.AddObserver(obs) }

// Reset closes the current sources, builds new ones and a new stage plan
// from cfg, and clears accumulator state. The frame index is kept, clamped
// to the new range, and is processed again on the next Step. Playback state
// is unchanged.
func (o *Orchestrator) Reset(cfg *config.Config) {
	o.mu.Lock()
	old := o.sources
	o.mu.Unlock()
	if err := old.Close(); err != nil {
		o.log.Warnf("closing previous sources: %v", err)
	}

	src := o.build(cfg)
	plan := stage.Build(o.reg, cfg, o.log)
	lens := src.Lens()

	o.mu.Lock()
	o.sources = src
	o.lens = lens
	o.maxIndex = src.MaxIndex()
	if o.index > o.maxIndex {
		o.index = o.maxIndex
	}
	if o.index < 0 {
		o.index = 0
	}
	maxIndex := o.maxIndex
	o.ready = true
	o.mu.Unlock()

	o.cfg = cfg
	o.plan = plan
	o.fc.Reset()
	o.last = -1
	o.log.Infof("reset: sources=%v max_index=%d stages=%d", lens, maxIndex, plan.Len())
}

// Reload queues cfg to be applied by the loop before its next iteration.
func (o *Orchestrator) Reload(cfg *config.Config) {
	o.mu.Lock()
	o.pending = cfg
	o.mu.Unlock()
}

func (o *Orchestrator) applyPending() {
	o.mu.Lock()
	cfg := o.pending
	o.pending = nil
	o.mu.Unlock()
	if cfg != nil {
		o.Reset(cfg)
	}
}

// Start moves a stopped orchestrator to paused.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.ready {
		return ErrNotConfigured
	}
	if o.state == Stopped {
		o.state = Paused
	}
	return nil
}

// TogglePlay switches between paused and playing and returns the new state.
func (o *Orchestrator) TogglePlay() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case Paused:
		o.state = Playing
	case Playing:
		o.state = Paused
	}
	return o.state
}

// StepForward pauses playback and moves to the next frame, stopping at the
// last one. It has no effect while stopped.
func (o *Orchestrator) StepForward() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == Stopped {
		return o.index
	}
	o.state = Paused
	if o.index < o.maxIndex {
		o.index++
	}
	return o.index
}

// StepBackward pauses playback and moves to the previous frame, stopping at
// the first one. It has no effect while stopped.
func (o *Orchestrator) StepBackward() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == Stopped {
		return o.index
	}
	o.state = Paused
	if o.index > 0 {
		o.index--
	}
	return o.index
}

// Quit stops playback and closes every source.
func (o *Orchestrator) Quit() error {
	o.mu.Lock()
	o.state = Stopped
	src := o.sources
	o.mu.Unlock()
	return src.Close()
}

// Close quits and closes every sink.
func (o *Orchestrator) Close() error {
	errs := []error{o.Quit()}
	for _, s := range o.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Status returns the current playback position.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	lens := make(map[config.Modality]int, len(o.lens))
	for m, n := range o.lens {
		lens[m] = n
	}
	return Status{
		State:     o.state,
		Index:     o.index,
		MaxIndex:  o.maxIndex,
		Processed: o.processed,
		Sources:   lens,
		Unbounded: o.maxIndex == ingest.Unbounded-1,
	}
}

// SourceStats returns the statistics of the active sources.
func (o *Orchestrator) SourceStats() map[config.Modality]ingest.Stats {
	o.mu.Lock()
	src := o.sources
	o.mu.Unlock()
	return src.Stats()
}

// LastResults returns the stage results of the last processed frame.
func (o *Orchestrator) LastResults() []stage.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]stage.Result, len(o.results))
	copy(out, o.results)
	return out
}

// Step runs one loop iteration. While playing the index advances by one,
// holding at the last frame. A frame that was already processed is only
// redrawn. Step returns ErrStopped once playback is stopped and ErrStarved,
// after the starvation grace period, when no modality has a source.
func (o *Orchestrator) Step(ctx context.Context) error {
	o.applyPending()

	o.mu.Lock()
	if o.state == Stopped {
		o.mu.Unlock()
		return ErrStopped
	}
	if o.state == Playing && o.index < o.maxIndex {
		o.index++
	}
	idx, maxIndex, src := o.index, o.maxIndex, o.sources
	o.mu.Unlock()

	if idx == o.last {
		o.redraw()
		return nil
	}

	if !src.Any() {
		grace := o.cfg.GetStarvationGrace()
		o.log.Criticalf("no data source is available, stopping in %s", grace)
		err := timeutil.SleepContext(ctx, o.clock, grace)
		if qerr := o.Quit(); qerr != nil {
			o.log.Warnf("closing sources: %v", qerr)
		}
		if err != nil {
			return err
		}
		return ErrStarved
	}

	o.last = idx
	o.fc.Index = idx
	o.fc.MaxIndex = maxIndex
	src.Load(o.fc, idx)
	results := o.exec.Run(o.plan, o.fc, o.cfg, src.Active)

	o.mu.Lock()
	o.processed = idx
	o.results = results
	o.mu.Unlock()

	for _, s := range o.sinks {
		if err := s.Update(o.fc); err != nil {
			o.log.Errorf("sink update on frame %d: %v", idx, err)
		}
	}
	o.redraw()
	return nil
}

func (o *Orchestrator) redraw() {
	for _, s := range o.sinks {
		if err := s.Redraw(); err != nil {
			o.log.Errorf("sink redraw: %v", err)
		}
	}
}

// Run steps until playback stops or ctx is cancelled, sleeping the
// configured loop delay between iterations. Cancellation quits playback and
// returns nil. Sources are closed as soon as ctx is done, which releases a
// step waiting on a live sensor.
func (o *Orchestrator) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		if err := o.Quit(); err != nil {
			o.log.Warnf("closing sources: %v", err)
		}
	})
	defer stop()
	for {
		err := o.Step(ctx)
		if ctx.Err() != nil {
			return o.Quit()
		}
		switch {
		case errors.Is(err, ErrStopped):
			return nil
		case err != nil:
			return err
		}
		if err := timeutil.SleepContext(ctx, o.clock, o.cfg.GetVisSleep()); err != nil {
			return o.Quit()
		}
	}
}
