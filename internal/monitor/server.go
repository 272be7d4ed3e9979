// Package monitor serves playback controls and live charts over HTTP.
package monitor

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/logging"
	"github.com/banshee-data/liframe/internal/orchestrator"
	"github.com/banshee-data/liframe/internal/stage"
	"github.com/banshee-data/liframe/internal/timeutil"
)

// Controller is the part of the orchestrator the monitor drives.
type Controller interface {
	StepForward() int
	StepBackward() int
	TogglePlay() orchestrator.State
	Status() orchestrator.Status
}

// Options configures a Server.
type Options struct {
	Addr       string
	Controller Controller
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
	// Admin mounts extra routes, normally the /debug/ tree of the run store.
	Admin func(mux *http.ServeMux) error
	Clock timeutil.Clock
	Log   *logging.Logger
	// MaxPoints bounds the points kept for the cloud chart. Defaults to 5000.
	MaxPoints int
	// History bounds the frames kept for the frames plot. Defaults to 500.
	History int
}

// Server is the monitor HTTP surface. It is also a frame sink and a stage
// observer so it can chart the latest frame.
type Server struct {
	ctrl      Controller
	clock     timeutil.Clock
	log       *logging.Logger
	mux       *http.ServeMux
	server    *http.Server
	maxPoints int
	history   int

	mu      sync.Mutex
	pending []stage.Result
	latest  *Snapshot
	frames  []FrameStat
}

// New builds the server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = 5000
	}
	if opts.History <= 0 {
		opts.History = 500
	}
	s := &Server{
		ctrl:      opts.Controller,
		clock:     opts.Clock,
		log:       opts.Log,
		mux:       http.NewServeMux(),
		maxPoints: opts.MaxPoints,
		history:   opts.History,
	}
	s.mux.HandleFunc("/api/playback", s.handlePlayback)
	s.mux.HandleFunc("/api/playback/forward", s.handleForward)
	s.mux.HandleFunc("/api/playback/backward", s.handleBackward)
	s.mux.HandleFunc("/api/playback/toggle", s.handleToggle)
	s.mux.HandleFunc("/api/frame", s.handleFrame)
	s.mux.HandleFunc("/charts/cloud", s.handleCloudChart)
	s.mux.HandleFunc("/charts/stages", s.handleStagesChart)
	s.mux.HandleFunc("/plots/frames.png", s.handleFramesPlot)
	if opts.Metrics != nil {
		s.mux.Handle("/metrics", opts.Metrics)
	}
	if opts.Admin != nil {
		if err := opts.Admin(s.mux); err != nil {
			return nil, err
		}
	}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler exposes the routes, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Infof("monitor listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.log.Warnf("monitor shutdown: %v", err)
		if err := s.server.Close(); err != nil {
			s.log.Warnf("monitor force close: %v", err)
		}
	}
	return nil
}

// ObserveStage implements stage.Observer.
func (s *Server) ObserveStage(r stage.Result) {
	s.mu.Lock()
	s.pending = append(s.pending, r)
	s.mu.Unlock()
}

// Update captures fc and the stage results gathered since the last frame.
func (s *Server) Update(fc *frame.Context) error {
	snap := newSnapshot(fc, s.maxPoints, s.clock.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Stages = s.pending
	s.pending = nil
	s.latest = snap

	stat := FrameStat{Index: fc.Index, Points: fc.Cloud.Len(), Labels: fc.Labels.Len()}
	for _, r := range snap.Stages {
		stat.Duration += r.Duration
	}
	s.frames = append(s.frames, stat)
	if n := len(s.frames) - s.history; n > 0 {
		s.frames = append(s.frames[:0:0], s.frames[n:]...)
	}
	return nil
}

func (s *Server) Redraw() error { return nil }
func (s *Server) Close() error  { return nil }

// Latest returns the most recent snapshot, or nil before the first frame.
func (s *Server) Latest() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Frames returns the per-frame history, oldest first.
func (s *Server) Frames() []FrameStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FrameStat, len(s.frames))
	copy(out, s.frames)
	return out
}
