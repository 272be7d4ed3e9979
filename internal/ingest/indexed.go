package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/liframe/internal/fsutil"
	"github.com/banshee-data/liframe/internal/logging"
	"github.com/banshee-data/liframe/internal/timeutil"
)

// IndexedConfig configures a directory-backed source.
type IndexedConfig struct {
	Name     string
	Dir      string
	Ext      string
	MaxCount int
	// Delay is slept after each prefetched item.
	Delay time.Duration
	FS    fsutil.FileSystem
	Clock timeutil.Clock
	Log   *logging.Logger
}

// Indexed is a directory-backed Source. A background goroutine decodes files
// in index order into an append-only cache; Get serves cached items and
// decodes uncached ones synchronously without caching them.
type Indexed[T any] struct {
	name   string
	files  []File
	decode DecodeFunc[T]
	delay  time.Duration
	clock  timeutil.Clock
	log    *logging.Logger

	mu    sync.Mutex
	cache []Item[T]

	fallbacks atomic.Uint64
	errors    atomic.Uint64

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewIndexed discovers the files for cfg and starts prefetching them.
func NewIndexed[T any](cfg IndexedConfig, decode DecodeFunc[T]) (*Indexed[T], error) {
	if cfg.FS == nil {
		cfg.FS = fsutil.OSFileSystem{}
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	files, err := Discover(cfg.FS, cfg.Dir, cfg.Ext, cfg.MaxCount)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Indexed[T]{
		name:   cfg.Name,
		files:  files,
		decode: decode,
		delay:  cfg.Delay,
		clock:  cfg.Clock,
		log:    cfg.Log,
		cache:  make([]Item[T], 0, len(files)),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.log.Infof("%s: %d files in %s", s.name, len(files), cfg.Dir)
	go s.prefetch(ctx)
	return s, nil
}

func (s *Indexed[T]) prefetch(ctx context.Context) {
	defer close(s.done)
	for i := range s.files {
		if ctx.Err() != nil {
			return
		}
		item := s.load(i)
		s.mu.Lock()
		s.cache = append(s.cache, item)
		s.mu.Unlock()
		if err := timeutil.SleepContext(ctx, s.clock, s.delay); err != nil {
			return
		}
	}
	s.log.Debugf("%s: prefetch complete", s.name)
}

func (s *Indexed[T]) load(idx int) Item[T] {
	f := s.files[idx]
	rec, err := s.safeDecode(idx, f.Path)
	if err != nil {
		s.errors.Add(1)
		s.log.Errorf("%s: decode %s: %v", s.name, f.Path, err)
		var zero T
		return Item[T]{Index: idx, Path: f.Path, Record: zero, Err: err}
	}
	return Item[T]{Index: idx, Path: f.Path, Record: rec}
}

// safeDecode turns a decoder panic into an error for that item.
func (s *Indexed[T]) safeDecode(idx int, path string) (rec T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			rec, err = zero, fmt.Errorf("decoder panic: %v", r)
		}
	}()
	return s.decode(idx, path)
}

// Len returns the number of discovered files after the size cap.
func (s *Indexed[T]) Len() int { return len(s.files) }

// Path returns the file backing idx.
func (s *Indexed[T]) Path(idx int) (string, bool) {
	if idx < 0 || idx >= len(s.files) {
		return "", false
	}
	return s.files[idx].Path, true
}

// Get returns the cached item at idx, or decodes it on the caller's goroutine.
func (s *Indexed[T]) Get(idx int) Item[T] {
	if idx < 0 || idx >= len(s.files) {
		return Item[T]{Index: idx, Err: ErrOutOfRange}
	}
	s.mu.Lock()
	if idx < len(s.cache) {
		it := s.cache[idx]
		s.mu.Unlock()
		return it
	}
	s.mu.Unlock()

	s.fallbacks.Add(1)
	return s.load(idx)
}

// Cached returns how many items the prefetcher has stored.
func (s *Indexed[T]) Cached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// Stats implements StatsSource.
func (s *Indexed[T]) Stats() Stats {
	return Stats{
		Len:       s.Len(),
		Cached:    s.Cached(),
		Fallbacks: s.fallbacks.Load(),
		Errors:    s.errors.Load(),
	}
}

// Wait blocks until the prefetcher has finished or been cancelled.
func (s *Indexed[T]) Wait() { <-s.done }

// Close stops the prefetcher at its next iteration and waits for it. An
// in-flight decode is allowed to finish.
func (s *Indexed[T]) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		s.log.Debugf("%s: closed", s.name)
	})
	return nil
}
