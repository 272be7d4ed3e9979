package ingest

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/liframe/internal/logging"
	"github.com/banshee-data/liframe/internal/timeutil"
)

// Producer yields records from a live device. Next blocks until a record is
// available or ctx is done. Returning ErrClosed or io.EOF ends the stream.
type Producer[T any] interface {
	Next(ctx context.Context) (T, error)
	Close() error
}

// LiveConfig configures a Live source.
type LiveConfig struct {
	Name string
	// Size is the logical length reported by Len. Zero means Unbounded.
	Size int
	// RetryDelay is slept after a transient producer error.
	RetryDelay time.Duration
	Clock      timeutil.Clock
	Log        *logging.Logger
}

// Live exposes a producer through the Source contract. Only the newest record
// is retained: a record nobody consumed before the next one arrives is
// dropped. Get with an index greater than the last one requested waits for a
// record newer than the last one returned; any other index returns the last
// record immediately.
type Live[T any] struct {
	name     string
	size     int
	producer Producer[T]
	clock    timeutil.Clock
	retry    time.Duration
	log      *logging.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	latest   Item[T]
	have     bool
	fresh    bool
	lastIdx  int
	closed   bool
	produced uint64
	drops    uint64
	errs     uint64

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewLive starts pulling from p.
func NewLive[T any](cfg LiveConfig, p Producer[T]) *Live[T] {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	size := cfg.Size
	if size <= 0 {
		size = Unbounded
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Live[T]{
		name:     cfg.Name,
		size:     size,
		producer: p,
		clock:    cfg.Clock,
		retry:    cfg.RetryDelay,
		log:      cfg.Log,
		lastIdx:  -1,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	go l.run(ctx)
	return l
}

func (l *Live[T]) run(ctx context.Context) {
	defer close(l.done)
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.cond.Broadcast()
		l.mu.Unlock()
	}()

	for ctx.Err() == nil {
		rec, err := l.producer.Next(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, ErrClosed) || errors.Is(err, io.EOF) {
				l.log.Infof("%s: stream ended", l.name)
				return
			}
			l.mu.Lock()
			l.errs++
			l.mu.Unlock()
			l.log.Errorf("%s: %v", l.name, err)
			if timeutil.SleepContext(ctx, l.clock, l.retry) != nil {
				return
			}
			continue
		}

		l.mu.Lock()
		if l.fresh {
			l.drops++
		}
		l.latest = Item[T]{Record: rec}
		l.have = true
		l.fresh = true
		l.produced++
		l.cond.Broadcast()
		l.mu.Unlock()
	}
}

// Len returns the configured logical size.
func (l *Live[T]) Len() int { return l.size }

// Get implements Source.
func (l *Live[T]) Get(idx int) Item[T] {
	if idx < 0 || idx >= l.size {
		return Item[T]{Index: idx, Err: ErrOutOfRange}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if idx > l.lastIdx {
		for !l.fresh && !l.closed {
			l.cond.Wait()
		}
		l.fresh = false
		l.lastIdx = idx
	}
	if !l.have {
		if l.closed {
			return Item[T]{Index: idx, Err: ErrClosed}
		}
		return Item[T]{Index: idx, Err: ErrNotFound}
	}
	it := l.latest
	it.Index = idx
	return it
}

// Stats implements StatsSource.
func (l *Live[T]) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	cached := 0
	if l.have {
		cached = 1
	}
	return Stats{Len: l.size, Cached: cached, Errors: l.errs, Drops: l.drops}
}

// Close releases any blocked Get, stops the producer and waits for the pull
// loop to exit.
func (l *Live[T]) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.cancel()
		l.mu.Lock()
		l.closed = true
		l.cond.Broadcast()
		l.mu.Unlock()
		err = l.producer.Close()
		<-l.done
	})
	return err
}
