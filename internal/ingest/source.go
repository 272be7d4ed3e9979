// Package ingest provides the per-index sources the orchestrator reads from:
// directory-backed sources prefetched in the background, and live sources
// backed by an unbounded producer.
package ingest

import (
	"errors"
	"math"
)

var (
	// ErrNotFound marks an index whose backing file does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrOutOfRange marks an index beyond the source's length.
	ErrOutOfRange = errors.New("index out of range")
	// ErrUnsupportedFormat is returned when no reader handles the configured type.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrNoDigits is returned when a file basename has no digits to sort by.
	ErrNoDigits = errors.New("basename has no digits")
	// ErrClosed is returned by sources and producers after Close.
	ErrClosed = errors.New("source closed")
)

// Unbounded is the length reported by a live source configured without a
// logical size.
const Unbounded = math.MaxInt32

// Item is the result of reading one index. Record is the zero value when Err
// is set.
type Item[T any] struct {
	Index  int
	Path   string
	Record T
	Err    error
}

// OK reports whether the item carries a record.
func (it Item[T]) OK() bool { return it.Err == nil }

// Source is the contract shared by file and live sources.
type Source[T any] interface {
	// Len is the number of addressable indices.
	Len() int
	// Get returns the item at idx. It never panics on a bad index.
	Get(idx int) Item[T]
	// Close stops background work and waits for it to exit.
	Close() error
}

// Stats is a point-in-time view of a source for metrics.
type Stats struct {
	Len       int
	Cached    int
	Fallbacks uint64
	Errors    uint64
	Drops     uint64
}

// StatsSource is implemented by sources that expose Stats.
type StatsSource interface {
	Stats() Stats
}

// DecodeFunc decodes the file for one index.
type DecodeFunc[T any] func(idx int, path string) (T, error)
