package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/liframe/internal/fsutil"
	"github.com/banshee-data/liframe/internal/logging"
)

func writeFiles(t *testing.T, mfs *fsutil.MemoryFileSystem, dir string, names ...string) {
	t.Helper()
	require.NoError(t, mfs.MkdirAll(dir, 0o755))
	for _, n := range names {
		require.NoError(t, mfs.WriteFile(filepath.Join(dir, n), []byte(n), 0o644))
	}
}

func TestDiscoverSortsNumerically(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	writeFiles(t, mfs, "/d", "frame_10.bin", "frame_2.bin", "frame_0001.bin", "notes.txt", "x100.BIN")

	files, err := Discover(mfs, "/d", ".bin", 0)
	require.NoError(t, err)

	var bases []string
	for _, f := range files {
		bases = append(bases, f.Base)
	}
	assert.Equal(t, []string{"frame_0001", "frame_2", "frame_10", "x100"}, bases)
	assert.Equal(t, filepath.Join("/d", "frame_0001.bin"), files[0].Path)
}

func TestDiscoverTruncates(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	writeFiles(t, mfs, "/d", "3.bin", "1.bin", "2.bin")

	files, err := Discover(mfs, "/d", ".bin", 2)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "1", files[0].Base)
	assert.Equal(t, "2", files[1].Base)
}

func TestDiscoverRejectsBasenameWithoutDigits(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	writeFiles(t, mfs, "/d", "1.bin", "calib.bin")

	_, err := Discover(mfs, "/d", ".bin", 0)
	assert.True(t, errors.Is(err, ErrNoDigits), "got %v", err)
}

func TestDiscoverMissingDir(t *testing.T) {
	_, err := Discover(fsutil.NewMemoryFileSystem(), "/missing", ".bin", 0)
	assert.Error(t, err)
}

func TestCompareNumericHugeValues(t *testing.T) {
	a := digitKey("f99999999999999999999999")
	b := digitKey("f100000000000000000000000")
	assert.Equal(t, -1, compareNumeric(a, b))
	assert.Equal(t, "0", digitKey("000"))
}

type countingDecoder struct {
	mu    sync.Mutex
	calls map[int]int
	fail  map[int]bool
}

func (d *countingDecoder) decode(idx int, path string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.calls == nil {
		d.calls = make(map[int]int)
	}
	d.calls[idx]++
	if d.fail[idx] {
		return "", fmt.Errorf("corrupt %s", path)
	}
	return strings.ToUpper(filepath.Base(path)), nil
}

func newIndexed(t *testing.T, n, maxCount int, dec *countingDecoder) *Indexed[string] {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	var names []string
	for i := 0; i < n; i++ {
		names = append(names, strconv.Itoa(i)+".txt")
	}
	writeFiles(t, mfs, "/d", names...)
	s, err := NewIndexed(IndexedConfig{
		Name:     "test",
		Dir:      "/d",
		Ext:      ".txt",
		MaxCount: maxCount,
		FS:       mfs,
		Log:      logging.Nop(),
	}, dec.decode)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIndexedLengthIsMinOfCapAndFiles(t *testing.T) {
	tests := []struct{ files, cap, want int }{
		{5, 3, 3},
		{3, 5, 3},
		{4, 0, 4},
		{0, 2, 0},
	}
	for _, tt := range tests {
		s := newIndexed(t, tt.files, tt.cap, &countingDecoder{})
		assert.Equal(t, tt.want, s.Len(), "files=%d cap=%d", tt.files, tt.cap)
	}
}

func TestIndexedPrefetchFillsCacheInOrder(t *testing.T) {
	dec := &countingDecoder{}
	s := newIndexed(t, 6, 0, dec)
	s.Wait()

	assert.Equal(t, 6, s.Cached())
	for i := 0; i < 6; i++ {
		it := s.Get(i)
		require.NoError(t, it.Err)
		assert.Equal(t, i, it.Index)
		assert.Equal(t, fmt.Sprintf("%d.TXT", i), it.Record)
	}
	dec.mu.Lock()
	defer dec.mu.Unlock()
	for i := 0; i < 6; i++ {
		assert.Equal(t, 1, dec.calls[i], "cached reads do not decode again")
	}
	assert.Zero(t, s.Stats().Fallbacks)
}

func TestIndexedFallbackMatchesCache(t *testing.T) {
	block := make(chan struct{})
	var started atomic.Bool
	mfs := fsutil.NewMemoryFileSystem()
	writeFiles(t, mfs, "/d", "0.txt", "1.txt", "2.txt")

	decode := func(idx int, path string) (string, error) {
		if idx == 0 && started.CompareAndSwap(false, true) {
			<-block
		}
		return filepath.Base(path), nil
	}
	s, err := NewIndexed(IndexedConfig{Name: "t", Dir: "/d", Ext: ".txt", FS: mfs}, decode)
	require.NoError(t, err)

	// Prefetch is parked on index 0, so index 2 is served by a synchronous decode.
	fallback := s.Get(2)
	require.NoError(t, fallback.Err)
	assert.Equal(t, 0, s.Cached())
	assert.Equal(t, uint64(1), s.Stats().Fallbacks)

	close(block)
	s.Wait()
	cached := s.Get(2)
	assert.Equal(t, fallback, cached)
	require.NoError(t, s.Close())
}

func TestIndexedDecodeErrorIsPerItem(t *testing.T) {
	dec := &countingDecoder{fail: map[int]bool{1: true}}
	s := newIndexed(t, 3, 0, dec)
	s.Wait()

	assert.Equal(t, 3, s.Cached(), "prefetch continues past a bad item")
	assert.Error(t, s.Get(1).Err)
	assert.False(t, s.Get(1).OK())
	assert.NoError(t, s.Get(2).Err)
	assert.Equal(t, uint64(1), s.Stats().Errors)
}

func TestIndexedDecoderPanicIsPerItem(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	writeFiles(t, mfs, "/d", "0.txt", "1.txt", "2.txt")
	s, err := NewIndexed(IndexedConfig{Name: "t", Dir: "/d", Ext: ".txt", FS: mfs, Log: logging.Nop()},
		func(idx int, path string) ([]int, error) {
			if idx == 1 {
				return make([]int, idx-2), nil
			}
			return []int{idx}, nil
		})
	require.NoError(t, err)
	defer s.Close()
	s.Wait()

	assert.Equal(t, 3, s.Cached())
	bad := s.Get(1)
	assert.ErrorContains(t, bad.Err, "decoder panic")
	assert.Nil(t, bad.Record)
	assert.Equal(t, []int{2}, s.Get(2).Record)
	assert.Equal(t, uint64(1), s.Stats().Errors)
}

func TestIndexedOutOfRange(t *testing.T) {
	s := newIndexed(t, 2, 0, &countingDecoder{})
	assert.True(t, errors.Is(s.Get(2).Err, ErrOutOfRange))
	assert.True(t, errors.Is(s.Get(-1).Err, ErrOutOfRange))
	_, ok := s.Path(5)
	assert.False(t, ok)
}

func TestIndexedCloseStopsPrefetch(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	var names []string
	for i := 0; i < 100; i++ {
		names = append(names, fmt.Sprintf("%03d.txt", i))
	}
	writeFiles(t, mfs, "/d", names...)

	s, err := NewIndexed(IndexedConfig{
		Name:  "t",
		Dir:   "/d",
		Ext:   ".txt",
		Delay: 20 * time.Millisecond,
		FS:    mfs,
	}, func(idx int, path string) (int, error) { return idx, nil })
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close is idempotent")
	n := s.Cached()
	assert.Less(t, n, 100)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, s.Cached(), "no appends after Close returns")

	// Reads still work after close.
	assert.NoError(t, s.Get(99).Err)
}

func TestNewIndexedPropagatesDiscoveryErrors(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	writeFiles(t, mfs, "/d", "abc.txt")
	_, err := NewIndexed(IndexedConfig{Dir: "/d", Ext: ".txt", FS: mfs},
		func(int, string) (int, error) { return 0, nil })
	assert.True(t, errors.Is(err, ErrNoDigits))
}

type chanProducer struct {
	ch     chan int
	closed chan struct{}
	once   sync.Once
}

func newChanProducer() *chanProducer {
	return &chanProducer{ch: make(chan int), closed: make(chan struct{})}
}

func (p *chanProducer) Next(ctx context.Context) (int, error) {
	select {
	case v, ok := <-p.ch:
		if !ok {
			return 0, ErrClosed
		}
		return v, nil
	case <-p.closed:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (p *chanProducer) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLiveReturnsLatestWithoutBlockingOnRepeatIndex(t *testing.T) {
	p := newChanProducer()
	l := NewLive[int](LiveConfig{Name: "live", Size: 50, Log: logging.Nop()}, p)
	defer l.Close()

	assert.Equal(t, 50, l.Len())

	p.ch <- 7
	it := l.Get(0)
	require.NoError(t, it.Err)
	assert.Equal(t, 7, it.Record)

	// Same and lower indices never block.
	assert.Equal(t, 7, l.Get(0).Record)

	p.ch <- 8
	waitFor(t, func() bool { return l.Stats().Cached == 1 && l.Get(0).Record == 8 })
	assert.Equal(t, 8, l.Get(1).Record)
}

func TestLiveDropsUnconsumedRecords(t *testing.T) {
	p := newChanProducer()
	l := NewLive[int](LiveConfig{Name: "live", Log: logging.Nop()}, p)
	defer l.Close()

	p.ch <- 1
	p.ch <- 2
	p.ch <- 3
	waitFor(t, func() bool { return l.Stats().Drops == 2 })
	assert.Equal(t, 3, l.Get(0).Record)
}

func TestLiveCloseUnblocksGet(t *testing.T) {
	p := newChanProducer()
	l := NewLive[int](LiveConfig{Name: "live", Log: logging.Nop()}, p)

	got := make(chan Item[int], 1)
	go func() { got <- l.Get(0) }()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, l.Close())

	select {
	case it := <-got:
		assert.True(t, errors.Is(it.Err, ErrClosed))
	case <-time.After(2 * time.Second):
		t.Fatal("Get did not unblock on Close")
	}
}

func TestLiveOutOfRange(t *testing.T) {
	p := newChanProducer()
	l := NewLive[int](LiveConfig{Size: 2}, p)
	defer l.Close()
	assert.True(t, errors.Is(l.Get(2).Err, ErrOutOfRange))
}
