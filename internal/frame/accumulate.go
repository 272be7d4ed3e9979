package frame

import "fmt"

type accumulators struct {
	gathered map[string][][]Point
	counters map[string]int
	// consumed maps an index key to the frame indices already claimed under it.
	consumed map[string][]int
}

func (c *Context) accum() *accumulators {
	if c.acc == nil {
		c.acc = &accumulators{
			gathered: make(map[string][][]Point),
			counters: make(map[string]int),
			consumed: make(map[string][]int),
		}
	}
	return c.acc
}

func (a *accumulators) claimed(indexKey string, idx int) bool {
	for _, i := range a.consumed[indexKey] {
		if i == idx {
			return true
		}
	}
	return false
}

// Gather appends the current cloud to the collection named key until it holds
// target clouds. A frame index is only gathered once per indexKey, so repeated
// calls on the same frame, and other gathers sharing indexKey, do not
// duplicate it. An empty indexKey defaults to "<key>_gathered_frames_indices".
// Reports whether the collection is complete.
func Gather(fc *Context, key string, target int, indexKey string) bool {
	a := fc.accum()
	if _, ok := a.gathered[key]; !ok {
		a.gathered[key] = [][]Point{}
		fc.Log.Infof("gather[%s]: gathering %d point clouds", key, target)
	}
	if indexKey == "" {
		indexKey = key + "_gathered_frames_indices"
	}

	if len(a.gathered[key]) < target && fc.Cloud != nil && !a.claimed(indexKey, fc.Index) {
		pts := make([]Point, len(fc.Cloud.Points))
		copy(pts, fc.Cloud.Points)
		a.gathered[key] = append(a.gathered[key], pts)
		a.consumed[indexKey] = append(a.consumed[indexKey], fc.Index)
	}
	return len(a.gathered[key]) >= target
}

// Skip counts novel frames under key until target is reached, with the same
// per-indexKey novelty guard as Gather. An empty indexKey defaults to
// "<key>_skipped_frames_indices". Reports whether skipping is complete.
func Skip(fc *Context, key string, target int, indexKey string) bool {
	a := fc.accum()
	if _, ok := a.counters[key]; !ok {
		a.counters[key] = 0
		fc.Log.Infof("skip[%s]: skipping %d frames", key, target)
	}
	if indexKey == "" {
		indexKey = key + "_skipped_frames_indices"
	}

	if a.counters[key] < target && fc.Cloud != nil && !a.claimed(indexKey, fc.Index) {
		a.counters[key]++
		a.consumed[indexKey] = append(a.consumed[indexKey], fc.Index)
	}
	return a.counters[key] >= target
}

// Combine concatenates the named gathers into key, in the given order. Only the
// first call for key has any effect. Unknown source keys contribute nothing.
func Combine(fc *Context, key string, sourceKeys ...string) {
	a := fc.accum()
	if _, ok := a.gathered[key]; ok {
		return
	}
	fc.Log.Infof("combine[%s]: combining %d gathers", key, len(sourceKeys))
	out := [][]Point{}
	for _, k := range sourceKeys {
		out = append(out, a.gathered[k]...)
	}
	a.gathered[key] = out
}

// Gathered returns the clouds collected under key.
func (c *Context) Gathered(key string) [][]Point {
	if c.acc == nil {
		return nil
	}
	return c.acc.gathered[key]
}

// Skipped returns the counter for a Skip key.
func (c *Context) Skipped(key string) int {
	if c.acc == nil {
		return 0
	}
	return c.acc.counters[key]
}

// Consumed returns the frame indices claimed under indexKey, in claim order.
func (c *Context) Consumed(indexKey string) []int {
	if c.acc == nil {
		return nil
	}
	out := make([]int, len(c.acc.consumed[indexKey]))
	copy(out, c.acc.consumed[indexKey])
	return out
}

// Flatten concatenates a gathered collection into one point slice.
func Flatten(clouds [][]Point) []Point {
	n := 0
	for _, c := range clouds {
		n += len(c)
	}
	out := make([]Point, 0, n)
	for _, c := range clouds {
		out = append(out, c...)
	}
	return out
}

// FixedSize pads with zero points or truncates pts to exactly n points.
func FixedSize(pts []Point, n int) ([]Point, error) {
	if n < 0 {
		return nil, fmt.Errorf("fixed size must be non-negative, got %d", n)
	}
	out := make([]Point, n)
	copy(out, pts)
	return out, nil
}
