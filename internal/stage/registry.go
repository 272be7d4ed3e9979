// Package stage resolves configured processing stages against a registry of
// functions and runs them per frame with failure isolation.
package stage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
)

// Func is a processing stage. It mutates the frame context in place and must
// tolerate missing inputs by logging and returning.
type Func func(fc *frame.Context, cfg *config.Config) error

// Registry maps (group, name) to stage functions.
type Registry struct {
	mu    sync.RWMutex
	funcs map[config.Group]map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[config.Group]map[string]Func)}
}

// Register adds fn under (g, name). Registering a name twice is an error.
func (r *Registry) Register(g config.Group, name string, fn Func) error {
	if fn == nil {
		return fmt.Errorf("stage %s/%s: nil function", g, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byName := r.funcs[g]
	if byName == nil {
		byName = make(map[string]Func)
		r.funcs[g] = byName
	}
	if _, dup := byName[name]; dup {
		return fmt.Errorf("stage %s/%s already registered", g, name)
	}
	byName[name] = fn
	return nil
}

// MustRegister is Register for package-level wiring; it panics on error.
func (r *Registry) MustRegister(g config.Group, name string, fn Func) {
	if err := r.Register(g, name, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the function registered under (g, name).
func (r *Registry) Lookup(g config.Group, name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[g][name]
	return fn, ok
}

// Names lists the stages registered in g, sorted.
func (r *Registry) Names(g config.Group) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs[g]))
	for name := range r.funcs[g] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
