// Package environment implements the chain of (name, value) bindings the
// evaluator resolves identifiers against.
//
// Grounded on original_source/lib/environment.c: bind prepends a frame
// without shadow-checking (a fresh entry always wins lookups), get/set walk
// from most-recently-bound outward, and restore truncates back to a
// previously observed size.
package environment

import "github.com/aledsdavies/lotus/internal/gc"

type frame struct {
	name  string
	value *gc.Value
}

// Environment is a chain of frames grown by Bind and truncated by Restore.
// It observes, but does not own, the values it references — ownership
// belongs to the GC heap.
type Environment struct {
	frames []frame
}

// New creates an empty Environment.
func New() *Environment {
	return &Environment{}
}

// Bind prepends a new frame for name. An existing frame with the same name
// is not removed or checked for; the new frame simply wins future lookups
// since Get walks most-recent-first.
func (e *Environment) Bind(name string, value *gc.Value) {
	e.frames = append(e.frames, frame{name, value})
}

// Get walks from the most recently bound frame to the oldest, returning the
// first value bound to name.
func (e *Environment) Get(name string) (*gc.Value, bool) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if e.frames[i].name == name {
			return e.frames[i].value, true
		}
	}
	return nil, false
}

// Set replaces the value of the first (most recent) frame bound to name,
// returning the frame's previous value. ok is false if name is unbound.
func (e *Environment) Set(name string, value *gc.Value) (old *gc.Value, ok bool) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if e.frames[i].name == name {
			old = e.frames[i].value
			e.frames[i].value = value
			return old, true
		}
	}
	return nil, false
}

// Size returns the current frame count, used as a scope snapshot.
func (e *Environment) Size() int {
	return len(e.frames)
}

// Restore pops frames until the chain has exactly size entries.
func (e *Environment) Restore(size int) {
	e.frames = e.frames[:size]
}

// BulkBind binds each (name, value) pair in parallel order, as a call frame
// does for formals and actuals. ok is false if the slice lengths differ, in
// which case no binding is performed.
func (e *Environment) BulkBind(names []string, values []*gc.Value) bool {
	if len(names) != len(values) {
		return false
	}
	for i, name := range names {
		e.Bind(name, values[i])
	}
	return true
}

// Values returns every value currently referenced by a frame, serving as
// GC roots (gc.GC.Roots).
func (e *Environment) Values() []*gc.Value {
	values := make([]*gc.Value, len(e.frames))
	for i, f := range e.frames {
		values[i] = f.value
	}
	return values
}
