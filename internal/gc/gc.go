// Package gc implements the mark-and-sweep collector over Lotus runtime
// values, plus the hold stack that keeps expression intermediates alive
// across nested evaluation.
//
// Grounded directly on original_source/lib/garbage.c: gc_init_* allocators
// register the value in a registry rooted at MARKED status (so a value
// created right before a GC run survives it even if nothing references it
// yet), gc_run performs mark-then-sweep, and gc_hold/gc_release implement
// the LIFO hold stack that never frees.
package gc

import (
	"github.com/aledsdavies/lotus/internal/ast"
)

// Kind identifies the runtime type of a Value.
type Kind int

const (
	Number Kind = iota
	Boolean
	String
	Nil
	Closure
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "Number"
	case Boolean:
		return "Boolean"
	case String:
		return "String"
	case Nil:
		return "Nil"
	case Closure:
		return "Closure"
	default:
		return "Unknown"
	}
}

// ClosureValue is the payload of a Closure-kind Value: a declared name (for
// diagnostics), an ordered formal parameter list, and an owned deep copy of
// the body statement, captured at declaration time.
type ClosureValue struct {
	Name    string
	Formals []string
	Body    ast.Stmt
}

// Value is a single GC-managed runtime value.
type Value struct {
	Kind    Kind
	Number  float64
	Boolean bool
	String  string
	Closure *ClosureValue

	marked bool
	prev   *Value
	next   *Value
}

// GC is a mark-and-sweep collector over a doubly-linked registry of every
// live Value, plus a LIFO hold stack of values not yet reachable through an
// Environment.
type GC struct {
	head *Value
	tail *Value
	size int

	hold []*Value

	// Roots is consulted during Mark for every Value currently referenced
	// by an environment frame. Wiring the evaluator's environment here
	// keeps the GC ignorant of environment internals.
	Roots func() []*Value

	Marked int
	Swept  int
}

// New creates an empty GC. Roots must be set before the first Run call
// (normally to the evaluator's environment.Values method).
func New() *GC {
	return &GC{}
}

func (gc *GC) register(v *Value) *Value {
	v.marked = true // newly allocated values start reachable, per gc_init_*
	if gc.tail == nil {
		gc.head, gc.tail = v, v
	} else {
		v.prev = gc.tail
		gc.tail.next = v
		gc.tail = v
	}
	gc.size++
	return v
}

// NewNumber allocates a Number value.
func (gc *GC) NewNumber(n float64) *Value {
	return gc.register(&Value{Kind: Number, Number: n})
}

// NewBoolean allocates a Boolean value.
func (gc *GC) NewBoolean(b bool) *Value {
	return gc.register(&Value{Kind: Boolean, Boolean: b})
}

// NewString allocates a String value.
func (gc *GC) NewString(s string) *Value {
	return gc.register(&Value{Kind: String, String: s})
}

// NewNil allocates the Nil value.
func (gc *GC) NewNil() *Value {
	return gc.register(&Value{Kind: Nil})
}

// NewClosure allocates a Closure value. body is deep-copied so later
// mutation of the surrounding AST cannot affect the closure.
func (gc *GC) NewClosure(name string, formals []string, body ast.Stmt) *Value {
	return gc.register(&Value{
		Kind: Closure,
		Closure: &ClosureValue{
			Name:    name,
			Formals: append([]string(nil), formals...),
			Body:    ast.CloneStmt(body),
		},
	})
}

// Hold pushes v onto the hold stack, keeping it live across a Run that
// occurs before v is reachable through the environment.
func (gc *GC) Hold(v *Value) {
	gc.hold = append(gc.hold, v)
}

// Release pops count values from the hold stack without freeing them;
// freeing is only ever performed by Run's sweep phase.
func (gc *GC) Release(count int) {
	gc.hold = gc.hold[:len(gc.hold)-count]
}

// HoldCount reports the current hold stack depth, for tests asserting the
// post-operation release count invariant.
func (gc *GC) HoldCount() int {
	return len(gc.hold)
}

// Run performs one mark-and-sweep collection pass. Safe to call between any
// two statements; correctness does not depend on it running at all.
func (gc *GC) Run() {
	gc.Marked = 0
	gc.Swept = 0
	gc.mark()
	gc.sweep()
}

func (gc *GC) mark() {
	if gc.Roots != nil {
		for _, v := range gc.Roots() {
			gc.markOne(v)
		}
	}
	for _, v := range gc.hold {
		gc.markOne(v)
	}
}

// markOne marks v reachable. Runtime values carry no interior references to
// other heap values (a Closure's body is an owned deep copy, not a
// reference), so marking is shallow — no recursive DFS is required here
// unlike the C source's dfs, which exists only as an extension point for
// future composite types.
func (gc *GC) markOne(v *Value) {
	if v == nil || v.marked {
		return
	}
	gc.Marked++
	v.marked = true
}

func (gc *GC) sweep() {
	current := gc.head
	for current != nil {
		next := current.next
		if current.marked {
			current.marked = false
		} else {
			gc.Swept++
			gc.unlink(current)
		}
		current = next
	}
}

func (gc *GC) unlink(v *Value) {
	if v.prev != nil {
		v.prev.next = v.next
	} else {
		gc.head = v.next
	}
	if v.next != nil {
		v.next.prev = v.prev
	} else {
		gc.tail = v.prev
	}
	gc.size--
}

// Len reports how many values are currently registered (live, pending the
// next sweep).
func (gc *GC) Len() int {
	return gc.size
}

// Mark force-marks v as reachable without registering it as a root. Used by
// Call (§4.3.1 step 9) to protect a freshly produced result from a GC run
// triggered before the caller has a chance to bind it.
func (gc *GC) Mark(v *Value) {
	v.marked = true
}
