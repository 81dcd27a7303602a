// Package heap implements PEBBL's mark-and-sweep garbage collector: a
// GCObject{marked,tag,next}/Tracer-with-worklist/RootHandle design adapted
// to Go idiom and to PEBBL's own object kinds from pkg/object.
package heap

import (
	"github.com/pebbl-lang/pebbl/internal/logging"
	"github.com/pebbl-lang/pebbl/pkg/object"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

const initialThreshold = 8

// RootTracer is called by the collector during mark to walk a caller-owned
// root set (the VM stack, frame stack, globals, or the tree-walker's active
// environment chain) and report every reachable Value via mark.
type RootTracer func(mark func(value.Value))

// Heap owns every collectible object: the allocation list, the live count,
// and the collection threshold. No concurrent access is supported — the
// top-level driver owns the Heap exclusively for the duration of one run.
type Heap struct {
	head         *object.Header
	liveCount    int
	threshold    int
	tracers      map[int]RootTracer
	nextTracerID int
	gcTracer     logging.Tracer

	// Stats from the most recent collection, exposed for tracing/tests.
	LastSurvivors int
	Collections   int
}

// New returns an empty Heap with the initial threshold of 8 and GC tracing
// off (logging.NoOp).
func New() *Heap {
	return &Heap{threshold: initialThreshold, gcTracer: logging.NoOp{}}
}

// SetTracer installs t as this Heap's GC tracer. Passing nil restores the
// no-op tracer.
func (h *Heap) SetTracer(t logging.Tracer) {
	if t == nil {
		t = logging.NoOp{}
	}
	h.gcTracer = t
}

// AddRootTracer registers a callback invoked at the start of every
// collection to mark externally-reachable roots, returning a handle for
// RemoveRootTracer. The VM and tree-walker each register one tracer
// describing their own root set for the lifetime of a run; the compiler
// registers one for the duration of a single CompileProgram call, since
// constant-pool string allocations need rooting before the chunk they
// belong to is ever handed to a VM.
func (h *Heap) AddRootTracer(t RootTracer) int {
	if h.tracers == nil {
		h.tracers = make(map[int]RootTracer)
	}
	id := h.nextTracerID
	h.nextTracerID++
	h.tracers[id] = t
	return id
}

// RemoveRootTracer unregisters the tracer previously returned by
// AddRootTracer. Removing an already-removed or unknown id is a no-op.
func (h *Heap) RemoveRootTracer(id int) {
	delete(h.tracers, id)
}

// Allocate links obj into the allocation list, accounts for it in the live
// count, and runs a collection first if the live count has reached the
// threshold — obj itself is never swept by that collection since it is
// linked into the list only after the collection has run; it is returned
// to a caller who roots it immediately afterward. Callers must leave every other live
// Value reachable from the VM stack, a frame, or the globals before calling
// Allocate.
func (h *Heap) Allocate(obj object.Object) value.Value {
	if h.liveCount >= h.threshold {
		h.Collect()
	}
	hdr := obj.Hdr()
	hdr.Marked = false
	hdr.Next = h.head
	h.head = hdr
	h.liveCount++
	return object.ToValue(obj)
}

// Collect runs one stop-the-world mark-and-sweep cycle.
func (h *Heap) Collect() {
	h.gcTracer.TraceGC(logging.GCStats{Phase: "mark", Survivors: h.liveCount, Threshold: h.threshold})
	h.mark()
	survivors := h.sweep()
	h.LastSurvivors = survivors
	h.liveCount = survivors
	h.Collections++
	if survivors*2 > initialThreshold {
		h.threshold = survivors * 2
	} else {
		h.threshold = initialThreshold
	}
	h.gcTracer.TraceGC(logging.GCStats{Phase: "sweep", Survivors: survivors, Threshold: h.threshold})
}

// mark walks every registered root tracer and drains an explicit work
// list, never recursing in host-stack depth.
func (h *Heap) mark() {
	var worklist []*object.Header

	markValue := func(v value.Value) {
		if !v.IsHeap() {
			return
		}
		hdr := object.HeaderOf(v)
		if hdr.Marked {
			return
		}
		hdr.Marked = true
		worklist = append(worklist, hdr)
	}

	for _, tracer := range h.tracers {
		tracer(markValue)
	}

	for len(worklist) > 0 {
		hdr := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		object.FromHeader(hdr).Trace(markValue)
	}
}

// sweep walks the allocation list, unlinking and discarding unmarked
// objects, clearing the mark bit on survivors, and returns the survivor
// count.
func (h *Heap) sweep() int {
	survivors := 0
	var newHead *object.Header
	var tail *object.Header

	for hdr := h.head; hdr != nil; {
		next := hdr.Next
		if hdr.Marked {
			hdr.Marked = false
			hdr.Next = nil
			if tail == nil {
				newHead = hdr
			} else {
				tail.Next = hdr
			}
			tail = hdr
			survivors++
		}
		// Unmarked objects are simply dropped from the list; Go's own
		// collector reclaims the backing memory once nothing else in the
		// process still holds a pointer to it.
		hdr = next
	}

	h.head = newHead
	return survivors
}

// LiveCount returns the number of objects on the allocation list: the
// survivors of the last collection plus every object allocated since (or
// every object allocated, before any collection has run).
func (h *Heap) LiveCount() int { return h.liveCount }

// Threshold returns the live count at which the next collection triggers.
func (h *Heap) Threshold() int { return h.threshold }

// AllocString allocates a String object. Convenience wrapper satisfying
// object.Context for built-ins and the object.Context implementations in
// the VM/tree-walker.
func (h *Heap) AllocString(s string) value.Value {
	return h.Allocate(object.NewString(s))
}

// AllocArray allocates an Array object seeded with elems.
func (h *Heap) AllocArray(elems []value.Value) value.Value {
	return h.Allocate(object.NewArray(elems))
}

// AllocDict allocates an empty Dict object.
func (h *Heap) AllocDict() value.Value {
	return h.Allocate(object.NewDict())
}

// AllocEnvironment allocates an Environment object with the given parent.
func (h *Heap) AllocEnvironment(parent *object.Environment) *object.Environment {
	env := object.NewEnvironment(parent)
	h.Allocate(env)
	return env
}

// AllocFunction allocates a Function object.
func (h *Heap) AllocFunction(fn *object.Function) value.Value {
	return h.Allocate(fn)
}

// AllocBuiltin allocates a BuiltinFunction object.
func (h *Heap) AllocBuiltin(b *object.BuiltinFunction) value.Value {
	return h.Allocate(b)
}

// NewString and NewArray satisfy object.Context, letting built-in
// functions allocate through whichever Heap is driving the current run
// without depending on the VM or tree-walker concretely.
func (h *Heap) NewString(s string) value.Value        { return h.AllocString(s) }
func (h *Heap) NewArray(elems []value.Value) value.Value { return h.AllocArray(elems) }
