// Package object defines PEBBL's heap object kinds and their shared header.
//
// Every kind embeds Header as its first field, so a *Header recovered from a
// boxed Value can be cast back to the concrete kind once its Kind tag is
// known.
package object

import (
	"unsafe"

	"github.com/pebbl-lang/pebbl/pkg/value"
)

// Kind identifies which concrete object type a Header belongs to.
type Kind uint8

const (
	KindString Kind = iota
	KindArray
	KindDict
	KindFunction
	KindBuiltinFunction
	KindEnvironment
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	case KindFunction:
		return "function"
	case KindBuiltinFunction:
		return "builtin_function"
	case KindEnvironment:
		return "environment"
	default:
		return "?"
	}
}

// Header is the common header every heap object carries: a mark bit for the
// collector, a kind tag for dispatch, and a link to the next object in the
// heap's allocation list.
type Header struct {
	Marked bool
	Kind   Kind
	Next   *Header
}

// Object is implemented by every heap object kind.
type Object interface {
	Hdr() *Header
	// Trace calls mark for every Value this object directly references.
	Trace(mark func(value.Value))
}

// ToValue boxes any Object as a Value, pointing at its Header (which, by
// Go's struct-layout guarantee for an embedded first field, shares the
// address of the concrete object).
func ToValue(o Object) value.Value {
	return value.FromPtr(unsafe.Pointer(o.Hdr()))
}

// HeaderOf recovers the Header from a heap Value. v must satisfy IsHeap.
func HeaderOf(v value.Value) *Header {
	return (*Header)(v.Ptr())
}

// FromValue recovers the concrete Object behind a heap Value, dispatching on
// the Header's Kind tag. Panics if v is not a heap value.
func FromValue(v value.Value) Object {
	if !v.IsHeap() {
		panic("object.FromValue: not a heap value")
	}
	return FromHeader(HeaderOf(v))
}

// FromHeader recovers the concrete Object behind a bare Header pointer,
// dispatching on its Kind tag. Used by the collector, which walks Headers
// directly rather than boxed Values while tracing.
func FromHeader(h *Header) Object {
	switch h.Kind {
	case KindString:
		return (*String)(unsafe.Pointer(h))
	case KindArray:
		return (*Array)(unsafe.Pointer(h))
	case KindDict:
		return (*Dict)(unsafe.Pointer(h))
	case KindFunction:
		return (*Function)(unsafe.Pointer(h))
	case KindBuiltinFunction:
		return (*BuiltinFunction)(unsafe.Pointer(h))
	case KindEnvironment:
		return (*Environment)(unsafe.Pointer(h))
	default:
		panic("object.FromHeader: unknown kind")
	}
}
