package object

import (
	"github.com/pebbl-lang/pebbl/pkg/ast"
	"github.com/pebbl-lang/pebbl/pkg/bytecode"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

// String is an immutable heap-allocated byte sequence.
type String struct {
	Header
	Bytes []byte
}

// NewString constructs a String object (not yet linked into any heap's
// allocation list; callers use Heap.Allocate to do that).
func NewString(s string) *String {
	return &String{Header: Header{Kind: KindString}, Bytes: []byte(s)}
}

func (s *String) Hdr() *Header                    { return &s.Header }
func (s *String) Trace(mark func(value.Value))    {} // strings hold no Values
func (s *String) String() string                  { return string(s.Bytes) }
func (s *String) Len() int                        { return len(s.Bytes) }

// Array is a growable sequence of Values.
type Array struct {
	Header
	Elements []value.Value
}

// NewArray constructs an Array object seeded with elems (copied).
func NewArray(elems []value.Value) *Array {
	a := &Array{Header: Header{Kind: KindArray}}
	a.Elements = append(a.Elements, elems...)
	return a
}

func (a *Array) Hdr() *Header { return &a.Header }

func (a *Array) Trace(mark func(value.Value)) {
	for _, v := range a.Elements {
		mark(v)
	}
}

func (a *Array) Len() int { return len(a.Elements) }

func (a *Array) Push(v value.Value) { a.Elements = append(a.Elements, v) }

// Pop removes and returns the last element; ok is false on an empty array.
func (a *Array) Pop() (value.Value, bool) {
	if len(a.Elements) == 0 {
		return value.Nil, false
	}
	last := a.Elements[len(a.Elements)-1]
	a.Elements = a.Elements[:len(a.Elements)-1]
	return last, true
}

// Dict maps string keys to Values; keys are restricted to Strings, so the
// representation is a plain Go string-keyed map rather than a
// Value-keyed one.
type Dict struct {
	Header
	Entries map[string]value.Value
}

// NewDict constructs an empty Dict object.
func NewDict() *Dict {
	return &Dict{Header: Header{Kind: KindDict}, Entries: make(map[string]value.Value)}
}

func (d *Dict) Hdr() *Header { return &d.Header }

func (d *Dict) Trace(mark func(value.Value)) {
	for _, v := range d.Entries {
		mark(v)
	}
}

func (d *Dict) Len() int { return len(d.Entries) }

// Function is a user-defined, closure-capturing function. Exactly one of
// Chunk (bytecode path) or Body (tree-walker path) is meaningful for a
// given run, selected by which Interpreter compiled it; both are populated
// when a function is compiled once and may be run under either mode.
type Function struct {
	Header
	Name    string
	Params  []string
	Chunk   *bytecode.Chunk
	Body    *ast.Block
	Closure *Environment
}

// NewFunction constructs a Function object.
func NewFunction(name string, params []string, chunk *bytecode.Chunk, body *ast.Block, closure *Environment) *Function {
	return &Function{
		Header:  Header{Kind: KindFunction},
		Name:    name,
		Params:  params,
		Chunk:   chunk,
		Body:    body,
		Closure: closure,
	}
}

func (f *Function) Hdr() *Header { return &f.Header }

func (f *Function) Trace(mark func(value.Value)) {
	if f.Closure != nil {
		mark(ToValue(f.Closure))
	}
}

// Context is the minimal allocation surface a BuiltinFunction's native
// callable needs: the ability to box new heap objects through whichever
// Heap is driving the current run. Both the VM and the tree-walker
// implement Context directly.
type Context interface {
	NewString(s string) value.Value
	NewArray(elems []value.Value) value.Value
}

// BuiltinFunc is the native callable signature for built-in functions,
// with Go's idiomatic explicit error return in place of an internal
// had_error flag.
type BuiltinFunc func(args []value.Value, ctx Context) (value.Value, error)

// BuiltinFunction is a native, non-closing function exposed as a global.
type BuiltinFunction struct {
	Header
	Name     string
	Arity    int // -1 means variadic
	Fn       BuiltinFunc
}

// NewBuiltinFunction constructs a BuiltinFunction object.
func NewBuiltinFunction(name string, arity int, fn BuiltinFunc) *BuiltinFunction {
	return &BuiltinFunction{Header: Header{Kind: KindBuiltinFunction}, Name: name, Arity: arity, Fn: fn}
}

func (b *BuiltinFunction) Hdr() *Header                 { return &b.Header }
func (b *BuiltinFunction) Trace(mark func(value.Value)) {}

// Environment is a heap-managed nested name→binding mapping: making it a
// GC object rather than a host-refcounted value means a function's closure
// stays alive for exactly as long as the GC can prove it's reachable, with
// no separate refcounting discipline to keep in sync with the
// mark-and-sweep collector.
type Environment struct {
	Header
	Bindings map[string]*Binding
	Parent   *Environment
}

// Binding is a single name's value slot and mutability flag.
type Binding struct {
	Value   value.Value
	Mutable bool
}

// NewEnvironment constructs an Environment with the given parent (nil for
// the global environment).
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{
		Header:   Header{Kind: KindEnvironment},
		Bindings: make(map[string]*Binding),
		Parent:   parent,
	}
}

func (e *Environment) Hdr() *Header { return &e.Header }

func (e *Environment) Trace(mark func(value.Value)) {
	for _, b := range e.Bindings {
		mark(b.Value)
	}
	if e.Parent != nil {
		mark(ToValue(e.Parent))
	}
}
