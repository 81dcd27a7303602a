// Package engine wires together a Heap, the built-in globals, and exactly
// one of the two execution paths per run — the bytecode VM or the
// tree-walking evaluator — selected at construction and never mirrored.
package engine

import (
	"github.com/pebbl-lang/pebbl/internal/builtins"
	"github.com/pebbl-lang/pebbl/internal/compiler"
	"github.com/pebbl-lang/pebbl/internal/errs"
	"github.com/pebbl-lang/pebbl/internal/logging"
	"github.com/pebbl-lang/pebbl/internal/treewalk"
	"github.com/pebbl-lang/pebbl/internal/vm"
	"github.com/pebbl-lang/pebbl/pkg/ast"
	"github.com/pebbl-lang/pebbl/pkg/bytecode"
	"github.com/pebbl-lang/pebbl/pkg/heap"
	"github.com/pebbl-lang/pebbl/pkg/object"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

// Mode selects which execution path is authoritative for a run.
type Mode int

const (
	ModeVM Mode = iota
	ModeTree
)

// ParseMode maps the --mode CLI flag's string form to a Mode, defaulting to
// ModeVM for anything unrecognized.
func ParseMode(s string) Mode {
	if s == "tree" {
		return ModeTree
	}
	return ModeVM
}

// Engine runs a parsed Program to completion under its selected Mode,
// owning the Heap and globals shared by whichever path is active.
type Engine struct {
	mode    Mode
	heap    *heap.Heap
	globals *object.Environment
	tracer  logging.Tracer
}

// New constructs an Engine with a fresh Heap at the heap package's default
// initial threshold, with built-ins registered as immutable globals.
func New(mode Mode) *Engine {
	h := heap.New()
	globals := h.AllocEnvironment(nil)
	builtins.Register(h, globals)
	return &Engine{mode: mode, heap: h, globals: globals, tracer: logging.NoOp{}}
}

// Heap exposes the Engine's heap, e.g. for --dump-chunk's compile-only path.
func (e *Engine) Heap() *heap.Heap { return e.heap }

// SetTracer installs t as this Engine's trace sink and propagates it to the
// heap immediately (GC events fire independently of which mode is active);
// the VM or compiler instantiated inside Run receives it too.
func (e *Engine) SetTracer(t logging.Tracer) {
	if t == nil {
		t = logging.NoOp{}
	}
	e.tracer = t
	e.heap.SetTracer(t)
}

// Run compiles (ModeVM) or directly walks (ModeTree) prog and executes it.
// A panic escaping either path — the signature of a corrupt Chunk or a
// broken internal invariant, never an ordinary PEBBL-level runtime error,
// which is always returned as an error value — is recovered here, at the
// single outermost boundary, and turned into a regular *errs.RuntimeError
// instead of crashing the host process (the CLI or the LSP server).
func (e *Engine) Run(prog *ast.Program) (result value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = value.Nil
			err = errs.New(errs.TypeError, "internal error: %v", r)
		}
	}()

	switch e.mode {
	case ModeTree:
		return treewalk.New(e.heap, e.globals).Run(prog)
	default:
		chunk, cerr := e.Compile(prog)
		if cerr != nil {
			return value.Nil, cerr
		}
		return e.RunChunk(chunk)
	}
}

// Compile compiles prog to a Chunk without running it. Valid only in
// ModeVM; ModeTree has no compiled representation, so callers that don't
// know their Engine's mode should prefer Run.
func (e *Engine) Compile(prog *ast.Program) (*bytecode.Chunk, error) {
	c := compiler.New(e.heap)
	c.SetTracer(e.tracer)
	return c.CompileProgram(prog)
}

// RunChunk runs a previously compiled Chunk — either fresh from Compile or
// reconstituted from internal/cache — against this Engine's heap and
// globals. Valid only in ModeVM.
func (e *Engine) RunChunk(chunk *bytecode.Chunk) (value.Value, error) {
	machine := vm.New(e.heap, e.globals)
	machine.SetTracer(e.tracer)
	return machine.Run(chunk)
}
