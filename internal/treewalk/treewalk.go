// Package treewalk implements PEBBL's reference tree-walking evaluator: a
// second, independent execution path over the same pkg/ast tree the
// compiler consumes, with observable semantics matching the bytecode VM.
// A recursive evaluate/execute pair, built around the rule that exactly
// one of the two execution paths is authoritative per run.
package treewalk

import (
	"github.com/pebbl-lang/pebbl/internal/errs"
	"github.com/pebbl-lang/pebbl/pkg/ast"
	"github.com/pebbl-lang/pebbl/pkg/heap"
	"github.com/pebbl-lang/pebbl/pkg/object"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

// Interpreter evaluates a Program directly against its ast.Program form,
// without compiling to bytecode.
type Interpreter struct {
	heap    *heap.Heap
	globals *object.Environment
	current *object.Environment
}

// New constructs an Interpreter rooted at h, with globals as the outermost
// environment (already carrying any registered built-ins).
func New(h *heap.Heap, globals *object.Environment) *Interpreter {
	it := &Interpreter{heap: h, globals: globals, current: globals}
	h.AddRootTracer(it.traceRoots)
	return it
}

func (it *Interpreter) traceRoots(mark func(value.Value)) {
	mark(object.ToValue(it.globals))
	if it.current != nil {
		mark(object.ToValue(it.current))
	}
}

// NewString and NewArray satisfy object.Context for built-ins invoked while
// this Interpreter is running.
func (it *Interpreter) NewString(s string) value.Value           { return it.heap.AllocString(s) }
func (it *Interpreter) NewArray(elems []value.Value) value.Value { return it.heap.AllocArray(elems) }

// controlFlow threads a pending return out of nested statement execution
// without Go panics.
type controlFlow struct {
	returning bool
	value     value.Value
}

// Run evaluates every top-level statement in prog, returning the value of
// the last expression-statement executed at global scope (mirroring the
// VM's "top-level leaves the result visible for REPL" convention), or Nil.
func (it *Interpreter) Run(prog *ast.Program) (value.Value, error) {
	var last value.Value = value.Nil
	for _, stmt := range prog.Stmts {
		v, cf, err := it.execStmt(stmt)
		if err != nil {
			return value.Nil, err
		}
		if cf.returning {
			return cf.value, nil
		}
		if stmt.Kind == ast.StmtExpr {
			last = v
		}
	}
	return last, nil
}

// execBlock executes a block's statements directly in the active
// environment. PEBBL's scopes are resolved purely by the compile-time
// scope stack; neither execution path allocates a fresh runtime
// Environment per block, so `let` inside an if/while body behaves
// identically under the VM and the tree-walker.
func (it *Interpreter) execBlock(b *ast.Block) (value.Value, controlFlow, error) {
	var last value.Value = value.Nil
	for i, stmt := range b.Stmts {
		v, cf, err := it.execStmt(stmt)
		if err != nil {
			return value.Nil, controlFlow{}, err
		}
		if cf.returning {
			return value.Nil, cf, nil
		}
		if i == len(b.Stmts)-1 && stmt.Kind == ast.StmtExpr {
			last = v
		}
	}
	return last, controlFlow{}, nil
}

func (it *Interpreter) execStmt(s *ast.Stmt) (value.Value, controlFlow, error) {
	switch s.Kind {
	case ast.StmtExpr:
		v, err := it.eval(s.Expr)
		return v, controlFlow{}, err

	case ast.StmtVarDecl:
		v, err := it.eval(s.Value)
		if err != nil {
			return value.Nil, controlFlow{}, err
		}
		it.current.Define(s.Name, v, true)
		return value.Nil, controlFlow{}, nil

	case ast.StmtReturn:
		if s.Value == nil {
			return value.Nil, controlFlow{returning: true, value: value.Nil}, nil
		}
		v, err := it.eval(s.Value)
		if err != nil {
			return value.Nil, controlFlow{}, err
		}
		return value.Nil, controlFlow{returning: true, value: v}, nil

	case ast.StmtBlock:
		_, cf, err := it.execBlock(s.Block)
		return value.Nil, cf, err

	case ast.StmtWhile:
		return it.execWhile(s)

	case ast.StmtForIn:
		return it.execForIn(s)

	case ast.StmtFuncDecl:
		fn := object.NewFunction(s.FuncName, s.Params, nil, s.FuncBody, it.current)
		it.current.Define(s.FuncName, it.heap.AllocFunction(fn), false)
		return value.Nil, controlFlow{}, nil
	}
	return value.Nil, controlFlow{}, errs.New(errs.TypeError, "tree-walker: unknown statement kind %d", s.Kind)
}

func (it *Interpreter) execWhile(s *ast.Stmt) (value.Value, controlFlow, error) {
	for {
		cond, err := it.eval(s.Cond)
		if err != nil {
			return value.Nil, controlFlow{}, err
		}
		if !cond.IsTruthy() {
			return value.Nil, controlFlow{}, nil
		}
		_, cf, err := it.execBlock(s.Body)
		if err != nil {
			return value.Nil, controlFlow{}, err
		}
		if cf.returning {
			return value.Nil, cf, nil
		}
	}
}

// execForIn iterates an Array's elements in order or a Dict's keys (as
// heap Strings) in map iteration order.
func (it *Interpreter) execForIn(s *ast.Stmt) (value.Value, controlFlow, error) {
	target, err := it.eval(s.Iterable)
	if err != nil {
		return value.Nil, controlFlow{}, err
	}
	if !target.IsHeap() {
		return value.Nil, controlFlow{}, errs.New(errs.TypeError, "for-in target must be array or dict, got %s", object.TypeName(target))
	}

	var elems []value.Value
	switch t := object.FromValue(target).(type) {
	case *object.Array:
		elems = t.Elements
	case *object.Dict:
		for k := range t.Entries {
			elems = append(elems, it.heap.AllocString(k))
		}
	default:
		return value.Nil, controlFlow{}, errs.New(errs.TypeError, "for-in target must be array or dict, got %s", object.TypeName(target))
	}

	for _, elem := range elems {
		it.current.Define(s.LoopVar, elem, true)

		var cf controlFlow
		for _, stmt := range s.Body.Stmts {
			_, innerCf, err := it.execStmt(stmt)
			if err != nil {
				return value.Nil, controlFlow{}, err
			}
			if innerCf.returning {
				cf = innerCf
				break
			}
		}
		if cf.returning {
			return value.Nil, cf, nil
		}
	}
	return value.Nil, controlFlow{}, nil
}
