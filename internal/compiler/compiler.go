// Package compiler lowers a pkg/ast.Program into a pkg/bytecode.Chunk,
// walking the tree once in a single pass and tracking a scope stack for
// PEBBL's own opcode set and scoping rules.
package compiler

import (
	"github.com/pebbl-lang/pebbl/internal/errs"
	"github.com/pebbl-lang/pebbl/internal/logging"
	"github.com/pebbl-lang/pebbl/pkg/ast"
	"github.com/pebbl-lang/pebbl/pkg/bytecode"
	"github.com/pebbl-lang/pebbl/pkg/heap"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

// scopeKind distinguishes the compiler's compile-time scope stack entries;
// only the innermost entry's kind (whether an expression statement's value
// must be popped) and loop bookkeeping (loop_start for `while`) are actually consulted —
// PEBBL resolves all variable names at runtime through the Environment
// chain, so the compiler carries no slot-allocation table.
type scopeKind int

const (
	scopeGlobal scopeKind = iota
	scopeFunction
	scopeBlock
	scopeLoop
)

type scope struct {
	kind scopeKind
}

// Compiler lowers one Program (or one function body) into a Chunk.
type Compiler struct {
	heap             *heap.Heap
	chunk            *bytecode.Chunk
	scopes           []scope
	syntheticCounter int
	tracer           logging.Tracer
}

// New returns a Compiler that allocates string constants on h.
func New(h *heap.Heap) *Compiler {
	return &Compiler{heap: h, tracer: logging.NoOp{}}
}

// SetTracer installs t as this Compiler's trace sink; each compiled
// top-level statement is reported as one instruction event whose ip is the
// Chunk offset where the statement starts, whose "opcode" is the statement
// kind's name, and whose stack-depth slot carries the number of bytes the
// statement emitted, giving a
// coarse compile-time progress trace without threading a tracer through
// every Emit call. Passing nil restores the no-op tracer.
func (c *Compiler) SetTracer(t logging.Tracer) {
	if t == nil {
		t = logging.NoOp{}
	}
	c.tracer = t
}

// CompileProgram compiles a top-level Program into a Chunk.
func (c *Compiler) CompileProgram(prog *ast.Program) (*bytecode.Chunk, error) {
	c.chunk = bytecode.NewChunk()
	c.scopes = []scope{{kind: scopeGlobal}}

	// String literals are allocated on the heap as they're compiled, before
	// this Chunk's Constants pool is ever reachable from a running VM's
	// stack — without a tracer of its own, a collection triggered mid-
	// compilation (e.g. by the 8th string literal in a long program) would
	// sweep every earlier literal as unreachable.
	id := c.heap.AddRootTracer(c.traceConstants)
	defer c.heap.RemoveRootTracer(id)

	for _, stmt := range prog.Stmts {
		before := c.chunk.Len()
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
		c.tracer.TraceInstruction(before, stmtKindName(stmt.Kind), c.chunk.Len()-before)
	}
	c.chunk.Emit(bytecode.OpHalt)
	return c.chunk, nil
}

// traceConstants marks every heap value currently in this Compiler's
// constant pool; see CompileProgram and compileFuncDecl for why this needs
// its own root tracer rather than relying on the eventual VM's.
func (c *Compiler) traceConstants(mark func(value.Value)) {
	for _, v := range c.chunk.Constants {
		mark(v)
	}
}

func stmtKindName(k ast.StmtKind) string {
	switch k {
	case ast.StmtExpr:
		return "expr"
	case ast.StmtVarDecl:
		return "vardecl"
	case ast.StmtReturn:
		return "return"
	case ast.StmtBlock:
		return "block"
	case ast.StmtWhile:
		return "while"
	case ast.StmtForIn:
		return "forin"
	case ast.StmtFuncDecl:
		return "funcdecl"
	default:
		return "unknown"
	}
}

// atGlobalScope reports whether the innermost scope is the top-level
// program scope. A while/for-in loop body or a bare block pushes its own
// scope, so only a bare top-level expression statement is left unpopped;
// one inside such a body is popped.
func (c *Compiler) atGlobalScope() bool {
	return c.scopes[len(c.scopes)-1].kind == scopeGlobal
}

func (c *Compiler) synthName(prefix string) string {
	c.syntheticCounter++
	return prefix + itoa(c.syntheticCounter)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (c *Compiler) compileStmt(s *ast.Stmt) error {
	switch s.Kind {
	case ast.StmtExpr:
		if err := c.compileExpr(s.Expr); err != nil {
			return err
		}
		if !c.atGlobalScope() {
			c.chunk.Emit(bytecode.OpPop)
		}
		return nil

	case ast.StmtVarDecl:
		if err := c.compileExpr(s.Value); err != nil {
			return err
		}
		nameIdx := c.chunk.AddName(s.Name)
		c.chunk.EmitWithOperand(bytecode.OpDefineVar, nameIdx)
		return nil

	case ast.StmtReturn:
		if s.Value != nil {
			if err := c.compileExpr(s.Value); err != nil {
				return err
			}
		} else {
			c.chunk.Emit(bytecode.OpLoadNull)
		}
		c.chunk.Emit(bytecode.OpReturn)
		return nil

	case ast.StmtBlock:
		c.scopes = append(c.scopes, scope{kind: scopeBlock})
		for _, inner := range s.Block.Stmts {
			if err := c.compileStmt(inner); err != nil {
				return err
			}
		}
		c.scopes = c.scopes[:len(c.scopes)-1]
		return nil

	case ast.StmtWhile:
		return c.compileWhile(s)

	case ast.StmtForIn:
		return c.compileForIn(s)

	case ast.StmtFuncDecl:
		return c.compileFuncDecl(s)
	}
	return errs.New(errs.TypeError, "compiler: unknown statement kind %d", s.Kind)
}

func (c *Compiler) compileWhile(s *ast.Stmt) error {
	c.scopes = append(c.scopes, scope{kind: scopeLoop})
	loopStart := c.chunk.Len()
	if err := c.compileExpr(s.Cond); err != nil {
		return err
	}
	exitJump := c.chunk.EmitJump(bytecode.OpJumpIfFalse)
	for _, inner := range s.Body.Stmts {
		if err := c.compileStmt(inner); err != nil {
			return err
		}
	}
	c.chunk.EmitWithOperand(bytecode.OpJump, uint32(loopStart))
	c.chunk.PatchJump(exitJump)
	c.scopes = c.scopes[:len(c.scopes)-1]
	return nil
}

// compileForIn desugars `for x in EXPR { BODY }` into an equivalent while
// loop over a synthetic index local. The one exception to a pure
// while-loop desugaring is a single OpIterMaterialize opcode that resolves
// the (array-or-dict) target into a concrete element list once, up front —
// needed because PEBBL strings only compare by reference identity, so
// there is no way to branch on `type(x) == "array"` from bytecode alone.
func (c *Compiler) compileForIn(s *ast.Stmt) error {
	c.scopes = append(c.scopes, scope{kind: scopeLoop})

	iterName := c.synthName("@iter")
	idxName := c.synthName("@idx")

	if err := c.compileExpr(s.Iterable); err != nil {
		return err
	}
	c.chunk.Emit(bytecode.OpIterMaterialize)
	c.chunk.EmitWithOperand(bytecode.OpDefineVar, c.chunk.AddName(iterName))

	c.emitLoadConstInt(0)
	c.chunk.EmitWithOperand(bytecode.OpDefineVar, c.chunk.AddName(idxName))

	loopStart := c.chunk.Len()
	c.emitLoadVar(idxName)
	c.emitLoadVar(iterName)
	c.chunk.Emit(bytecode.OpIterLen)
	c.chunk.Emit(bytecode.OpLess)
	exitJump := c.chunk.EmitJump(bytecode.OpJumpIfFalse)

	c.emitLoadVar(iterName)
	c.emitLoadVar(idxName)
	c.chunk.Emit(bytecode.OpIndex)
	c.chunk.EmitWithOperand(bytecode.OpDefineVar, c.chunk.AddName(s.LoopVar))

	for _, inner := range s.Body.Stmts {
		if err := c.compileStmt(inner); err != nil {
			return err
		}
	}

	c.emitLoadVar(idxName)
	c.emitLoadConstInt(1)
	c.chunk.Emit(bytecode.OpAdd)
	c.chunk.EmitWithOperand(bytecode.OpStoreVar, c.chunk.AddName(idxName))
	c.chunk.Emit(bytecode.OpPop)

	c.chunk.EmitWithOperand(bytecode.OpJump, uint32(loopStart))
	c.chunk.PatchJump(exitJump)

	c.scopes = c.scopes[:len(c.scopes)-1]
	return nil
}

func (c *Compiler) emitLoadVar(name string) {
	c.chunk.EmitWithOperand(bytecode.OpLoadVar, c.chunk.AddName(name))
}

func (c *Compiler) emitLoadConstInt(i int32) {
	idx := c.chunk.AddConstant(value.FromInt32(i))
	c.chunk.EmitWithOperand(bytecode.OpLoadConst, idx)
}

func (c *Compiler) compileFuncDecl(s *ast.Stmt) error {
	fc := New(c.heap)
	fc.scopes = []scope{{kind: scopeFunction}}
	fc.chunk = bytecode.NewChunk()

	id := c.heap.AddRootTracer(fc.traceConstants)
	err := fc.compileFunctionBody(s.FuncBody)
	c.heap.RemoveRootTracer(id)
	if err != nil {
		return err
	}

	// The compiled body is attached to the enclosing Chunk's Functions
	// table rather than boxed as an ordinary constant, because building
	// the actual Function heap object requires the *runtime* closure
	// environment, which does not exist at compile time.
	idx := c.chunk.AddFunction(&bytecode.FunctionTemplate{
		Name:   s.FuncName,
		Params: s.Params,
		Chunk:  fc.chunk,
		Body:   s.FuncBody,
	})
	c.chunk.EmitWithOperand(bytecode.OpMakeFunction, idx)
	c.chunk.EmitWithOperand(bytecode.OpDefineFunc, c.chunk.AddName(s.FuncName))
	return nil
}

// compileFunctionBody compiles a function's statements with an implicit
// return: every statement but the last compiles normally (StmtExpr values
// popped, since only a function's overall result matters to its caller),
// but if the last statement is a StmtExpr its value is left on the stack
// and returned directly, so `func f(n) { if n { n } else { 0 } }` returns
// its trailing expression without a `return` keyword. A body with no
// trailing expression statement (or no statements at all) falls through to
// an implicit `return nil`.
func (c *Compiler) compileFunctionBody(body *ast.Block) error {
	for i, stmt := range body.Stmts {
		last := i == len(body.Stmts)-1
		if last && stmt.Kind == ast.StmtExpr {
			if err := c.compileExpr(stmt.Expr); err != nil {
				return err
			}
			c.chunk.Emit(bytecode.OpReturn)
			return nil
		}
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	c.chunk.Emit(bytecode.OpLoadNull)
	c.chunk.Emit(bytecode.OpReturn)
	return nil
}
