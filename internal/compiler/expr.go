package compiler

import (
	"math"

	"github.com/pebbl-lang/pebbl/internal/errs"
	"github.com/pebbl-lang/pebbl/pkg/ast"
	"github.com/pebbl-lang/pebbl/pkg/bytecode"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

func (c *Compiler) compileExpr(e *ast.Expr) error {
	switch e.Kind {
	case ast.ExprLiteral:
		return c.compileLiteral(e)

	case ast.ExprIdent:
		c.chunk.EmitWithOperand(bytecode.OpLoadVar, c.chunk.AddName(e.Name))
		return nil

	case ast.ExprBinary:
		if err := c.compileExpr(e.Left); err != nil {
			return err
		}
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		c.chunk.Emit(binaryOpcode(e.BinOp))
		return nil

	case ast.ExprLogical:
		return c.compileLogical(e)

	case ast.ExprUnary:
		if err := c.compileExpr(e.Operand); err != nil {
			return err
		}
		if e.UnOp == ast.Neg {
			c.chunk.Emit(bytecode.OpNegate)
		} else {
			c.chunk.Emit(bytecode.OpNot)
		}
		return nil

	case ast.ExprAssign:
		if err := c.compileExpr(e.Value); err != nil {
			return err
		}
		c.chunk.EmitWithOperand(bytecode.OpStoreVar, c.chunk.AddName(e.Target))
		return nil

	case ast.ExprCall:
		if err := c.compileExpr(e.Callee); err != nil {
			return err
		}
		for _, arg := range e.Args {
			if err := c.compileExpr(arg); err != nil {
				return err
			}
		}
		c.chunk.EmitWithOperand(bytecode.OpCall, uint32(len(e.Args)))
		return nil

	case ast.ExprIndex:
		if err := c.compileExpr(e.IndexTarget); err != nil {
			return err
		}
		if err := c.compileExpr(e.IndexKey); err != nil {
			return err
		}
		c.chunk.Emit(bytecode.OpIndex)
		return nil

	case ast.ExprArrayLit:
		for _, elem := range e.Elements {
			if err := c.compileExpr(elem); err != nil {
				return err
			}
		}
		c.chunk.EmitWithOperand(bytecode.OpBuildArray, uint32(len(e.Elements)))
		return nil

	case ast.ExprDictLit:
		for i := range e.Keys {
			if err := c.compileExpr(e.Keys[i]); err != nil {
				return err
			}
			if err := c.compileExpr(e.Values[i]); err != nil {
				return err
			}
		}
		c.chunk.EmitWithOperand(bytecode.OpBuildDict, uint32(len(e.Keys)))
		return nil

	case ast.ExprIf:
		return c.compileIf(e)
	}
	return errs.New(errs.TypeError, "compiler: unknown expression kind %d", e.Kind)
}

func (c *Compiler) compileLiteral(e *ast.Expr) error {
	switch e.LitKind {
	case ast.LitNil:
		c.chunk.Emit(bytecode.OpLoadNull)
	case ast.LitBool:
		if e.BoolValue {
			c.chunk.Emit(bytecode.OpLoadTrue)
		} else {
			c.chunk.Emit(bytecode.OpLoadFalse)
		}
	case ast.LitInt:
		if e.IntValue < math.MinInt32 || e.IntValue > math.MaxInt32 {
			return errs.New(errs.TypeError, "integer literal out of int32 range").WithLine(e.Line)
		}
		idx := c.chunk.AddConstant(value.FromInt32(int32(e.IntValue)))
		c.chunk.EmitWithOperand(bytecode.OpLoadConst, idx)
	case ast.LitFloat:
		idx := c.chunk.AddConstant(value.FromFloat64(e.FloatValue))
		c.chunk.EmitWithOperand(bytecode.OpLoadConst, idx)
	case ast.LitString:
		v := c.heap.AllocString(e.StrValue)
		idx := c.chunk.AddConstant(v)
		c.chunk.EmitWithOperand(bytecode.OpLoadConst, idx)
	default:
		return errs.New(errs.TypeError, "compiler: unknown literal kind %d", e.LitKind)
	}
	return nil
}

func binaryOpcode(op ast.BinaryOp) bytecode.Opcode {
	switch op {
	case ast.Add:
		return bytecode.OpAdd
	case ast.Sub:
		return bytecode.OpSub
	case ast.Mul:
		return bytecode.OpMul
	case ast.Div:
		return bytecode.OpDiv
	case ast.Eq:
		return bytecode.OpEqual
	case ast.NotEq:
		return bytecode.OpNotEqual
	case ast.Lt:
		return bytecode.OpLess
	case ast.Gt:
		return bytecode.OpGreater
	case ast.Le:
		return bytecode.OpLessEqual
	case ast.Ge:
		return bytecode.OpGreaterEqual
	}
	panic("compiler: unknown binary op")
}

// compileLogical implements short-circuit AND/OR: evaluate the left
// operand, DUP it so the fallthrough case can use
// it as the result without re-evaluating, jump past the right operand if
// it already determines the result, otherwise pop the duplicate and
// evaluate the right operand as the result.
func (c *Compiler) compileLogical(e *ast.Expr) error {
	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	c.chunk.Emit(bytecode.OpDup)
	var skipJump int
	if e.LogOp == ast.And {
		skipJump = c.chunk.EmitJump(bytecode.OpJumpIfFalse)
	} else {
		skipJump = c.chunk.EmitJump(bytecode.OpJumpIfTrue)
	}
	c.chunk.Emit(bytecode.OpPop)
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	c.chunk.PatchJump(skipJump)
	return nil
}

func (c *Compiler) compileIf(e *ast.Expr) error {
	if err := c.compileExpr(e.Cond); err != nil {
		return err
	}
	thenJump := c.chunk.EmitJump(bytecode.OpJumpIfFalse)
	if err := c.compileBlockExpr(e.Then); err != nil {
		return err
	}
	elseJump := c.chunk.EmitJump(bytecode.OpJump)
	c.chunk.PatchJump(thenJump)
	if e.Else != nil {
		if err := c.compileBlockExpr(e.Else); err != nil {
			return err
		}
	} else {
		c.chunk.Emit(bytecode.OpLoadNull)
	}
	c.chunk.PatchJump(elseJump)
	return nil
}

// compileBlockExpr compiles a Block used as an expression: every statement
// but the last runs for side effects (popping its value if it's an
// expression statement); the last statement's value is left on the stack
// if it is a StmtExpr, otherwise LOAD_NULL is emitted.
func (c *Compiler) compileBlockExpr(b *ast.Block) error {
	c.scopes = append(c.scopes, scope{kind: scopeBlock})
	defer func() { c.scopes = c.scopes[:len(c.scopes)-1] }()

	for i, stmt := range b.Stmts {
		last := i == len(b.Stmts)-1
		if last && stmt.Kind == ast.StmtExpr {
			if err := c.compileExpr(stmt.Expr); err != nil {
				return err
			}
			return nil
		}
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	c.chunk.Emit(bytecode.OpLoadNull)
	return nil
}
