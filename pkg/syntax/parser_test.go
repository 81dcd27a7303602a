package syntax

import (
	"testing"

	"github.com/pebbl-lang/pebbl/pkg/ast"
)

func parseOrFail(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := NewParser(src).ParseProgram()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return prog
}

func TestParseVarDecl(t *testing.T) {
	prog := parseOrFail(t, `let x = 1 + 2 * 3;`)
	if len(prog.Stmts) != 1 || prog.Stmts[0].Kind != ast.StmtVarDecl {
		t.Fatalf("expected one StmtVarDecl, got %+v", prog.Stmts)
	}
	if prog.Stmts[0].Value.Kind != ast.ExprBinary || prog.Stmts[0].Value.BinOp != ast.Add {
		t.Fatalf("expected + at the top of the expression tree (correct precedence), got %+v", prog.Stmts[0].Value)
	}
}

func TestParseFuncDeclWithImplicitReturn(t *testing.T) {
	prog := parseOrFail(t, `func f(n) { if n { n } else { 0 } }`)
	if len(prog.Stmts) != 1 || prog.Stmts[0].Kind != ast.StmtFuncDecl {
		t.Fatalf("expected one StmtFuncDecl, got %+v", prog.Stmts)
	}
	if len(prog.Stmts[0].Params) != 1 || prog.Stmts[0].Params[0] != "n" {
		t.Fatalf("expected params [n], got %v", prog.Stmts[0].Params)
	}
	body := prog.Stmts[0].FuncBody
	if body == nil || len(body.Stmts) != 1 || body.Stmts[0].Kind != ast.StmtExpr || body.Stmts[0].Expr.Kind != ast.ExprIf {
		t.Fatalf("expected the body to be a single if-expression statement (the implicit return value), got %+v", body)
	}
}

func TestParseForIn(t *testing.T) {
	prog := parseOrFail(t, `for item in arr { print(item); }`)
	if len(prog.Stmts) != 1 || prog.Stmts[0].Kind != ast.StmtForIn {
		t.Fatalf("expected one StmtForIn, got %+v", prog.Stmts)
	}
	if prog.Stmts[0].LoopVar != "item" {
		t.Fatalf("expected loop var item, got %q", prog.Stmts[0].LoopVar)
	}
}

func TestParseIndexAndDictLit(t *testing.T) {
	prog := parseOrFail(t, `let d = {"k": 1}; print(d["k"]);`)
	if prog.Stmts[0].Value.Kind != ast.ExprDictLit {
		t.Fatalf("expected dict literal, got %+v", prog.Stmts[0].Value)
	}
	call := prog.Stmts[1].Expr
	if call.Kind != ast.ExprCall || len(call.Args) != 1 || call.Args[0].Kind != ast.ExprIndex {
		t.Fatalf("expected print(d[\"k\"]) to parse as a call with an index arg, got %+v", call)
	}
}

func TestParseAssignmentRejectsNonIdentTarget(t *testing.T) {
	p := NewParser(`1 = 2;`)
	if _, err := p.ParseProgram(); err == nil {
		t.Fatalf("expected a parse error assigning to a non-identifier target")
	}
}

func TestParseLogicalShortCircuitPrecedence(t *testing.T) {
	prog := parseOrFail(t, `let x = a and b or c;`)
	// `or` binds looser than `and`, so the root is Or(And(a,b), c).
	root := prog.Stmts[0].Value
	if root.Kind != ast.ExprLogical || root.LogOp != ast.Or {
		t.Fatalf("expected top-level `or`, got %+v", root)
	}
	if root.Left.Kind != ast.ExprLogical || root.Left.LogOp != ast.And {
		t.Fatalf("expected left side `and`, got %+v", root.Left)
	}
}
