package syntax

import (
	"fmt"
	"strconv"

	"github.com/pebbl-lang/pebbl/internal/errs"
	"github.com/pebbl-lang/pebbl/pkg/ast"
)

// Parser is a recursive-descent parser over PEBBL's grammar, using a
// curToken/peekToken lookahead style.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	errors    []string
}

// NewParser returns a Parser ready to parse input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) curIs(t TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekIs(t TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expect(t TokenType) bool {
	if p.curIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken.Type)
	return false
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf("line %d: %s", p.curToken.Pos.Line, fmt.Sprintf(format, args...)))
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []string { return p.errors }

// ParseProgram parses a full program; returns a *RuntimeError{ParseError}
// wrapping the first error if any statement failed to parse.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for !p.curIs(TokenEOF) {
		stmt := p.parseStatement()
		if len(p.errors) > 0 {
			return nil, errs.New(errs.ParseError, p.errors[0])
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, nil
}

func (p *Parser) parseStatement() *ast.Stmt {
	line := p.curToken.Pos.Line
	switch p.curToken.Type {
	case TokenLet, TokenVar:
		return p.parseVarDecl(line)
	case TokenReturn:
		return p.parseReturn(line)
	case TokenLBrace:
		return &ast.Stmt{Kind: ast.StmtBlock, Line: line, Block: p.parseBlock()}
	case TokenWhile:
		return p.parseWhile(line)
	case TokenFor:
		return p.parseForIn(line)
	case TokenFunc:
		return p.parseFuncDecl(line)
	default:
		expr := p.parseExpression()
		p.skipSemicolon()
		return &ast.Stmt{Kind: ast.StmtExpr, Line: line, Expr: expr}
	}
}

func (p *Parser) skipSemicolon() {
	if p.curIs(TokenSemicolon) {
		p.nextToken()
	}
}

func (p *Parser) parseVarDecl(line int) *ast.Stmt {
	keyword := p.curToken.Literal
	p.nextToken()
	name := p.curToken.Literal
	p.expect(TokenIdent)
	p.expect(TokenEqual)
	value := p.parseExpression()
	p.skipSemicolon()
	return &ast.Stmt{Kind: ast.StmtVarDecl, Line: line, Name: name, VarKeyword: keyword, Value: value}
}

func (p *Parser) parseReturn(line int) *ast.Stmt {
	p.nextToken()
	if p.curIs(TokenSemicolon) || p.curIs(TokenRBrace) {
		p.skipSemicolon()
		return &ast.Stmt{Kind: ast.StmtReturn, Line: line}
	}
	value := p.parseExpression()
	p.skipSemicolon()
	return &ast.Stmt{Kind: ast.StmtReturn, Line: line, Value: value}
}

func (p *Parser) parseBlock() *ast.Block {
	p.expect(TokenLBrace)
	block := &ast.Block{}
	for !p.curIs(TokenRBrace) && !p.curIs(TokenEOF) {
		block.Stmts = append(block.Stmts, p.parseStatement())
	}
	p.expect(TokenRBrace)
	return block
}

func (p *Parser) parseWhile(line int) *ast.Stmt {
	p.nextToken()
	cond := p.parseExpression()
	body := p.parseBlock()
	return &ast.Stmt{Kind: ast.StmtWhile, Line: line, Cond: cond, Body: body}
}

func (p *Parser) parseForIn(line int) *ast.Stmt {
	p.nextToken()
	loopVar := p.curToken.Literal
	p.expect(TokenIdent)
	p.expect(TokenIn)
	iterable := p.parseExpression()
	body := p.parseBlock()
	return &ast.Stmt{Kind: ast.StmtForIn, Line: line, LoopVar: loopVar, Iterable: iterable, Body: body}
}

func (p *Parser) parseFuncDecl(line int) *ast.Stmt {
	p.nextToken()
	name := p.curToken.Literal
	p.expect(TokenIdent)
	p.expect(TokenLParen)
	var params []string
	for !p.curIs(TokenRParen) && !p.curIs(TokenEOF) {
		params = append(params, p.curToken.Literal)
		p.expect(TokenIdent)
		if p.curIs(TokenComma) {
			p.nextToken()
		}
	}
	p.expect(TokenRParen)
	body := p.parseBlock()
	return &ast.Stmt{Kind: ast.StmtFuncDecl, Line: line, FuncName: name, Params: params, FuncBody: body}
}

// parseExpression parses an assignment, which is the lowest-precedence
// PEBBL expression form (`target = value`); everything else is handled by
// the descending chain of binary/unary precedence levels below.
func (p *Parser) parseExpression() *ast.Expr {
	expr := p.parseOr()
	if p.curIs(TokenEqual) {
		if expr.Kind != ast.ExprIdent {
			p.errorf("invalid assignment target")
			return expr
		}
		line := p.curToken.Pos.Line
		p.nextToken()
		value := p.parseExpression()
		return &ast.Expr{Kind: ast.ExprAssign, Line: line, Target: expr.Name, Value: value}
	}
	return expr
}

func (p *Parser) parseOr() *ast.Expr {
	left := p.parseAnd()
	for p.curIs(TokenOr) {
		line := p.curToken.Pos.Line
		p.nextToken()
		right := p.parseAnd()
		left = &ast.Expr{Kind: ast.ExprLogical, Line: line, LogOp: ast.Or, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() *ast.Expr {
	left := p.parseEquality()
	for p.curIs(TokenAnd) {
		line := p.curToken.Pos.Line
		p.nextToken()
		right := p.parseEquality()
		left = &ast.Expr{Kind: ast.ExprLogical, Line: line, LogOp: ast.And, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseEquality() *ast.Expr {
	left := p.parseComparison()
	for p.curIs(TokenEqualEqual) || p.curIs(TokenBangEqual) {
		op := ast.Eq
		if p.curIs(TokenBangEqual) {
			op = ast.NotEq
		}
		line := p.curToken.Pos.Line
		p.nextToken()
		right := p.parseComparison()
		left = &ast.Expr{Kind: ast.ExprBinary, Line: line, BinOp: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseComparison() *ast.Expr {
	left := p.parseAdditive()
	for p.curIs(TokenLess) || p.curIs(TokenGreater) || p.curIs(TokenLessEqual) || p.curIs(TokenGreaterEqual) {
		var op ast.BinaryOp
		switch p.curToken.Type {
		case TokenLess:
			op = ast.Lt
		case TokenGreater:
			op = ast.Gt
		case TokenLessEqual:
			op = ast.Le
		case TokenGreaterEqual:
			op = ast.Ge
		}
		line := p.curToken.Pos.Line
		p.nextToken()
		right := p.parseAdditive()
		left = &ast.Expr{Kind: ast.ExprBinary, Line: line, BinOp: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() *ast.Expr {
	left := p.parseMultiplicative()
	for p.curIs(TokenPlus) || p.curIs(TokenMinus) {
		op := ast.Add
		if p.curIs(TokenMinus) {
			op = ast.Sub
		}
		line := p.curToken.Pos.Line
		p.nextToken()
		right := p.parseMultiplicative()
		left = &ast.Expr{Kind: ast.ExprBinary, Line: line, BinOp: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() *ast.Expr {
	left := p.parseUnary()
	for p.curIs(TokenStar) || p.curIs(TokenSlash) {
		op := ast.Mul
		if p.curIs(TokenSlash) {
			op = ast.Div
		}
		line := p.curToken.Pos.Line
		p.nextToken()
		right := p.parseUnary()
		left = &ast.Expr{Kind: ast.ExprBinary, Line: line, BinOp: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() *ast.Expr {
	if p.curIs(TokenMinus) || p.curIs(TokenBang) {
		op := ast.Neg
		if p.curIs(TokenBang) {
			op = ast.Not
		}
		line := p.curToken.Pos.Line
		p.nextToken()
		operand := p.parseUnary()
		return &ast.Expr{Kind: ast.ExprUnary, Line: line, UnOp: op, Operand: operand}
	}
	return p.parseCallOrIndex()
}

func (p *Parser) parseCallOrIndex() *ast.Expr {
	expr := p.parsePrimary()
	for {
		switch {
		case p.curIs(TokenLParen):
			line := p.curToken.Pos.Line
			p.nextToken()
			var args []*ast.Expr
			for !p.curIs(TokenRParen) && !p.curIs(TokenEOF) {
				args = append(args, p.parseExpression())
				if p.curIs(TokenComma) {
					p.nextToken()
				}
			}
			p.expect(TokenRParen)
			expr = &ast.Expr{Kind: ast.ExprCall, Line: line, Callee: expr, Args: args}
		case p.curIs(TokenLBracket):
			line := p.curToken.Pos.Line
			p.nextToken()
			key := p.parseExpression()
			p.expect(TokenRBracket)
			expr = &ast.Expr{Kind: ast.ExprIndex, Line: line, IndexTarget: expr, IndexKey: key}
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() *ast.Expr {
	line := p.curToken.Pos.Line
	switch p.curToken.Type {
	case TokenInt:
		lit := p.curToken.Literal
		p.nextToken()
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			p.errorf("invalid integer literal %q", lit)
		}
		return &ast.Expr{Kind: ast.ExprLiteral, Line: line, LitKind: ast.LitInt, IntValue: n}
	case TokenFloat:
		lit := p.curToken.Literal
		p.nextToken()
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			p.errorf("invalid float literal %q", lit)
		}
		return &ast.Expr{Kind: ast.ExprLiteral, Line: line, LitKind: ast.LitFloat, FloatValue: f}
	case TokenString:
		lit := p.curToken.Literal
		p.nextToken()
		return &ast.Expr{Kind: ast.ExprLiteral, Line: line, LitKind: ast.LitString, StrValue: lit}
	case TokenTrue:
		p.nextToken()
		return &ast.Expr{Kind: ast.ExprLiteral, Line: line, LitKind: ast.LitBool, BoolValue: true}
	case TokenFalse:
		p.nextToken()
		return &ast.Expr{Kind: ast.ExprLiteral, Line: line, LitKind: ast.LitBool, BoolValue: false}
	case TokenNil:
		p.nextToken()
		return &ast.Expr{Kind: ast.ExprLiteral, Line: line, LitKind: ast.LitNil}
	case TokenIdent:
		name := p.curToken.Literal
		p.nextToken()
		return &ast.Expr{Kind: ast.ExprIdent, Line: line, Name: name}
	case TokenLParen:
		p.nextToken()
		expr := p.parseExpression()
		p.expect(TokenRParen)
		return expr
	case TokenLBracket:
		return p.parseArrayLit(line)
	case TokenLBrace:
		return p.parseDictLit(line)
	case TokenIf:
		return p.parseIf(line)
	default:
		p.errorf("unexpected token %s", p.curToken.Type)
		p.nextToken()
		return &ast.Expr{Kind: ast.ExprLiteral, Line: line, LitKind: ast.LitNil}
	}
}

func (p *Parser) parseArrayLit(line int) *ast.Expr {
	p.nextToken()
	var elems []*ast.Expr
	for !p.curIs(TokenRBracket) && !p.curIs(TokenEOF) {
		elems = append(elems, p.parseExpression())
		if p.curIs(TokenComma) {
			p.nextToken()
		}
	}
	p.expect(TokenRBracket)
	return &ast.Expr{Kind: ast.ExprArrayLit, Line: line, Elements: elems}
}

func (p *Parser) parseDictLit(line int) *ast.Expr {
	p.nextToken()
	var keys, values []*ast.Expr
	for !p.curIs(TokenRBrace) && !p.curIs(TokenEOF) {
		keys = append(keys, p.parseExpression())
		p.expect(TokenColon)
		values = append(values, p.parseExpression())
		if p.curIs(TokenComma) {
			p.nextToken()
		}
	}
	p.expect(TokenRBrace)
	return &ast.Expr{Kind: ast.ExprDictLit, Line: line, Keys: keys, Values: values}
}

func (p *Parser) parseIf(line int) *ast.Expr {
	p.nextToken()
	cond := p.parseExpression()
	then := p.parseBlock()
	var els *ast.Block
	if p.curIs(TokenElse) {
		p.nextToken()
		if p.curIs(TokenIf) {
			inner := p.parseIf(p.curToken.Pos.Line)
			els = &ast.Block{Stmts: []*ast.Stmt{{Kind: ast.StmtExpr, Line: inner.Line, Expr: inner}}}
		} else {
			els = p.parseBlock()
		}
	}
	return &ast.Expr{Kind: ast.ExprIf, Line: line, Cond: cond, Then: then, Else: els}
}
