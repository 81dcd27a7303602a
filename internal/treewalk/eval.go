package treewalk

import (
	"math"

	"github.com/pebbl-lang/pebbl/internal/errs"
	"github.com/pebbl-lang/pebbl/pkg/ast"
	"github.com/pebbl-lang/pebbl/pkg/object"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

func (it *Interpreter) eval(e *ast.Expr) (value.Value, error) {
	switch e.Kind {
	case ast.ExprLiteral:
		return it.evalLiteral(e)

	case ast.ExprIdent:
		return it.current.Get(e.Name)

	case ast.ExprBinary:
		left, err := it.eval(e.Left)
		if err != nil {
			return value.Nil, err
		}
		right, err := it.eval(e.Right)
		if err != nil {
			return value.Nil, err
		}
		return evalBinary(e.BinOp, left, right)

	case ast.ExprLogical:
		return it.evalLogical(e)

	case ast.ExprUnary:
		operand, err := it.eval(e.Operand)
		if err != nil {
			return value.Nil, err
		}
		return evalUnary(e.UnOp, operand)

	case ast.ExprAssign:
		v, err := it.eval(e.Value)
		if err != nil {
			return value.Nil, err
		}
		if err := it.current.Set(e.Target, v); err != nil {
			return value.Nil, err
		}
		return v, nil

	case ast.ExprCall:
		return it.evalCall(e)

	case ast.ExprIndex:
		return it.evalIndex(e)

	case ast.ExprArrayLit:
		elems := make([]value.Value, len(e.Elements))
		for i, el := range e.Elements {
			v, err := it.eval(el)
			if err != nil {
				return value.Nil, err
			}
			elems[i] = v
		}
		return it.heap.AllocArray(elems), nil

	case ast.ExprDictLit:
		return it.evalDictLit(e)

	case ast.ExprIf:
		return it.evalIf(e)
	}
	return value.Nil, errs.New(errs.TypeError, "tree-walker: unknown expression kind %d", e.Kind)
}

func (it *Interpreter) evalLiteral(e *ast.Expr) (value.Value, error) {
	switch e.LitKind {
	case ast.LitNil:
		return value.Nil, nil
	case ast.LitBool:
		return value.FromBool(e.BoolValue), nil
	case ast.LitInt:
		if e.IntValue < math.MinInt32 || e.IntValue > math.MaxInt32 {
			return value.Nil, errs.New(errs.TypeError, "integer literal out of int32 range").WithLine(e.Line)
		}
		return value.FromInt32(int32(e.IntValue)), nil
	case ast.LitFloat:
		return value.FromFloat64(e.FloatValue), nil
	case ast.LitString:
		return it.heap.AllocString(e.StrValue), nil
	}
	return value.Nil, errs.New(errs.TypeError, "tree-walker: unknown literal kind %d", e.LitKind)
}

func (it *Interpreter) evalLogical(e *ast.Expr) (value.Value, error) {
	left, err := it.eval(e.Left)
	if err != nil {
		return value.Nil, err
	}
	if e.LogOp == ast.And && !left.IsTruthy() {
		return left, nil
	}
	if e.LogOp == ast.Or && left.IsTruthy() {
		return left, nil
	}
	return it.eval(e.Right)
}

func (it *Interpreter) evalIf(e *ast.Expr) (value.Value, error) {
	cond, err := it.eval(e.Cond)
	if err != nil {
		return value.Nil, err
	}
	if cond.IsTruthy() {
		v, _, err := it.execBlock(e.Then)
		return v, err
	}
	if e.Else != nil {
		v, _, err := it.execBlock(e.Else)
		return v, err
	}
	return value.Nil, nil
}

func (it *Interpreter) evalDictLit(e *ast.Expr) (value.Value, error) {
	dictVal := it.heap.AllocDict()
	dict := object.FromValue(dictVal).(*object.Dict)
	for i := range e.Keys {
		k, err := it.eval(e.Keys[i])
		if err != nil {
			return value.Nil, err
		}
		v, err := it.eval(e.Values[i])
		if err != nil {
			return value.Nil, err
		}
		if !k.IsHeap() {
			return value.Nil, errs.New(errs.BadDictKey, "dict key must be a string, got %s", object.TypeName(k))
		}
		s, ok := object.FromValue(k).(*object.String)
		if !ok {
			return value.Nil, errs.New(errs.BadDictKey, "dict key must be a string, got %s", object.TypeName(k))
		}
		dict.Entries[s.String()] = v
	}
	return dictVal, nil
}

func (it *Interpreter) evalIndex(e *ast.Expr) (value.Value, error) {
	target, err := it.eval(e.IndexTarget)
	if err != nil {
		return value.Nil, err
	}
	key, err := it.eval(e.IndexKey)
	if err != nil {
		return value.Nil, err
	}
	if !target.IsHeap() {
		return value.Nil, errs.New(errs.TypeError, "INDEX target must be array or dict, got %s", object.TypeName(target))
	}
	switch t := object.FromValue(target).(type) {
	case *object.Array:
		if !key.IsInt32() {
			return value.Nil, errs.New(errs.TypeError, "array index must be an integer, got %s", object.TypeName(key))
		}
		i := key.Int32()
		if i < 0 || int(i) >= t.Len() {
			return value.Nil, errs.New(errs.IndexOutOfRange, "array index %d out of range (length %d)", i, t.Len())
		}
		return t.Elements[i], nil
	case *object.Dict:
		if !key.IsHeap() {
			return value.Nil, errs.New(errs.TypeError, "dict key must be a string, got %s", object.TypeName(key))
		}
		s, ok := object.FromValue(key).(*object.String)
		if !ok {
			return value.Nil, errs.New(errs.TypeError, "dict key must be a string, got %s", object.TypeName(key))
		}
		v, ok := t.Entries[s.String()]
		if !ok {
			return value.Nil, errs.New(errs.KeyNotFound, "key %q not found", s.String())
		}
		return v, nil
	default:
		return value.Nil, errs.New(errs.TypeError, "INDEX target must be array or dict, got %s", object.TypeName(target))
	}
}

func (it *Interpreter) evalCall(e *ast.Expr) (value.Value, error) {
	callee, err := it.eval(e.Callee)
	if err != nil {
		return value.Nil, err
	}
	args := make([]value.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := it.eval(a)
		if err != nil {
			return value.Nil, err
		}
		args[i] = v
	}
	if !callee.IsHeap() {
		return value.Nil, errs.New(errs.NotCallable, "value of type %s is not callable", object.TypeName(callee))
	}
	switch fn := object.FromValue(callee).(type) {
	case *object.BuiltinFunction:
		if fn.Arity >= 0 && len(args) != fn.Arity {
			return value.Nil, errs.New(errs.ArityMismatch, "%s expects %d argument(s), got %d", fn.Name, fn.Arity, len(args))
		}
		return fn.Fn(args, it)
	case *object.Function:
		if len(args) != len(fn.Params) {
			return value.Nil, errs.New(errs.ArityMismatch, "%s expects %d argument(s), got %d", fn.Name, len(fn.Params), len(args))
		}
		callEnv := it.heap.AllocEnvironment(fn.Closure)
		for i, p := range fn.Params {
			callEnv.Define(p, args[i], true)
		}
		saved := it.current
		it.current = callEnv
		defer func() { it.current = saved }()

		result, cf, err := it.execBlock(fn.Body)
		if err != nil {
			return value.Nil, err
		}
		if cf.returning {
			return cf.value, nil
		}
		return result, nil
	default:
		return value.Nil, errs.New(errs.NotCallable, "value of type %s is not callable", object.TypeName(callee))
	}
}

func evalBinary(op ast.BinaryOp, a, b value.Value) (value.Value, error) {
	if op == ast.Eq {
		return value.FromBool(object.Equal(a, b)), nil
	}
	if op == ast.NotEq {
		return value.FromBool(!object.Equal(a, b)), nil
	}

	isNumeric := func(v value.Value) bool { return v.IsInt32() || v.IsFloat() }
	if !isNumeric(a) || !isNumeric(b) {
		return value.Nil, errs.New(errs.TypeError, "operator requires numeric operands, got %s and %s", object.TypeName(a), object.TypeName(b))
	}
	asFloat := func(v value.Value) float64 {
		if v.IsInt32() {
			return float64(v.Int32())
		}
		return v.Float64()
	}

	switch op {
	case ast.Lt, ast.Gt, ast.Le, ast.Ge:
		x, y := asFloat(a), asFloat(b)
		switch op {
		case ast.Lt:
			return value.FromBool(x < y), nil
		case ast.Gt:
			return value.FromBool(x > y), nil
		case ast.Le:
			return value.FromBool(x <= y), nil
		case ast.Ge:
			return value.FromBool(x >= y), nil
		}
	}

	if op != ast.Div && a.IsInt32() && b.IsInt32() {
		x, y := a.Int32(), b.Int32()
		switch op {
		case ast.Add:
			return value.FromInt32(x + y), nil
		case ast.Sub:
			return value.FromInt32(x - y), nil
		case ast.Mul:
			return value.FromInt32(x * y), nil
		}
	}

	x, y := asFloat(a), asFloat(b)
	switch op {
	case ast.Add:
		return value.FromFloat64(x + y), nil
	case ast.Sub:
		return value.FromFloat64(x - y), nil
	case ast.Mul:
		return value.FromFloat64(x * y), nil
	case ast.Div:
		if y == 0 {
			return value.Nil, errs.New(errs.DivisionByZero, "division by zero")
		}
		return value.FromFloat64(x / y), nil
	}
	return value.Nil, errs.New(errs.TypeError, "unreachable binary op")
}

func evalUnary(op ast.UnaryOp, v value.Value) (value.Value, error) {
	if op == ast.Not {
		return value.FromBool(!v.IsTruthy()), nil
	}
	switch {
	case v.IsInt32():
		return value.FromInt32(-v.Int32()), nil
	case v.IsFloat():
		return value.FromFloat64(-v.Float64()), nil
	default:
		return value.Nil, errs.New(errs.TypeError, "unary minus requires a numeric operand, got %s", object.TypeName(v))
	}
}
