package vm

import (
	"github.com/pebbl-lang/pebbl/internal/errs"
	"github.com/pebbl-lang/pebbl/pkg/bytecode"
	"github.com/pebbl-lang/pebbl/pkg/object"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

func isNumeric(v value.Value) bool { return v.IsInt32() || v.IsFloat() }

func asFloat(v value.Value) float64 {
	if v.IsInt32() {
		return float64(v.Int32())
	}
	return v.Float64()
}

// binaryArith implements PEBBL's numeric coercion rule: int32 op int32
// stays int32 except DIVIDE, which always widens to double; any double
// operand widens both to double.
func (vm *VM) binaryArith(op bytecode.Opcode) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	if !isNumeric(a) || !isNumeric(b) {
		return errs.New(errs.TypeError, "arithmetic requires numeric operands, got %s and %s", object.TypeName(a), object.TypeName(b))
	}

	if op != bytecode.OpDiv && a.IsInt32() && b.IsInt32() {
		x, y := a.Int32(), b.Int32()
		switch op {
		case bytecode.OpAdd:
			return vm.push(value.FromInt32(x + y))
		case bytecode.OpSub:
			return vm.push(value.FromInt32(x - y))
		case bytecode.OpMul:
			return vm.push(value.FromInt32(x * y))
		}
	}

	x, y := asFloat(a), asFloat(b)
	switch op {
	case bytecode.OpAdd:
		return vm.push(value.FromFloat64(x + y))
	case bytecode.OpSub:
		return vm.push(value.FromFloat64(x - y))
	case bytecode.OpMul:
		return vm.push(value.FromFloat64(x * y))
	case bytecode.OpDiv:
		if y == 0 {
			return errs.New(errs.DivisionByZero, "division by zero")
		}
		return vm.push(value.FromFloat64(x / y))
	}
	return errs.New(errs.TypeError, "unreachable arithmetic opcode %s", op)
}

func (vm *VM) negate() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	switch {
	case v.IsInt32():
		return vm.push(value.FromInt32(-v.Int32()))
	case v.IsFloat():
		return vm.push(value.FromFloat64(-v.Float64()))
	default:
		return errs.New(errs.TypeError, "unary minus requires a numeric operand, got %s", object.TypeName(v))
	}
}

func (vm *VM) compareEq(negate bool) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	eq := object.Equal(a, b)
	if negate {
		eq = !eq
	}
	return vm.push(value.FromBool(eq))
}

func (vm *VM) compareOrder(op bytecode.Opcode) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	if !isNumeric(a) || !isNumeric(b) {
		return errs.New(errs.TypeError, "comparison requires numeric operands, got %s and %s", object.TypeName(a), object.TypeName(b))
	}
	x, y := asFloat(a), asFloat(b)
	var result bool
	switch op {
	case bytecode.OpLess:
		result = x < y
	case bytecode.OpGreater:
		result = x > y
	case bytecode.OpLessEqual:
		result = x <= y
	case bytecode.OpGreaterEqual:
		result = x >= y
	}
	return vm.push(value.FromBool(result))
}

// index implements the INDEX opcode's array/dict specialization.
func (vm *VM) index() error {
	key, err := vm.pop()
	if err != nil {
		return err
	}
	target, err := vm.pop()
	if err != nil {
		return err
	}
	if !target.IsHeap() {
		return errs.New(errs.TypeError, "INDEX target must be array or dict, got %s", object.TypeName(target))
	}
	switch t := object.FromValue(target).(type) {
	case *object.Array:
		if !key.IsInt32() {
			return errs.New(errs.TypeError, "array index must be an integer, got %s", object.TypeName(key))
		}
		i := key.Int32()
		if i < 0 || int(i) >= t.Len() {
			return errs.New(errs.IndexOutOfRange, "array index %d out of range (length %d)", i, t.Len())
		}
		return vm.push(t.Elements[i])
	case *object.Dict:
		if !key.IsHeap() {
			return errs.New(errs.TypeError, "dict key must be a string, got %s", object.TypeName(key))
		}
		s, ok := object.FromValue(key).(*object.String)
		if !ok {
			return errs.New(errs.TypeError, "dict key must be a string, got %s", object.TypeName(key))
		}
		v, ok := t.Entries[s.String()]
		if !ok {
			return errs.New(errs.KeyNotFound, "key %q not found", s.String())
		}
		return vm.push(v)
	default:
		return errs.New(errs.TypeError, "INDEX target must be array or dict, got %s", object.TypeName(target))
	}
}

func (vm *VM) buildArray(count int) error {
	if len(vm.stack) < count {
		return errs.New(errs.StackUnderflow, "BUILD_ARRAY needs %d values, stack has %d", count, len(vm.stack))
	}
	elems := make([]value.Value, count)
	copy(elems, vm.stack[len(vm.stack)-count:])
	vm.stack = vm.stack[:len(vm.stack)-count]
	return vm.push(vm.heap.AllocArray(elems))
}

func (vm *VM) buildDict(pairCount int) error {
	need := pairCount * 2
	if len(vm.stack) < need {
		return errs.New(errs.StackUnderflow, "BUILD_DICT needs %d values, stack has %d", need, len(vm.stack))
	}
	base := len(vm.stack) - need
	dictVal := vm.heap.AllocDict()
	dict := object.FromValue(dictVal).(*object.Dict)
	for i := 0; i < pairCount; i++ {
		k := vm.stack[base+2*i]
		v := vm.stack[base+2*i+1]
		if !k.IsHeap() {
			return errs.New(errs.BadDictKey, "dict key must be a string, got %s", object.TypeName(k))
		}
		s, ok := object.FromValue(k).(*object.String)
		if !ok {
			return errs.New(errs.BadDictKey, "dict key must be a string, got %s", object.TypeName(k))
		}
		dict.Entries[s.String()] = v
	}
	vm.stack = vm.stack[:base]
	return vm.push(dictVal)
}

// makeFunction materializes a Function heap object from the Chunk's
// FunctionTemplate at index operand, closing over the currently active
// environment.
func (vm *VM) makeFunction(operand uint32) error {
	f := vm.topFrame()
	tpl := f.chunk.Functions[operand]
	fn := object.NewFunction(tpl.Name, tpl.Params, tpl.Chunk, tpl.Body, f.env)
	return vm.push(vm.heap.AllocFunction(fn))
}

// call implements CALL argc for both BuiltinFunction and Function callees.
func (vm *VM) call(argc int) error {
	calleeIdx := len(vm.stack) - 1 - argc
	if calleeIdx < 0 {
		return errs.New(errs.StackUnderflow, "CALL needs %d args beneath the callee", argc)
	}
	callee := vm.stack[calleeIdx]
	if !callee.IsHeap() {
		return errs.New(errs.NotCallable, "value of type %s is not callable", object.TypeName(callee))
	}

	switch fn := object.FromValue(callee).(type) {
	case *object.BuiltinFunction:
		if fn.Arity >= 0 && argc != fn.Arity {
			return errs.New(errs.ArityMismatch, "%s expects %d argument(s), got %d", fn.Name, fn.Arity, argc)
		}
		args := make([]value.Value, argc)
		copy(args, vm.stack[calleeIdx+1:])
		vm.stack = vm.stack[:calleeIdx]
		result, err := fn.Fn(args, vm)
		if err != nil {
			return err
		}
		return vm.push(result)

	case *object.Function:
		if argc != len(fn.Params) {
			return errs.New(errs.ArityMismatch, "%s expects %d argument(s), got %d", fn.Name, len(fn.Params), argc)
		}
		if len(vm.frames) >= maxFrames {
			return errs.New(errs.StackOverflow, "call frame stack exceeded %d entries", maxFrames)
		}
		callEnv := vm.heap.AllocEnvironment(fn.Closure)
		for i, p := range fn.Params {
			callEnv.Define(p, vm.stack[calleeIdx+1+i], true)
		}
		vm.stack = vm.stack[:calleeIdx]
		vm.frames = append(vm.frames, &CallFrame{chunk: fn.Chunk, ip: 0, stackBase: len(vm.stack), env: callEnv})
		return nil

	default:
		return errs.New(errs.NotCallable, "value of type %s is not callable", object.TypeName(callee))
	}
}

func (vm *VM) doReturn() error {
	r, err := vm.pop()
	if err != nil {
		return err
	}
	f := vm.topFrame()
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.stack = vm.stack[:f.stackBase]
	return vm.push(r)
}

// iterMaterialize implements for-in's desugaring: it resolves the
// (array-or-dict) polymorphism of the iterated target once, up front, into
// a concrete Array of elements (array case) or keys (dict case), so the
// rest of the desugared loop is an ordinary indexed while loop.
func (vm *VM) iterMaterialize() error {
	target, err := vm.pop()
	if err != nil {
		return err
	}
	if !target.IsHeap() {
		return errs.New(errs.TypeError, "for-in target must be array or dict, got %s", object.TypeName(target))
	}
	switch t := object.FromValue(target).(type) {
	case *object.Array:
		elems := make([]value.Value, t.Len())
		copy(elems, t.Elements)
		return vm.push(vm.heap.AllocArray(elems))
	case *object.Dict:
		elems := make([]value.Value, 0, t.Len())
		for k := range t.Entries {
			elems = append(elems, vm.heap.AllocString(k))
		}
		return vm.push(vm.heap.AllocArray(elems))
	default:
		return errs.New(errs.TypeError, "for-in target must be array or dict, got %s", object.TypeName(target))
	}
}

func (vm *VM) iterLen() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	arr, ok := object.FromValue(v).(*object.Array)
	if !ok {
		return errs.New(errs.TypeError, "ITER_LEN expects a materialized array")
	}
	return vm.push(value.FromInt32(int32(arr.Len())))
}
