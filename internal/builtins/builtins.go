// Package builtins registers PEBBL's built-in global functions into an
// Environment, shared verbatim between the VM and the tree-walker so the
// two execution paths can never disagree about built-in behavior.
package builtins

import (
	"fmt"
	"strings"

	"github.com/pebbl-lang/pebbl/internal/errs"
	"github.com/pebbl-lang/pebbl/pkg/heap"
	"github.com/pebbl-lang/pebbl/pkg/object"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

// Register defines every built-in function in globals as an immutable
// binding, allocating each BuiltinFunction object on h.
func Register(h *heap.Heap, globals *object.Environment) {
	define := func(name string, arity int, fn object.BuiltinFunc) {
		v := h.AllocBuiltin(object.NewBuiltinFunction(name, arity, fn))
		globals.Define(name, v, false)
	}

	define("print", -1, biPrint)
	define("length", 1, biLength)
	define("type", 1, biType)
	define("str", 1, biStr)
	define("push", 2, biPush)
	define("pop", 1, biPop)
	define("keys", 1, biKeys)
	define("range", -1, biRange)
}

func biPrint(args []value.Value, ctx object.Context) (value.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = object.Stringify(a)
	}
	fmt.Println(strings.Join(parts, " "))
	return value.Nil, nil
}

func biLength(args []value.Value, ctx object.Context) (value.Value, error) {
	v := args[0]
	if !v.IsHeap() {
		return value.Nil, errs.New(errs.TypeError, "length: expected string, array, or dict, got %s", object.TypeName(v))
	}
	switch o := object.FromValue(v).(type) {
	case *object.String:
		return value.FromInt32(int32(o.Len())), nil
	case *object.Array:
		return value.FromInt32(int32(o.Len())), nil
	case *object.Dict:
		return value.FromInt32(int32(o.Len())), nil
	default:
		return value.Nil, errs.New(errs.TypeError, "length: expected string, array, or dict, got %s", object.TypeName(v))
	}
}

func biType(args []value.Value, ctx object.Context) (value.Value, error) {
	return ctx.NewString(object.TypeName(args[0])), nil
}

func biStr(args []value.Value, ctx object.Context) (value.Value, error) {
	return ctx.NewString(object.Stringify(args[0])), nil
}

func biPush(args []value.Value, ctx object.Context) (value.Value, error) {
	target := args[0]
	if !target.IsHeap() {
		return value.Nil, errs.New(errs.TypeError, "push: expected array, got %s", object.TypeName(target))
	}
	arr, ok := object.FromValue(target).(*object.Array)
	if !ok {
		return value.Nil, errs.New(errs.TypeError, "push: expected array, got %s", object.TypeName(target))
	}
	arr.Push(args[1])
	return value.Nil, nil
}

func biPop(args []value.Value, ctx object.Context) (value.Value, error) {
	target := args[0]
	if !target.IsHeap() {
		return value.Nil, errs.New(errs.TypeError, "pop: expected array, got %s", object.TypeName(target))
	}
	arr, ok := object.FromValue(target).(*object.Array)
	if !ok {
		return value.Nil, errs.New(errs.TypeError, "pop: expected array, got %s", object.TypeName(target))
	}
	v, ok := arr.Pop()
	if !ok {
		return value.Nil, nil
	}
	return v, nil
}

// keys returns a dict's keys as a new array, in map iteration order.
func biKeys(args []value.Value, ctx object.Context) (value.Value, error) {
	target := args[0]
	if !target.IsHeap() {
		return value.Nil, errs.New(errs.TypeError, "keys: expected dict, got %s", object.TypeName(target))
	}
	dict, ok := object.FromValue(target).(*object.Dict)
	if !ok {
		return value.Nil, errs.New(errs.TypeError, "keys: expected dict, got %s", object.TypeName(target))
	}
	elems := make([]value.Value, 0, len(dict.Entries))
	for k := range dict.Entries {
		elems = append(elems, ctx.NewString(k))
	}
	return ctx.NewArray(elems), nil
}

// range builds an array of consecutive integers: range(end) starts at 0,
// range(start, end) starts at start; end is exclusive.
func biRange(args []value.Value, ctx object.Context) (value.Value, error) {
	var start, end int32
	switch len(args) {
	case 1:
		if !args[0].IsInt32() {
			return value.Nil, errs.New(errs.TypeError, "range: expected integer argument")
		}
		end = args[0].Int32()
	case 2:
		if !args[0].IsInt32() || !args[1].IsInt32() {
			return value.Nil, errs.New(errs.TypeError, "range: expected integer arguments")
		}
		start = args[0].Int32()
		end = args[1].Int32()
	default:
		return value.Nil, errs.New(errs.ArityMismatch, "range: expected 1 or 2 arguments, got %d", len(args))
	}
	var elems []value.Value
	for i := start; i < end; i++ {
		elems = append(elems, value.FromInt32(i))
	}
	return ctx.NewArray(elems), nil
}
