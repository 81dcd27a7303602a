package vm

import (
	"testing"

	"github.com/pebbl-lang/pebbl/internal/compiler"
	"github.com/pebbl-lang/pebbl/pkg/bytecode"
	"github.com/pebbl-lang/pebbl/pkg/heap"
	"github.com/pebbl-lang/pebbl/pkg/object"
	"github.com/pebbl-lang/pebbl/pkg/syntax"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

func newVM() (*VM, *heap.Heap) {
	h := heap.New()
	globals := h.AllocEnvironment(nil)
	return New(h, globals), h
}

func TestInt32AddStaysInt32(t *testing.T) {
	vm, _ := newVM()
	c := bytecode.NewChunk()
	c.EmitWithOperand(bytecode.OpLoadConst, c.AddConstant(value.FromInt32(2)))
	c.EmitWithOperand(bytecode.OpLoadConst, c.AddConstant(value.FromInt32(3)))
	c.Emit(bytecode.OpAdd)
	c.Emit(bytecode.OpHalt)

	result, err := vm.Run(c)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !result.IsInt32() || result.Int32() != 5 {
		t.Errorf("result = %v, want int32 5", result)
	}
}

func TestDivideAlwaysWidensToFloat(t *testing.T) {
	vm, _ := newVM()
	c := bytecode.NewChunk()
	c.EmitWithOperand(bytecode.OpLoadConst, c.AddConstant(value.FromInt32(6)))
	c.EmitWithOperand(bytecode.OpLoadConst, c.AddConstant(value.FromInt32(3)))
	c.Emit(bytecode.OpDiv)
	c.Emit(bytecode.OpHalt)

	result, err := vm.Run(c)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !result.IsFloat() {
		t.Errorf("result = %v, want a float (DIVIDE always widens)", result)
	}
	if result.Float64() != 2.0 {
		t.Errorf("result = %v, want 2.0", result.Float64())
	}
}

func TestMixedIntFloatWidensBoth(t *testing.T) {
	vm, _ := newVM()
	c := bytecode.NewChunk()
	c.EmitWithOperand(bytecode.OpLoadConst, c.AddConstant(value.FromInt32(2)))
	c.EmitWithOperand(bytecode.OpLoadConst, c.AddConstant(value.FromFloat64(0.5)))
	c.Emit(bytecode.OpAdd)
	c.Emit(bytecode.OpHalt)

	result, err := vm.Run(c)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !result.IsFloat() || result.Float64() != 2.5 {
		t.Errorf("result = %v, want float 2.5", result)
	}
}

func TestDivisionByZeroErrors(t *testing.T) {
	vm, _ := newVM()
	c := bytecode.NewChunk()
	c.EmitWithOperand(bytecode.OpLoadConst, c.AddConstant(value.FromInt32(1)))
	c.EmitWithOperand(bytecode.OpLoadConst, c.AddConstant(value.FromInt32(0)))
	c.Emit(bytecode.OpDiv)
	c.Emit(bytecode.OpHalt)

	if _, err := vm.Run(c); err == nil {
		t.Errorf("Run() = nil error, want DivisionByZero")
	}
}

func TestCallArityMismatch(t *testing.T) {
	vm, h := newVM()
	builtin := h.AllocBuiltin(object.NewBuiltinFunction("one", 1, func(args []value.Value, ctx object.Context) (value.Value, error) {
		return value.Nil, nil
	}))

	c := bytecode.NewChunk()
	c.EmitWithOperand(bytecode.OpLoadConst, c.AddConstant(builtin))
	c.EmitWithOperand(bytecode.OpCall, 0) // calling with zero args against arity 1
	c.Emit(bytecode.OpHalt)

	if _, err := vm.Run(c); err == nil {
		t.Errorf("Run() = nil error, want ArityMismatch")
	}
}

func TestStackLengthAfterCallMatchesInvariant(t *testing.T) {
	// After RETURN, stack length equals pre_call_length - argc (callee and
	// args consumed, one return value pushed).
	vm, h := newVM()
	builtin := h.AllocBuiltin(object.NewBuiltinFunction("ident", 1, func(args []value.Value, ctx object.Context) (value.Value, error) {
		return args[0], nil
	}))

	c := bytecode.NewChunk()
	c.EmitWithOperand(bytecode.OpLoadConst, c.AddConstant(builtin))
	c.EmitWithOperand(bytecode.OpLoadConst, c.AddConstant(value.FromInt32(9)))
	c.EmitWithOperand(bytecode.OpCall, 1)
	c.Emit(bytecode.OpHalt)

	result, err := vm.Run(c)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Int32() != 9 {
		t.Errorf("result = %v, want 9", result)
	}
	if len(vm.stack) != 0 {
		t.Errorf("stack length after HALT = %d, want 0", len(vm.stack))
	}
}

func TestGCTriggersDuringExecutionWithoutLosingStackRoots(t *testing.T) {
	vm, h := newVM()
	c := bytecode.NewChunk()

	// Allocate 50 string constants before the chunk ever runs: enough
	// allocations to cross the heap's initial threshold (8) and force a
	// collection mid-build. A temporary root tracer over c.Constants keeps
	// them alive until LOAD_CONST starts pushing them onto the VM's own
	// rooted operand stack (mirrors internal/compiler's own constant-pool
	// tracer, registered for the same reason).
	const n = 50
	id := h.AddRootTracer(func(mark func(value.Value)) {
		for _, v := range c.Constants {
			mark(v)
		}
	})
	for i := 0; i < n; i++ {
		c.EmitWithOperand(bytecode.OpLoadConst, c.AddConstant(h.NewString("x")))
	}
	h.RemoveRootTracer(id)
	c.EmitWithOperand(bytecode.OpBuildArray, n)
	c.Emit(bytecode.OpHalt)

	result, err := vm.Run(c)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	arr, ok := object.FromValue(result).(*object.Array)
	if !ok {
		t.Fatalf("result is %T, want *object.Array", object.FromValue(result))
	}
	if arr.Len() != n {
		t.Errorf("Len() = %d, want %d", arr.Len(), n)
	}
	if h.Collections == 0 {
		t.Errorf("expected at least one collection while running this chunk")
	}
}

// TestTopLevelLoopDoesNotLeakStack guards against a regression where an
// expression statement inside a loop body at global scope went unpopped:
// each StmtExpr left its value sitting on the operand stack, so a
// long-running top-level while loop would eventually hit the VM's bounded
// stack and fail with a spurious StackOverflow even though the program is
// perfectly valid. 300 iterations comfortably exceeds the 256-slot stack if
// even one Value leaks per iteration.
func TestTopLevelLoopDoesNotLeakStack(t *testing.T) {
	h := heap.New()
	globals := h.AllocEnvironment(nil)

	p := syntax.NewParser("var i = 0; while i < 300 { i = i + 1 } i")
	prog, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	chunk, err := compiler.New(h).CompileProgram(prog)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	machine := New(h, globals)
	result, err := machine.Run(chunk)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Int32() != 300 {
		t.Errorf("result = %v, want 300", result)
	}
	if len(machine.stack) != 0 {
		t.Errorf("stack length after HALT = %d, want 0 (leaked %d values)", len(machine.stack), len(machine.stack))
	}
}
