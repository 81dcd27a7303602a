// Package vm implements PEBBL's stack-based bytecode virtual machine: a
// dispatch loop and frame-stack discipline built around PEBBL's own opcode
// set and NaN-boxed Value representation.
package vm

import (
	"github.com/pebbl-lang/pebbl/internal/errs"
	"github.com/pebbl-lang/pebbl/internal/logging"
	"github.com/pebbl-lang/pebbl/pkg/bytecode"
	"github.com/pebbl-lang/pebbl/pkg/heap"
	"github.com/pebbl-lang/pebbl/pkg/object"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

const (
	maxStack  = 256
	maxFrames = 64
)

// CallFrame is one activation record, extended with the environment
// active while this frame is on top — the VM has no separate "current_env"
// variable; it is always frames[len(frames)-1].env.
type CallFrame struct {
	chunk     *bytecode.Chunk
	ip        int
	stackBase int
	env       *object.Environment
}

// VM executes one compiled Chunk to completion or to the first runtime
// error.
type VM struct {
	stack   []value.Value
	frames  []*CallFrame
	globals *object.Environment
	heap    *heap.Heap
	tracer  logging.Tracer
}

// New constructs a VM rooted at h, with builtins and any pre-defined globals
// already registered in globals. Tracing is off (logging.NoOp) until
// SetTracer is called.
func New(h *heap.Heap, globals *object.Environment) *VM {
	vm := &VM{
		stack:   make([]value.Value, 0, maxStack),
		globals: globals,
		heap:    h,
		tracer:  logging.NoOp{},
	}
	h.AddRootTracer(vm.traceRoots)
	return vm
}

// SetTracer installs t as this VM's instruction tracer. Passing nil
// restores the no-op tracer.
func (vm *VM) SetTracer(t logging.Tracer) {
	if t == nil {
		t = logging.NoOp{}
	}
	vm.tracer = t
}

// traceRoots marks every Value reachable from the VM's own state: the
// operand stack, each frame's environment chain, and globals.
func (vm *VM) traceRoots(mark func(value.Value)) {
	for _, v := range vm.stack {
		mark(v)
	}
	for _, f := range vm.frames {
		if f.env != nil {
			mark(object.ToValue(f.env))
		}
	}
	mark(object.ToValue(vm.globals))
}

// NewString and NewArray satisfy object.Context for built-ins invoked while
// this VM is running.
func (vm *VM) NewString(s string) value.Value           { return vm.heap.AllocString(s) }
func (vm *VM) NewArray(elems []value.Value) value.Value { return vm.heap.AllocArray(elems) }

func (vm *VM) topFrame() *CallFrame {
	return vm.frames[len(vm.frames)-1]
}

func (vm *VM) push(v value.Value) error {
	if len(vm.stack) >= maxStack {
		return errs.New(errs.StackOverflow, "VM stack exceeded %d entries", maxStack)
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() (value.Value, error) {
	if len(vm.stack) == 0 {
		return value.Nil, errs.New(errs.StackUnderflow, "pop from empty VM stack")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) peek(depthFromTop int) (value.Value, error) {
	idx := len(vm.stack) - 1 - depthFromTop
	if idx < 0 {
		return value.Nil, errs.New(errs.StackUnderflow, "peek past empty VM stack")
	}
	return vm.stack[idx], nil
}

// Run executes chunk as a top-level program, using vm.globals as the
// outermost frame's environment.
func (vm *VM) Run(chunk *bytecode.Chunk) (value.Value, error) {
	vm.frames = append(vm.frames, &CallFrame{chunk: chunk, stackBase: 0, env: vm.globals})
	return vm.loop()
}

// loop is the main fetch-decode-execute cycle, returning the top-of-stack
// value once the outermost frame halts and leaving the operand stack empty.
func (vm *VM) loop() (value.Value, error) {
	for len(vm.frames) > 0 {
		f := vm.topFrame()
		if f.ip >= f.chunk.Len() {
			if len(vm.frames) == 1 {
				break
			}
			vm.frames = vm.frames[:len(vm.frames)-1]
			continue
		}
		op := bytecode.Opcode(f.chunk.Code[f.ip])
		f.ip++

		var operand uint32
		if op.OperandBytes() > 0 {
			operand = f.chunk.ReadOperand(f.ip)
			f.ip += op.OperandBytes()
		}

		vm.tracer.TraceInstruction(f.ip-1-op.OperandBytes(), op.String(), len(vm.stack))
		if err := vm.dispatch(op, operand); err != nil {
			return value.Nil, err
		}
		if op == bytecode.OpHalt {
			break
		}
	}
	if len(vm.stack) == 0 {
		return value.Nil, nil
	}
	result := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:0]
	return result, nil
}

func (vm *VM) dispatch(op bytecode.Opcode, operand uint32) error {
	f := vm.topFrame()

	switch op {
	case bytecode.OpLoadConst:
		return vm.push(f.chunk.Constants[operand])

	case bytecode.OpLoadNull:
		return vm.push(value.Nil)

	case bytecode.OpLoadTrue:
		return vm.push(value.True)

	case bytecode.OpLoadFalse:
		return vm.push(value.False)

	case bytecode.OpLoadVar:
		v, err := f.env.Get(f.chunk.Names[operand])
		if err != nil {
			return err
		}
		return vm.push(v)

	case bytecode.OpStoreVar:
		v, err := vm.peek(0)
		if err != nil {
			return err
		}
		return f.env.Set(f.chunk.Names[operand], v)

	case bytecode.OpDefineVar:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		f.env.Define(f.chunk.Names[operand], v, true)
		return nil

	case bytecode.OpDefineFunc:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		f.env.Define(f.chunk.Names[operand], v, false)
		return nil

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv:
		return vm.binaryArith(op)

	case bytecode.OpNegate:
		return vm.negate()

	case bytecode.OpEqual:
		return vm.compareEq(false)

	case bytecode.OpNotEqual:
		return vm.compareEq(true)

	case bytecode.OpLess, bytecode.OpGreater, bytecode.OpLessEqual, bytecode.OpGreaterEqual:
		return vm.compareOrder(op)

	case bytecode.OpNot:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		return vm.push(value.FromBool(!v.IsTruthy()))

	case bytecode.OpIndex:
		return vm.index()

	case bytecode.OpJump:
		f.ip = int(operand)
		return nil

	case bytecode.OpJumpIfFalse:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if !v.IsTruthy() {
			f.ip = int(operand)
		}
		return nil

	case bytecode.OpJumpIfTrue:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if v.IsTruthy() {
			f.ip = int(operand)
		}
		return nil

	case bytecode.OpCall:
		return vm.call(int(operand))

	case bytecode.OpReturn:
		return vm.doReturn()

	case bytecode.OpBuildArray:
		return vm.buildArray(int(operand))

	case bytecode.OpBuildDict:
		return vm.buildDict(int(operand))

	case bytecode.OpPop:
		_, err := vm.pop()
		return err

	case bytecode.OpDup:
		v, err := vm.peek(0)
		if err != nil {
			return err
		}
		return vm.push(v)

	case bytecode.OpHalt:
		return nil

	case bytecode.OpMakeFunction:
		return vm.makeFunction(operand)

	case bytecode.OpIterMaterialize:
		return vm.iterMaterialize()

	case bytecode.OpIterLen:
		return vm.iterLen()
	}
	return errs.New(errs.TypeError, "VM: unimplemented opcode %s", op)
}
