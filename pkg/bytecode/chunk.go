package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/pebbl-lang/pebbl/pkg/ast"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

// Chunk holds a compiled, executable unit: an instruction stream, a
// constant pool, and a name pool — immutable once compilation finishes.
type Chunk struct {
	Code      []byte
	Constants []value.Value
	Names     []string
	Functions []*FunctionTemplate
}

// FunctionTemplate is a compiled function body plus its declared
// parameters, referenced by OpMakeFunction's operand. The VM materializes
// an actual object.Function (with the runtime closure environment bound)
// each time it executes the instruction; the template itself carries no
// closure because none exists until the enclosing scope is running.
type FunctionTemplate struct {
	Name   string
	Params []string
	Chunk  *Chunk
	Body   *ast.Block
}

// AddFunction appends a FunctionTemplate and returns its index.
func (c *Chunk) AddFunction(ft *FunctionTemplate) uint32 {
	c.Functions = append(c.Functions, ft)
	return uint32(len(c.Functions) - 1)
}

// NewChunk returns an empty Chunk ready for emission.
func NewChunk() *Chunk {
	return &Chunk{}
}

// AddConstant appends v to the constant pool and returns its index. Pool
// entries are not deduplicated by value equality: heap-pointer constants
// (strings allocated at compile time) must remain distinct slots
// so each compiled String literal gets its own heap identity, matching
// reference-identity equality semantics.
func (c *Chunk) AddConstant(v value.Value) uint32 {
	c.Constants = append(c.Constants, v)
	return uint32(len(c.Constants) - 1)
}

// AddName interns a variable/debug name and returns its index, reusing an
// existing slot if the name already appears in the pool.
func (c *Chunk) AddName(name string) uint32 {
	for i, n := range c.Names {
		if n == name {
			return uint32(i)
		}
	}
	c.Names = append(c.Names, name)
	return uint32(len(c.Names) - 1)
}

// Emit appends an opcode with no operand and returns its offset.
func (c *Chunk) Emit(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	return offset
}

// EmitWithOperand appends an opcode followed by a little-endian u32
// operand and returns the offset of the opcode byte.
func (c *Chunk) EmitWithOperand(op Opcode, operand uint32) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], operand)
	c.Code = append(c.Code, buf[:]...)
	return offset
}

// EmitJump appends a jump-family opcode with a placeholder operand and
// returns the offset of the opcode byte, for later patching with PatchJump.
func (c *Chunk) EmitJump(op Opcode) int {
	return c.EmitWithOperand(op, 0)
}

// PatchJump rewrites the operand of the jump instruction at offset to point
// at the Chunk's current end (i.e. "jump to here").
func (c *Chunk) PatchJump(offset int) {
	c.PatchJumpTo(offset, len(c.Code))
}

// PatchJumpTo rewrites the operand of the jump instruction at offset to
// target the given absolute instruction index.
func (c *Chunk) PatchJumpTo(offset int, target int) {
	binary.LittleEndian.PutUint32(c.Code[offset+1:offset+5], uint32(target))
}

// ReadOperand reads the u32 operand following the opcode at ip.
func (c *Chunk) ReadOperand(ip int) uint32 {
	return binary.LittleEndian.Uint32(c.Code[ip : ip+4])
}

// Len returns the number of bytes in the instruction stream.
func (c *Chunk) Len() int { return len(c.Code) }

// CheckJumpTargets validates that every jump operand lies within
// [0, len(instructions)). Intended for tests and debug-mode compilation.
func (c *Chunk) CheckJumpTargets() error {
	ip := 0
	for ip < len(c.Code) {
		op := Opcode(c.Code[ip])
		width := op.OperandBytes()
		if op.IsJump() {
			if ip+1+width > len(c.Code) {
				return fmt.Errorf("truncated operand at %d", ip)
			}
			target := int(c.ReadOperand(ip + 1))
			if target < 0 || target >= len(c.Code) {
				return fmt.Errorf("jump at %d targets out-of-range offset %d", ip, target)
			}
		}
		ip += 1 + width
	}
	return nil
}

// Disassemble renders a human-readable listing of the instruction stream.
func (c *Chunk) Disassemble(name string) string {
	out := fmt.Sprintf("== %s ==\n", name)
	ip := 0
	for ip < len(c.Code) {
		op := Opcode(c.Code[ip])
		width := op.OperandBytes()
		if width == 0 {
			out += fmt.Sprintf("%04d  %s\n", ip, op)
		} else {
			operand := c.ReadOperand(ip + 1)
			out += fmt.Sprintf("%04d  %-14s %d\n", ip, op, operand)
		}
		ip += 1 + width
	}
	return out
}
