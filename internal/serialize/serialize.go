// Package serialize implements PEBBL's canonical Chunk wire format: magic
// header, version, flags, constant pool, name pool, and instruction
// stream, encoded via CBOR in canonical mode so the same Chunk always
// serializes to the same bytes — required for the content-addressed cache
// in internal/cache to hash stably.
package serialize

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/pebbl-lang/pebbl/pkg/bytecode"
	"github.com/pebbl-lang/pebbl/pkg/object"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

const (
	magic          = "PBBC"
	currentVersion = 1
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("serialize: failed to build canonical CBOR encode mode: %v", err))
	}
	cborEncMode = em
}

// valueKind tags a constant-pool entry's Value variant so it round-trips
// through CBOR without relying on the live NaN-boxed bit pattern, which is
// process-local for heap pointers (tag 1) and therefore not portable.
type valueKind uint8

const (
	kindNull valueKind = iota
	kindBool
	kindInt32
	kindFloat64
	kindString
)

// wireValue is the on-the-wire form of one constant-pool entry.
type wireValue struct {
	Kind valueKind `cbor:"1,keyasint"`
	Bool bool      `cbor:"2,keyasint,omitempty"`
	I32  int32     `cbor:"3,keyasint,omitempty"`
	F64  float64   `cbor:"4,keyasint,omitempty"`
	Str  string    `cbor:"5,keyasint,omitempty"`
}

// wireFunction is the on-the-wire form of one bytecode.FunctionTemplate.
// Body is intentionally dropped: a cached Chunk feeds only the VM path
// (internal/vm executes compiled code; the tree-walker never consumes a
// Chunk), so the AST needed only for the tree-walker's own execution is not
// part of the persisted artifact.
type wireFunction struct {
	Name   string    `cbor:"1,keyasint"`
	Params []string  `cbor:"2,keyasint"`
	Chunk  wireChunk `cbor:"3,keyasint"`
}

// wireChunk is the on-the-wire form of one bytecode.Chunk.
type wireChunk struct {
	Magic     string         `cbor:"1,keyasint"`
	Version   uint8          `cbor:"2,keyasint"`
	Flags     uint8          `cbor:"3,keyasint"`
	Code      []byte         `cbor:"4,keyasint"`
	Constants []wireValue    `cbor:"5,keyasint"`
	Names     []string       `cbor:"6,keyasint"`
	Functions []wireFunction `cbor:"7,keyasint"`
}

// MarshalChunk serializes c to canonical CBOR bytes.
func MarshalChunk(c *bytecode.Chunk) ([]byte, error) {
	wc, err := toWireChunk(c)
	if err != nil {
		return nil, fmt.Errorf("serialize: marshal chunk: %w", err)
	}
	return cborEncMode.Marshal(wc)
}

// UnmarshalChunk deserializes a Chunk previously produced by MarshalChunk.
// alloc allocates a heap String for each string constant found in the
// constant pool (e.g. a Heap's AllocString) — reconstructing a heap Value
// requires a live Heap, which this package deliberately has no dependency
// on, so the caller supplies the allocator. The result is suitable for the
// VM only; every FunctionTemplate.Body is nil (see wireFunction).
func UnmarshalChunk(data []byte, alloc func(s string) value.Value) (*bytecode.Chunk, error) {
	var wc wireChunk
	if err := cbor.Unmarshal(data, &wc); err != nil {
		return nil, fmt.Errorf("serialize: unmarshal chunk: %w", err)
	}
	if wc.Magic != magic {
		return nil, fmt.Errorf("serialize: bad magic %q, want %q", wc.Magic, magic)
	}
	if wc.Version != currentVersion {
		return nil, fmt.Errorf("serialize: unsupported chunk version %d", wc.Version)
	}
	return fromWireChunk(&wc, alloc)
}

func toWireChunk(c *bytecode.Chunk) (*wireChunk, error) {
	wc := &wireChunk{
		Magic:   magic,
		Version: currentVersion,
		Code:    c.Code,
		Names:   c.Names,
	}
	for _, v := range c.Constants {
		wv, err := toWireValue(v)
		if err != nil {
			return nil, err
		}
		wc.Constants = append(wc.Constants, wv)
	}
	for _, ft := range c.Functions {
		inner, err := toWireChunk(ft.Chunk)
		if err != nil {
			return nil, err
		}
		wc.Functions = append(wc.Functions, wireFunction{
			Name:   ft.Name,
			Params: ft.Params,
			Chunk:  *inner,
		})
	}
	return wc, nil
}

func fromWireChunk(wc *wireChunk, alloc func(s string) value.Value) (*bytecode.Chunk, error) {
	c := bytecode.NewChunk()
	c.Code = wc.Code
	c.Names = wc.Names
	for _, wv := range wc.Constants {
		v, err := fromWireValue(wv, alloc)
		if err != nil {
			return nil, err
		}
		c.Constants = append(c.Constants, v)
	}
	for _, wf := range wc.Functions {
		innerChunk, err := fromWireChunk(&wf.Chunk, alloc)
		if err != nil {
			return nil, err
		}
		c.Functions = append(c.Functions, &bytecode.FunctionTemplate{
			Name:   wf.Name,
			Params: wf.Params,
			Chunk:  innerChunk,
		})
	}
	return c, nil
}

// toWireValue tags v by its runtime variant. Heap-pointer constants
// (string literals) are re-expressed as their decoded text — the reader
// must allocate each string constant again on the Heap it loads into,
// since a pointer value is only meaningful within the process that
// allocated it.
func toWireValue(v value.Value) (wireValue, error) {
	switch {
	case v.IsNil():
		return wireValue{Kind: kindNull}, nil
	case v.IsBool():
		return wireValue{Kind: kindBool, Bool: v.Bool()}, nil
	case v.IsInt32():
		return wireValue{Kind: kindInt32, I32: v.Int32()}, nil
	case v.IsFloat():
		return wireValue{Kind: kindFloat64, F64: v.Float64()}, nil
	case v.IsHeap():
		if s, ok := object.FromValue(v).(*object.String); ok {
			return wireValue{Kind: kindString, Str: s.String()}, nil
		}
		return wireValue{}, fmt.Errorf("serialize: constant pool may only hold heap Strings, got %T", object.FromValue(v))
	default:
		return wireValue{}, fmt.Errorf("serialize: unrepresentable constant value")
	}
}

// fromWireValue reconstructs a Value, re-interning string constants via
// alloc since a heap pointer is only meaningful within the Heap that
// produced it.
func fromWireValue(wv wireValue, alloc func(s string) value.Value) (value.Value, error) {
	switch wv.Kind {
	case kindNull:
		return value.Nil, nil
	case kindBool:
		return value.FromBool(wv.Bool), nil
	case kindInt32:
		return value.FromInt32(wv.I32), nil
	case kindFloat64:
		return value.FromFloat64(wv.F64), nil
	case kindString:
		return alloc(wv.Str), nil
	default:
		return value.Nil, fmt.Errorf("serialize: unknown constant kind %d", wv.Kind)
	}
}
