package value

import (
	"math"
	"testing"
	"unsafe"
)

func TestFloatRoundTrip(t *testing.T) {
	tests := []float64{
		0.0, -0.0, 1.0, -1.0, 3.14159265358979, -3.14159265358979,
		math.MaxFloat64, math.SmallestNonzeroFloat64,
		math.Inf(1), math.Inf(-1),
	}
	for _, f := range tests {
		v := FromFloat64(f)
		if !v.IsFloat() {
			t.Errorf("FromFloat64(%v).IsFloat() = false, want true", f)
			continue
		}
		if got := v.Float64(); got != f {
			t.Errorf("FromFloat64(%v).Float64() = %v, want %v", f, got, f)
		}
	}
}

func TestInt32RoundTrip(t *testing.T) {
	tests := []int32{0, 1, -1, math.MaxInt32, math.MinInt32, 42, -42}
	for _, i := range tests {
		v := FromInt32(i)
		if !v.IsInt32() {
			t.Errorf("FromInt32(%d).IsInt32() = false, want true", i)
			continue
		}
		if got := v.Int32(); got != i {
			t.Errorf("FromInt32(%d).Int32() = %d, want %d", i, got, i)
		}
	}
}

func TestBoolImmediates(t *testing.T) {
	if !True.IsBool() || !True.Bool() {
		t.Errorf("True is not a true bool")
	}
	if !False.IsBool() || False.Bool() {
		t.Errorf("False is not a false bool")
	}
	if FromBool(true) != True || FromBool(false) != False {
		t.Errorf("FromBool does not match predefined immediates")
	}
}

func TestNilAndUndefined(t *testing.T) {
	if !Nil.IsNil() || Nil.IsUndefined() || Nil.IsFloat() || Nil.IsInt32() || Nil.IsBool() || Nil.IsHeap() {
		t.Errorf("Nil classified incorrectly")
	}
	if !Undefined.IsUndefined() || Undefined.IsNil() {
		t.Errorf("Undefined classified incorrectly")
	}
}

func TestHeapPointerRoundTrip(t *testing.T) {
	x := 42
	p := unsafe.Pointer(&x)
	v := FromPtr(p)
	if !v.IsHeap() {
		t.Fatalf("FromPtr(...).IsHeap() = false, want true")
	}
	if v.Ptr() != p {
		t.Errorf("Ptr() = %v, want %v", v.Ptr(), p)
	}
}

func TestExactlyOneVariant(t *testing.T) {
	values := []Value{
		FromFloat64(1.5), FromInt32(7), True, False, Nil, Undefined,
		FromPtr(unsafe.Pointer(&struct{}{})),
	}
	for _, v := range values {
		count := 0
		for _, pred := range []bool{v.IsFloat(), v.IsInt32(), v.IsBool(), v.IsNil(), v.IsUndefined(), v.IsHeap()} {
			if pred {
				count++
			}
		}
		if count != 1 {
			t.Errorf("value %#x satisfies %d predicates, want exactly 1", uint64(v), count)
		}
	}
}

func TestTruthiness(t *testing.T) {
	falsy := []Value{False, Nil, FromInt32(0), FromFloat64(0.0), FromFloat64(-0.0)}
	for _, v := range falsy {
		if v.IsTruthy() {
			t.Errorf("value %#x should be falsy", uint64(v))
		}
	}
	truthy := []Value{True, FromInt32(1), FromInt32(-1), FromFloat64(1.0), FromFloat64(math.NaN())}
	for _, v := range truthy {
		if !v.IsTruthy() {
			t.Errorf("value %#x should be truthy", uint64(v))
		}
	}
}

func TestKindOf(t *testing.T) {
	cases := map[Value]Kind{
		FromFloat64(1.0):                       KindFloat,
		FromInt32(1):                            KindInt32,
		True:                                    KindBool,
		Nil:                                     KindNil,
		Undefined:                               KindUndefined,
		FromPtr(unsafe.Pointer(&struct{}{})): KindHeap,
	}
	for v, want := range cases {
		if got := KindOf(v); got != want {
			t.Errorf("KindOf(%#x) = %v, want %v", uint64(v), got, want)
		}
	}
}
