package object

import (
	"testing"

	"github.com/pebbl-lang/pebbl/internal/errs"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

func TestToValueRoundTrip(t *testing.T) {
	s := NewString("hello")
	v := ToValue(s)
	if !v.IsHeap() {
		t.Fatalf("ToValue did not produce a heap Value")
	}
	got, ok := FromValue(v).(*String)
	if !ok {
		t.Fatalf("FromValue returned %T, want *String", FromValue(v))
	}
	if got.String() != "hello" {
		t.Errorf("got %q, want %q", got.String(), "hello")
	}
}

func TestHeaderOfMatchesFromHeader(t *testing.T) {
	a := NewArray([]value.Value{value.FromInt32(1), value.FromInt32(2)})
	v := ToValue(a)
	hdr := HeaderOf(v)
	if hdr.Kind != KindArray {
		t.Errorf("Kind = %v, want KindArray", hdr.Kind)
	}
	back := FromHeader(hdr)
	arr, ok := back.(*Array)
	if !ok {
		t.Fatalf("FromHeader returned %T, want *Array", back)
	}
	if arr.Len() != 2 {
		t.Errorf("Len() = %d, want 2", arr.Len())
	}
}

func TestArrayPushPop(t *testing.T) {
	a := NewArray(nil)
	a.Push(value.FromInt32(7))
	a.Push(value.FromInt32(8))
	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}
	v, ok := a.Pop()
	if !ok {
		t.Fatalf("Pop() ok = false, want true")
	}
	if v.Int32() != 8 {
		t.Errorf("Pop() = %d, want 8", v.Int32())
	}
	if a.Len() != 1 {
		t.Errorf("Len() = %d, want 1", a.Len())
	}
}

func TestArrayPopEmpty(t *testing.T) {
	a := NewArray(nil)
	if _, ok := a.Pop(); ok {
		t.Errorf("Pop() on empty array returned ok = true")
	}
}

func TestEnvironmentDefineGetSet(t *testing.T) {
	globals := NewEnvironment(nil)
	globals.Define("g", value.FromInt32(1), true)

	local := NewEnvironment(globals)
	local.Define("x", value.FromInt32(2), false)

	if v, err := local.Get("g"); err != nil || v.Int32() != 1 {
		t.Errorf("Get(g) = %v, %v; want 1, nil", v, err)
	}
	if v, err := local.Get("x"); err != nil || v.Int32() != 2 {
		t.Errorf("Get(x) = %v, %v; want 2, nil", v, err)
	}

	if err := local.Set("g", value.FromInt32(99)); err != nil {
		t.Errorf("Set(g) failed: %v", err)
	}
	if v, _ := globals.Get("g"); v.Int32() != 99 {
		t.Errorf("mutation through child scope did not reach parent binding, got %d", v.Int32())
	}
}

func TestEnvironmentGetUndefined(t *testing.T) {
	e := NewEnvironment(nil)
	_, err := e.Get("missing")
	assertKind(t, err, errs.UndefinedName)
}

func TestEnvironmentSetImmutable(t *testing.T) {
	e := NewEnvironment(nil)
	e.Define("x", value.FromInt32(1), false)
	err := e.Set("x", value.FromInt32(2))
	assertKind(t, err, errs.ImmutableAssignment)
}

func TestEnvironmentSetUndefinedDoesNotCreate(t *testing.T) {
	e := NewEnvironment(nil)
	err := e.Set("nope", value.FromInt32(1))
	assertKind(t, err, errs.UndefinedName)
	if e.Exists("nope") {
		t.Errorf("Set on an undefined name created a binding")
	}
}

func TestStringifyAndTypeName(t *testing.T) {
	cases := []struct {
		v        value.Value
		str      string
		typeName string
	}{
		{value.Nil, "nil", "null"},
		{value.FromBool(true), "true", "boolean"},
		{value.FromInt32(42), "42", "integer"},
		{value.FromFloat64(1.5), "1.5", "float"},
	}
	for _, tc := range cases {
		if got := Stringify(tc.v); got != tc.str {
			t.Errorf("Stringify(%v) = %q, want %q", tc.v, got, tc.str)
		}
		if got := TypeName(tc.v); got != tc.typeName {
			t.Errorf("TypeName(%v) = %q, want %q", tc.v, got, tc.typeName)
		}
	}
}

func TestEqualIdentityForHeapObjects(t *testing.T) {
	a := ToValue(NewString("same"))
	b := ToValue(NewString("same"))
	if Equal(a, b) {
		t.Errorf("Equal reported two distinct String allocations as equal")
	}
	if !Equal(a, a) {
		t.Errorf("Equal reported a value unequal to itself")
	}
}

func assertKind(t *testing.T, err error, want errs.Kind) {
	t.Helper()
	rerr, ok := err.(*errs.RuntimeError)
	if !ok {
		t.Fatalf("error %v is not *errs.RuntimeError", err)
	}
	if rerr.Kind != want {
		t.Errorf("Kind = %v, want %v", rerr.Kind, want)
	}
}
