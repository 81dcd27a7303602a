package builtins

import (
	"testing"

	"github.com/pebbl-lang/pebbl/internal/errs"
	"github.com/pebbl-lang/pebbl/pkg/heap"
	"github.com/pebbl-lang/pebbl/pkg/object"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

func newTestHeap() *heap.Heap {
	return heap.New()
}

func TestLengthOnStringArrayDict(t *testing.T) {
	h := newTestHeap()

	s := h.AllocString("hello")
	if v, err := biLength([]value.Value{s}, h); err != nil || v.Int32() != 5 {
		t.Errorf("length(string) = %v, %v; want 5, nil", v, err)
	}

	arr := h.AllocArray([]value.Value{value.FromInt32(1), value.FromInt32(2), value.FromInt32(3)})
	if v, err := biLength([]value.Value{arr}, h); err != nil || v.Int32() != 3 {
		t.Errorf("length(array) = %v, %v; want 3, nil", v, err)
	}

	dict := h.AllocDict()
	object.FromValue(dict).(*object.Dict).Entries["k"] = value.FromInt32(1)
	if v, err := biLength([]value.Value{dict}, h); err != nil || v.Int32() != 1 {
		t.Errorf("length(dict) = %v, %v; want 1, nil", v, err)
	}
}

func TestLengthOnNonContainerIsTypeError(t *testing.T) {
	_, err := biLength([]value.Value{value.FromInt32(1)}, newTestHeap())
	assertKind(t, err, errs.TypeError)
}

func TestTypeReturnsExpectedNames(t *testing.T) {
	h := newTestHeap()
	cases := []struct {
		v    value.Value
		want string
	}{
		{value.Nil, "null"},
		{value.FromBool(true), "boolean"},
		{value.FromInt32(1), "integer"},
		{value.FromFloat64(1.5), "float"},
		{h.AllocString("s"), "string"},
	}
	for _, tc := range cases {
		v, err := biType([]value.Value{tc.v}, h)
		if err != nil {
			t.Fatalf("type(%v) error: %v", tc.v, err)
		}
		got := object.FromValue(v).(*object.String).String()
		if got != tc.want {
			t.Errorf("type(%v) = %q, want %q", tc.v, got, tc.want)
		}
	}
}

func TestPushAndPop(t *testing.T) {
	h := newTestHeap()
	arr := h.AllocArray(nil)

	if _, err := biPush([]value.Value{arr, value.FromInt32(10)}, h); err != nil {
		t.Fatalf("push error: %v", err)
	}
	if v, err := biLength([]value.Value{arr}, h); err != nil || v.Int32() != 1 {
		t.Errorf("length after push = %v, %v; want 1, nil", v, err)
	}

	popped, err := biPop([]value.Value{arr}, h)
	if err != nil || popped.Int32() != 10 {
		t.Errorf("pop = %v, %v; want 10, nil", popped, err)
	}
}

func TestPopEmptyArrayReturnsNilNoError(t *testing.T) {
	h := newTestHeap()
	arr := h.AllocArray(nil)
	v, err := biPop([]value.Value{arr}, h)
	if err != nil {
		t.Fatalf("pop on empty array returned error: %v", err)
	}
	if !v.IsNil() {
		t.Errorf("pop on empty array = %v, want nil", v)
	}
}

func TestPushOnNonArrayIsTypeError(t *testing.T) {
	_, err := biPush([]value.Value{value.FromInt32(1), value.FromInt32(2)}, newTestHeap())
	assertKind(t, err, errs.TypeError)
}

func TestKeysReturnsDictKeysAsStrings(t *testing.T) {
	h := newTestHeap()
	dict := h.AllocDict()
	object.FromValue(dict).(*object.Dict).Entries["a"] = value.FromInt32(1)
	object.FromValue(dict).(*object.Dict).Entries["b"] = value.FromInt32(2)

	v, err := biKeys([]value.Value{dict}, h)
	if err != nil {
		t.Fatalf("keys error: %v", err)
	}
	arr := object.FromValue(v).(*object.Array)
	if arr.Len() != 2 {
		t.Errorf("keys length = %d, want 2", arr.Len())
	}
	seen := map[string]bool{}
	for _, e := range arr.Elements {
		seen[object.FromValue(e).(*object.String).String()] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("keys = %v, want {a, b}", seen)
	}
}

func TestRangeOneAndTwoArgForms(t *testing.T) {
	h := newTestHeap()

	v, err := biRange([]value.Value{value.FromInt32(3)}, h)
	if err != nil {
		t.Fatalf("range(3) error: %v", err)
	}
	arr := object.FromValue(v).(*object.Array)
	wantOneArg := []int32{0, 1, 2}
	assertInt32Elements(t, arr, wantOneArg)

	v, err = biRange([]value.Value{value.FromInt32(2), value.FromInt32(5)}, h)
	if err != nil {
		t.Fatalf("range(2, 5) error: %v", err)
	}
	arr = object.FromValue(v).(*object.Array)
	assertInt32Elements(t, arr, []int32{2, 3, 4})
}

func TestRangeWrongArityIsArityMismatch(t *testing.T) {
	_, err := biRange([]value.Value{value.FromInt32(1), value.FromInt32(2), value.FromInt32(3)}, newTestHeap())
	assertKind(t, err, errs.ArityMismatch)
}

func assertInt32Elements(t *testing.T, arr *object.Array, want []int32) {
	t.Helper()
	if arr.Len() != len(want) {
		t.Fatalf("got %d elements, want %d", arr.Len(), len(want))
	}
	for i, w := range want {
		if arr.Elements[i].Int32() != w {
			t.Errorf("element %d = %d, want %d", i, arr.Elements[i].Int32(), w)
		}
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
