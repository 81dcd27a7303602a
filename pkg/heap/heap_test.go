package heap

import (
	"testing"

	"github.com/pebbl-lang/pebbl/pkg/object"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

func TestAllocateLinksIntoList(t *testing.T) {
	h := New()
	v := h.AllocString("hi")
	if !v.IsHeap() {
		t.Fatalf("AllocString did not return a heap value")
	}
	if h.LiveCount() != 1 {
		t.Errorf("LiveCount() = %d, want 1", h.LiveCount())
	}
}

func TestCollectSweepsUnreachable(t *testing.T) {
	h := New()
	// Allocate two strings but only root one of them.
	kept := h.AllocString("kept")
	_ = h.AllocString("garbage")

	h.AddRootTracer(func(mark func(value.Value)) {
		mark(kept)
	})

	h.Collect()

	if h.LastSurvivors != 1 {
		t.Errorf("LastSurvivors = %d, want 1", h.LastSurvivors)
	}
	if h.LiveCount() != 1 {
		t.Errorf("LiveCount() = %d, want 1", h.LiveCount())
	}
}

func TestCollectTracesContainers(t *testing.T) {
	h := New()
	inner := h.AllocString("inner")
	outer := h.AllocArray([]value.Value{inner})

	h.AddRootTracer(func(mark func(value.Value)) {
		mark(outer)
	})

	h.Collect()

	if h.LastSurvivors != 2 {
		t.Errorf("LastSurvivors = %d, want 2 (array + contained string)", h.LastSurvivors)
	}
}

func TestMarkedClearedAfterCollect(t *testing.T) {
	h := New()
	v := h.AllocString("x")
	h.AddRootTracer(func(mark func(value.Value)) { mark(v) })
	h.Collect()

	hdr := object.HeaderOf(v)
	if hdr.Marked {
		t.Errorf("object remains marked after collect, want cleared")
	}
}

func TestRepeatedCollectWithNoAllocationsIsNoOp(t *testing.T) {
	h := New()
	v := h.AllocString("x")
	h.AddRootTracer(func(mark func(value.Value)) { mark(v) })

	h.Collect()
	first := h.LastSurvivors
	h.Collect()
	second := h.LastSurvivors

	if first != second {
		t.Errorf("survivor count changed across no-op collect: %d vs %d", first, second)
	}
}

func TestThresholdPolicy(t *testing.T) {
	h := New()
	if h.Threshold() != initialThreshold {
		t.Fatalf("initial threshold = %d, want %d", h.Threshold(), initialThreshold)
	}

	var roots []value.Value
	h.AddRootTracer(func(mark func(value.Value)) {
		for _, r := range roots {
			mark(r)
		}
	})

	for i := 0; i < 20; i++ {
		roots = append(roots, h.AllocString("x"))
	}

	want := h.LastSurvivors * 2
	if want < initialThreshold {
		want = initialThreshold
	}
	if h.Threshold() != want {
		t.Errorf("Threshold() = %d, want %d", h.Threshold(), want)
	}
}

func TestAllocationNeverReturnsNil(t *testing.T) {
	h := New()
	v := h.AllocString("")
	if v.IsNil() {
		t.Errorf("AllocString returned Nil")
	}
}
