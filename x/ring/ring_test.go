package ring

import (
	"reflect"
	"testing"
)

func TestFillStopsAfterCapacity(t *testing.T) {
	r := New(4, Fill)
	for i := int32(1); i <= 6; i++ {
		ok := r.Push(i * 10)
		if want := i <= 4; ok != want {
			t.Fatalf("push %d: ok=%v want %v", i, ok, want)
		}
	}
	if got := r.Samples(nil); !reflect.DeepEqual(got, []int32{10, 20, 30, 40}) {
		t.Fatalf("samples=%v", got)
	}
	if !r.Full() || r.Len() != 4 {
		t.Fatalf("full=%v len=%d", r.Full(), r.Len())
	}
}

func TestWrapTrailingSumAcrossWrap(t *testing.T) {
	r := New(4, Wrap)
	if r.TrailingSum(4) != 0 {
		t.Fatal("fresh ring must sum to zero")
	}
	for _, v := range []int32{1, 2, 3, 4, 5, 6} {
		r.Push(v)
	}
	// Holds 5 6 3 4 in slot order; last three pushed are 4 5 6.
	if got := r.TrailingSum(3); got != 15 {
		t.Fatalf("trailing sum=%d want 15", got)
	}
	if got := r.TrailingSum(10); got != 18 {
		t.Fatalf("clamped trailing sum=%d want 18", got)
	}
	if got := r.Samples(nil); !reflect.DeepEqual(got, []int32{3, 4, 5, 6}) {
		t.Fatalf("oldest-first samples=%v", got)
	}
	if r.Next() != 2 {
		t.Fatalf("next=%d want 2", r.Next())
	}
}

func TestReset(t *testing.T) {
	r := New(2, Wrap)
	r.Push(7)
	r.Push(9)
	r.Reset()
	if r.Len() != 0 || r.TrailingSum(2) != 0 {
		t.Fatalf("len=%d sum=%d after reset", r.Len(), r.TrailingSum(2))
	}
}

func TestNewRejectsNonPowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New(12, Wrap)
}
