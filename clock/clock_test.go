package clock_test

import (
	"math"
	"testing"

	"github.com/momentics/aioloop/clock"
	"github.com/momentics/aioloop/errs"
)

func TestAddSubRoundTrip(t *testing.T) {
	t0 := clock.Now()
	t1, k := clock.Add(t0, 10*clock.Millisecond)
	if k != errs.OK {
		t.Fatalf("Add failed: %v", k)
	}
	d, k := clock.Sub(t1, t0)
	if k != errs.OK {
		t.Fatalf("Sub failed: %v", k)
	}
	if d != 10*clock.Millisecond {
		t.Fatalf("got %v, want 10ms", d)
	}
}

func TestIsBeforeAfter(t *testing.T) {
	a := clock.Time(100)
	b := clock.Time(200)
	if !clock.IsBefore(a, b) || clock.IsBefore(b, a) {
		t.Fatal("IsBefore wrong")
	}
	if !clock.IsAfter(b, a) || clock.IsAfter(a, b) {
		t.Fatal("IsAfter wrong")
	}
}

func TestAddOverflow(t *testing.T) {
	_, k := clock.Add(clock.Time(math.MaxInt64), 1)
	if k != errs.ERANGE {
		t.Fatalf("expected ERANGE, got %v", k)
	}
}
