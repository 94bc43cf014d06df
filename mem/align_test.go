package mem_test

import (
	"testing"

	"github.com/momentics/aioloop/errs"
	"github.com/momentics/aioloop/mem"
)

func TestAlignUpPowerOfTwo(t *testing.T) {
	for _, align := range []uintptr{1, 2, 4, 8, 16, 64, 4096} {
		for _, p := range []uintptr{0, 1, 3, 7, 63, 4095, 4097} {
			got, k := mem.AlignUp(p, align)
			if k != errs.OK {
				t.Fatalf("AlignUp(%d,%d) failed: %v", p, align, k)
			}
			if got < p {
				t.Fatalf("AlignUp(%d,%d)=%d is less than input", p, align, got)
			}
			if got%align != 0 {
				t.Fatalf("AlignUp(%d,%d)=%d not aligned", p, align, got)
			}
		}
	}
}

func TestAlignUpRejectsNonPowerOfTwo(t *testing.T) {
	for _, align := range []uintptr{0, 3, 5, 6, 7, 100} {
		if _, k := mem.AlignUp(8, align); k != errs.EDOM {
			t.Fatalf("align %d: got %v, want EDOM", align, k)
		}
	}
}

func TestAlignUpOverflow(t *testing.T) {
	if _, k := mem.AlignUp(^uintptr(0), 16); k != errs.ERANGE {
		t.Fatalf("got %v, want ERANGE", k)
	}
}
