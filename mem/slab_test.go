package mem_test

import (
	"testing"

	"github.com/momentics/aioloop/errs"
	"github.com/momentics/aioloop/mem"
)

func TestSlabAllocFreeRefcountMonotonic(t *testing.T) {
	for _, slotSize := range []int{1, 7, 32, 200} {
		for _, n := range []int{0, 1, 5, 64, 200} {
			s, k := mem.NewSlab(slotSize)
			if k != errs.OK {
				t.Fatalf("NewSlab(%d) failed: %v", slotSize, k)
			}
			bodies := make([][]byte, 0, n)
			for i := 0; i < n; i++ {
				b, k := s.Alloc()
				if k != errs.OK {
					t.Fatalf("Alloc #%d failed: %v", i, k)
				}
				bodies = append(bodies, b)
			}
			if got := s.RefCount(); got != 1+n {
				t.Fatalf("slot=%d n=%d: refcount after allocs = %d, want %d", slotSize, n, got, 1+n)
			}
			for _, b := range bodies {
				if k := s.Free(b); k != errs.OK {
					t.Fatalf("Free failed: %v", k)
				}
			}
			if got := s.RefCount(); got != 1 {
				t.Fatalf("slot=%d n=%d: refcount after n allocs + n frees = %d, want 1", slotSize, n, got)
			}
			var freedBanks bool
			s.Term(func(body []byte) { freedBanks = true })
			if freedBanks {
				t.Fatal("term callback should not fire when nothing is live")
			}
			if st := s.StatsSnapshot(); st.Banks != 0 {
				t.Fatalf("expected banks freed after term, got %d", st.Banks)
			}
		}
	}
}

func TestSlabDoubleFreeRejected(t *testing.T) {
	s, _ := mem.NewSlab(16)
	b, _ := s.Alloc()
	if k := s.Free(b); k != errs.OK {
		t.Fatalf("first free failed: %v", k)
	}
	if k := s.Free(b); k != errs.ESTATE {
		t.Fatalf("second free: got %v, want ESTATE", k)
	}
}

func TestSlabTermWithLiveSlotInvokesCallbackThenFreesBanks(t *testing.T) {
	// Scenario S6.
	s, _ := mem.NewSlab(32)
	live, k := s.Alloc()
	if k != errs.OK {
		t.Fatalf("Alloc failed: %v", k)
	}
	var called int
	var gotBody []byte
	s.Term(func(body []byte) {
		called++
		gotBody = body
	})
	if called != 1 {
		t.Fatalf("callback invoked %d times, want 1", called)
	}
	if &gotBody[0] != &live[0] {
		t.Fatal("callback did not receive the live slot's body")
	}
	if st := s.StatsSnapshot(); st.Banks != 0 {
		t.Fatalf("expected banks freed, got %d banks", st.Banks)
	}
}

func TestSlabBanksGrowOnDemand(t *testing.T) {
	s, _ := mem.NewSlab(8)
	const want = 100
	bodies := make([][]byte, 0, want)
	for i := 0; i < want; i++ {
		b, k := s.Alloc()
		if k != errs.OK {
			t.Fatalf("alloc %d failed: %v", i, k)
		}
		bodies = append(bodies, b)
	}
	st := s.StatsSnapshot()
	if st.Allocated != want {
		t.Fatalf("allocated=%d want %d", st.Allocated, want)
	}
	if st.Banks < 2 {
		t.Fatalf("expected multiple banks for %d slots, got %d", want, st.Banks)
	}
	for _, b := range bodies {
		s.Free(b)
	}
}
