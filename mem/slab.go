package mem

import (
	"unsafe"

	"github.com/momentics/aioloop/errs"
)

// slotRef addresses one slot as (bank index, slot index within bank).
// bank == -1 denotes "no slot" (the empty free-list terminator), taking
// the place the source's raw null pointer would occupy. Design note §9
// of the spec calls for exactly this: a head-index plus per-slot
// next-index instead of raw pointer arithmetic.
type slotRef struct {
	bank int
	slot int
}

var nilRef = slotRef{bank: -1}

func (r slotRef) isNil() bool { return r.bank < 0 }

type slotHeader struct {
	allocated bool
	next      slotRef
}

type bank struct {
	page    Page
	bodies  [][]byte
	headers []slotHeader
}

// defaultBankSlots mirrors the teacher's slab_pool bank sizing (a small
// multiple of slot size); spec.md §4.3 allows 4 or 32 depending on
// variant — 32 amortizes the per-bank page allocation cost better for
// the loop's typical per-iteration event volume.
const defaultBankSlots = 32

// Slab is a fixed-slot, page-banked free-list pool with reference-counted
// teardown (spec.md §4.3). A Slab is created by exactly one owner (the
// Loop, per spec.md §3); its RefCount tracks the creator's hold plus
// every currently checked-out slot, purely for the monotonicity property
// spec.md §8 requires. Deferred teardown itself is governed independently
// by the single Term() call the sole owner makes, through a separate
// owners counter, so live slots never delay or trigger teardown.
type Slab struct {
	bodySize  int // caller-requested slot size, pointer-aligned
	bankSlots int

	banks    []*bank
	freeHead slotRef
	byAddr   map[uintptr]slotRef

	refcount int // 1 (creator) + currently allocated slot count
	owners   int // starts at 1; Term() decrements, final release tears down
	torndown bool
}

// NewSlab pointer-aligns slotSize to get the body size. The slot header
// is kept out of band (bank.headers), so bodies are not grown by a
// header word.
func NewSlab(slotSize int) (*Slab, errs.Kind) {
	if slotSize <= 0 {
		return nil, errs.EINVAL
	}
	aligned, k := AlignUp(uintptr(slotSize), PointerWidth)
	if k != errs.OK {
		return nil, k
	}
	return &Slab{
		bodySize:  int(aligned),
		bankSlots: defaultBankSlots,
		freeHead:  nilRef,
		byAddr:    make(map[uintptr]slotRef),
		refcount:  1,
		owners:    1,
	}, errs.OK
}

// growBank allocates one page-aligned bank, threads all its slots into
// the free list, and links the bank onto the bank list.
func (s *Slab) growBank() errs.Kind {
	bankBytes := s.bodySize * s.bankSlots
	pg, k := AllocPage(bankBytes)
	if k != errs.OK {
		return k
	}
	b := &bank{
		page:    pg,
		bodies:  make([][]byte, s.bankSlots),
		headers: make([]slotHeader, s.bankSlots),
	}
	bankIdx := len(s.banks)
	for i := 0; i < s.bankSlots; i++ {
		b.bodies[i] = pg[i*s.bodySize : (i+1)*s.bodySize : (i+1)*s.bodySize]
		s.byAddr[uintptr(unsafe.Pointer(&b.bodies[i][0]))] = slotRef{bank: bankIdx, slot: i}
	}
	// Thread slots into the free list, last slot first, so the first
	// slot in the bank is popped first (FIFO over the bank's own order).
	for i := s.bankSlots - 1; i >= 0; i-- {
		ref := slotRef{bank: bankIdx, slot: i}
		if i == s.bankSlots-1 {
			b.headers[i].next = s.freeHead
		} else {
			b.headers[i].next = slotRef{bank: bankIdx, slot: i + 1}
		}
		s.freeHead = ref
	}
	s.banks = append(s.banks, b)
	return errs.OK
}

// Alloc pops the head of the free list (growing a bank first if empty),
// tags the slot allocated, increments refcount, and returns its body.
func (s *Slab) Alloc() ([]byte, errs.Kind) {
	if s.torndown {
		return nil, errs.ESTATE
	}
	if s.freeHead.isNil() {
		if k := s.growBank(); k != errs.OK {
			return nil, k
		}
	}
	ref := s.freeHead
	hdr := &s.banks[ref.bank].headers[ref.slot]
	s.freeHead = hdr.next
	hdr.allocated = true
	hdr.next = nilRef
	s.refcount++
	return s.banks[ref.bank].bodies[ref.slot], errs.OK
}

// findRef locates the slot owning body by the address of its first byte —
// the Go-idiomatic stand-in for the source's "recover the slot header
// from the pointer" trick, since Go has no legal way to walk backward
// from a slice to an embedded header. Bank bodies are sub-slices of a
// page that is never reallocated, so the address is stable for the
// slab's lifetime.
func (s *Slab) findRef(body []byte) (slotRef, bool) {
	if len(body) == 0 {
		return nilRef, false
	}
	ref, ok := s.byAddr[uintptr(unsafe.Pointer(&body[0]))]
	return ref, ok
}

// Free recovers the slot header, asserts it was tagged allocated, pushes
// it onto the free list, and decrements refcount.
func (s *Slab) Free(body []byte) errs.Kind {
	ref, ok := s.findRef(body)
	if !ok {
		return errs.EINVAL
	}
	hdr := &s.banks[ref.bank].headers[ref.slot]
	if !hdr.allocated {
		return errs.ESTATE
	}
	hdr.allocated = false
	hdr.next = s.freeHead
	s.freeHead = ref
	s.refcount--
	return errs.OK
}

// RefCount reports 1 (creator) plus the number of currently allocated
// (not yet freed) slots. Exposed for spec.md §8 property 2.
func (s *Slab) RefCount() int { return s.refcount }

// Stats summarizes the slab's current occupancy.
type Stats struct {
	Allocated int
	Free      int
	Banks     int
}

func (s *Slab) StatsSnapshot() Stats {
	st := Stats{Banks: len(s.banks)}
	for _, b := range s.banks {
		for _, h := range b.headers {
			if h.allocated {
				st.Allocated++
			} else {
				st.Free++
			}
		}
	}
	return st
}

// Term decrements the owner count. Once it reaches zero — always true in
// the single-owner (one Loop) model this core uses — the slab performs
// its final release: if cb is non-nil, every slot still tagged allocated
// is walked and cb is invoked with its body (the hook the Loop uses to
// fire canceled-error on every in-flight event during teardown), then
// every bank is freed. Calling Term again after teardown is a no-op.
func (s *Slab) Term(cb func(body []byte)) {
	if s.torndown {
		return
	}
	s.owners--
	if s.owners > 0 {
		return
	}
	if cb != nil {
		for _, b := range s.banks {
			for i, h := range b.headers {
				if h.allocated {
					cb(b.bodies[i])
				}
			}
		}
	}
	for _, b := range s.banks {
		FreePage(b.page)
	}
	s.banks = nil
	s.freeHead = nilRef
	s.torndown = true
}
