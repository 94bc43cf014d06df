package mem

import "github.com/momentics/aioloop/errs"

// TypedSlab applies the same bank/free-list/refcount algorithm as Slab
// (spec.md §4.3) to Go values instead of raw bytes. Event control blocks
// hold a callback closure and other GC-tracked fields; manually managing
// their storage as a byte arena (the literal reading of spec.md's C-like
// "slot header in raw memory" design) would require unsafe tricks that
// fight the Go garbage collector. TypedSlab keeps the exact same
// algorithm — fixed-slot banks, a free list threaded by index, a
// refcount, and a Term teardown hook per live slot — generalized over T
// via Go generics, which spec.md §9's own design notes invite ("model the
// slot as a tagged variant ... in a modern systems language").
type TypedSlab[T any] struct {
	bankSlots int
	banks     [][]typedSlot[T]
	freeHead  slotRef

	refcount int
	owners   int
	torndown bool
}

type typedSlot[T any] struct {
	allocated bool
	next      slotRef
	value     T
}

// NewTypedSlab creates a slab whose slots each hold one T, banked
// bankSlots at a time.
func NewTypedSlab[T any](bankSlots int) *TypedSlab[T] {
	if bankSlots <= 0 {
		bankSlots = defaultBankSlots
	}
	return &TypedSlab[T]{
		bankSlots: bankSlots,
		freeHead:  nilRef,
		refcount:  1,
		owners:    1,
	}
}

func (s *TypedSlab[T]) growBank() {
	bankIdx := len(s.banks)
	slots := make([]typedSlot[T], s.bankSlots)
	for i := s.bankSlots - 1; i >= 0; i-- {
		ref := slotRef{bank: bankIdx, slot: i}
		if i == s.bankSlots-1 {
			slots[i].next = s.freeHead
		} else {
			slots[i].next = slotRef{bank: bankIdx, slot: i + 1}
		}
		s.freeHead = ref
	}
	s.banks = append(s.banks, slots)
}

// Alloc pops a free slot, tags it allocated, increments refcount, and
// returns a pointer to its value plus the ref used to Free it later.
func (s *TypedSlab[T]) Alloc() (*T, slotRef, errs.Kind) {
	if s.torndown {
		return nil, nilRef, errs.ESTATE
	}
	if s.freeHead.isNil() {
		s.growBank()
	}
	ref := s.freeHead
	slot := &s.banks[ref.bank][ref.slot]
	s.freeHead = slot.next
	slot.allocated = true
	slot.next = nilRef
	s.refcount++
	return &slot.value, ref, errs.OK
}

// Free returns the slot referenced by ref to the free list.
func (s *TypedSlab[T]) Free(ref slotRef) errs.Kind {
	if ref.bank < 0 || ref.bank >= len(s.banks) || ref.slot < 0 || ref.slot >= s.bankSlots {
		return errs.EINVAL
	}
	slot := &s.banks[ref.bank][ref.slot]
	if !slot.allocated {
		return errs.ESTATE
	}
	slot.allocated = false
	var zero T
	slot.value = zero
	slot.next = s.freeHead
	s.freeHead = ref
	s.refcount--
	return errs.OK
}

// RefCount mirrors Slab.RefCount.
func (s *TypedSlab[T]) RefCount() int { return s.refcount }

// Term mirrors Slab.Term: on the final release it invokes cb for every
// value still tagged allocated, then drops all banks.
func (s *TypedSlab[T]) Term(cb func(*T)) {
	if s.torndown {
		return
	}
	s.owners--
	if s.owners > 0 {
		return
	}
	if cb != nil {
		for bi := range s.banks {
			for si := range s.banks[bi] {
				if s.banks[bi][si].allocated {
					cb(&s.banks[bi][si].value)
				}
			}
		}
	}
	s.banks = nil
	s.freeHead = nilRef
	s.torndown = true
}

// SlotRef re-exports slotRef's public surface for callers outside the
// package that need to hold onto an allocation's handle (e.g. the Loop
// holding a task's event ref).
type SlotRef = slotRef
