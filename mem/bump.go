package mem

import (
	"unsafe"

	"github.com/momentics/aioloop/errs"
)

// Bump is a monotonic allocator over a caller-provided buffer: base and
// end are fixed at Init time, current advances on every Alloc and is
// always kept within [base, end]. There is no per-allocation metadata and
// no free — callers drop the whole buffer at once. This trades generality
// for the trivial amortized cost spec.md §4.2 calls for: short-lived
// scratch regions inside a single loop iteration.
type Bump struct {
	buf     []byte
	base    uintptr
	current uintptr
	end     uintptr
}

// Init aligns base up to pointer width and records end = base+len(buffer)
// (overflow-checked), per spec.md §4.2.
func Init(buffer []byte) (*Bump, errs.Kind) {
	if len(buffer) == 0 {
		return nil, errs.EINVAL
	}
	base := uintptr(unsafe.Pointer(&buffer[0]))
	alignedBase, k := AlignUp(base, PointerWidth)
	if k != errs.OK {
		return nil, k
	}
	end, ok := AddU(base, uintptr(len(buffer)))
	if !ok {
		return nil, errs.ERANGE
	}
	if alignedBase > end {
		return nil, errs.ERANGE
	}
	return &Bump{
		buf:     buffer,
		base:    base,
		current: alignedBase,
		end:     end,
	}, errs.OK
}

// Alloc advances current by n bytes, then aligns up to pointer width.
// Returns the slice view of the pre-advance region, or nil if it would
// exceed end.
func (b *Bump) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	start, ok := AddU(b.current, uintptr(n))
	if !ok {
		return nil
	}
	aligned, k := AlignUp(start, PointerWidth)
	if k != errs.OK {
		return nil
	}
	if aligned > b.end {
		return nil
	}
	offset := int(b.current - b.base)
	result := b.buf[offset : offset+n : offset+n]
	b.current = aligned
	return result
}

// Remaining reports how many bytes are available before end, ignoring
// any further alignment padding a subsequent Alloc would need.
func (b *Bump) Remaining() int {
	return int(b.end - b.current)
}

// Reset rewinds current back to the aligned base, making the whole
// buffer available again. Safe only once every prior allocation's
// lifetime has ended — the Bump itself enforces no such invariant, by
// design (spec.md §4.2: "no free").
func (b *Bump) Reset() {
	aligned, _ := AlignUp(b.base, PointerWidth)
	b.current = aligned
}
