package mem

import "github.com/momentics/aioloop/errs"

// Page is one page-aligned, page-sized allocation handed to the slab's
// bank allocator. Grounded on the teacher's per-platform buffer pool
// split (pool/bufferpool_linux.go / pool/bufferpool_windows.go), but
// simplified: the core only ever needs whole pages, not NUMA-tagged
// variable-size buffers, so a plain byte slice suffices — Go's garbage
// collector already manages page-backed slices safely, so unlike the
// teacher's C-flavored original there is no raw mmap/VirtualAlloc here;
// that indirection would buy nothing a slice doesn't already give us.
type Page []byte

// AllocPage returns a new zeroed page-aligned-size region. size is
// rounded up to a multiple of PageSize().
func AllocPage(size int) (Page, errs.Kind) {
	if size <= 0 {
		return nil, errs.EINVAL
	}
	ps := PageSize()
	rounded, k := AlignUp(uintptr(size), uintptr(ps))
	if k != errs.OK {
		return nil, k
	}
	return make(Page, rounded), errs.OK
}

// FreePage releases a page previously returned by AllocPage. Included for
// symmetry with spec.md §4.1's "page free of a previously allocated
// region plus its size"; under Go's GC this is a no-op beyond letting the
// slice go out of scope, which the caller does simply by dropping p.
func FreePage(p Page) {
	_ = p
}
