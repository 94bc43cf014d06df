// Package mem implements the page/overflow/alignment primitives (spec
// §4.1), the bump arena (§4.2), and the slab allocator (§4.3) that the
// loop uses to vend per-I/O control blocks cheaply. This package owns no
// general-purpose allocator — only page, bump, and slab primitives, per
// spec.md's non-goals.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package mem

import (
	"math/bits"

	"github.com/momentics/aioloop/errs"
)

// isPowerOfTwo reports whether n is a power of two (n > 0).
func isPowerOfTwo(n uintptr) bool {
	return n > 0 && n&(n-1) == 0
}

// AlignUp rounds size up to the next multiple of align, failing with EDOM
// when align is not a power of two and ERANGE on overflow.
func AlignUp(size uintptr, align uintptr) (uintptr, errs.Kind) {
	if !isPowerOfTwo(align) {
		return 0, errs.EDOM
	}
	mask := align - 1
	if size > ^uintptr(0)-mask {
		return 0, errs.ERANGE
	}
	return (size + mask) &^ mask, errs.OK
}

// AddU checks unsigned addition for overflow.
func AddU(a, b uintptr) (uintptr, bool) {
	sum := a + b
	return sum, sum >= a
}

// SubU checks unsigned subtraction for underflow.
func SubU(a, b uintptr) (uintptr, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

// MulU checks unsigned multiplication for overflow.
func MulU(a, b uintptr) (uintptr, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 {
		return 0, false
	}
	return uintptr(lo), true
}

// PointerWidth is the alignment granularity used by the slab and bump
// allocators for slot/base alignment, matching the platform word size.
const PointerWidth = uintptr(bits.UintSize / 8)
