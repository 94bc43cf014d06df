// Package clock provides the monotonic timestamp and saturation-free
// duration arithmetic used everywhere a deadline is compared in the core.
// Wall-clock time is explicitly out of scope per spec.md §6.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package clock

import (
	"math"
	"time"

	"github.com/momentics/aioloop/errs"
)

// Time is a monotonic timestamp in nanoseconds since an arbitrary epoch.
// Only comparable to other Time values produced by this package.
type Time int64

// Duration is a span of monotonic nanoseconds.
type Duration int64

const (
	Nanosecond  Duration = 1
	Microsecond          = 1000 * Nanosecond
	Millisecond          = 1000 * Microsecond
	Second               = 1000 * Millisecond
)

// monotonicBase anchors Now() to process start so Time values stay small
// and comparisons remain exact; runtime.nanotime equivalents aren't
// exported, so time.Since against a fixed reference gives the same
// monotonic-reading guarantee Go's runtime provides on every platform.
var monotonicBase = time.Now()

// Now returns the current monotonic timestamp.
func Now() Time {
	return Time(time.Since(monotonicBase).Nanoseconds())
}

// Add returns t+d, failing with ERANGE on overflow.
func Add(t Time, d Duration) (Time, errs.Kind) {
	sum := int64(t) + int64(d)
	if d > 0 && sum < int64(t) {
		return 0, errs.ERANGE
	}
	if d < 0 && sum > int64(t) {
		return 0, errs.ERANGE
	}
	return Time(sum), errs.OK
}

// Sub returns a-b as a Duration, failing with ERANGE on overflow.
func Sub(a, b Time) (Duration, errs.Kind) {
	diff := int64(a) - int64(b)
	// int64 subtraction overflow only possible when a and b have
	// different signs and the result's sign doesn't match a's.
	if (int64(b) > 0 && diff > int64(a)) || (int64(b) < 0 && diff < int64(a)) {
		return 0, errs.ERANGE
	}
	if diff == math.MinInt64 {
		return 0, errs.ERANGE
	}
	return Duration(diff), errs.OK
}

// IsBefore reports whether a is strictly before b.
func IsBefore(a, b Time) bool { return a < b }

// IsAfter reports whether a is strictly after b.
func IsAfter(a, b Time) bool { return a > b }

// FromDuration converts a standard library duration, useful at API
// boundaries where callers hand in a time.Duration deadline offset.
func FromDuration(d time.Duration) Duration { return Duration(d.Nanoseconds()) }
