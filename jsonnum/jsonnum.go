// Package jsonnum implements the JSON number grammar validator and
// int32 parser spec.md §1 names as an out-of-scope external
// collaborator, kept here only far enough to exercise its contract
// (spec.md §8 properties 7-8): nothing in loop/task/transport imports
// it. No teacher equivalent exists for JSON number grammar, so this is
// written standalone against the grammar itself rather than adapted
// from any example file.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package jsonnum

import "github.com/momentics/aioloop/errs"

// IsValid reports whether s matches the JSON number grammar exactly:
// an optional leading '-', an integer part (either "0" or a digit
// 1-9 followed by digits, never a bare leading zero), an optional
// fraction ('.' followed by one or more digits), and an optional
// exponent ('e'/'E', optional sign, one or more digits).
func IsValid(s string) bool {
	i, ok := scanNumber(s)
	return ok && i == len(s)
}

// scanNumber consumes one JSON number from the start of s, returning
// the index just past it and whether the grammar matched at all.
func scanNumber(s string) (int, bool) {
	i := 0
	n := len(s)
	if i >= n {
		return 0, false
	}

	if s[i] == '-' {
		i++
	}

	if i >= n || !isDigit(s[i]) {
		return 0, false
	}
	if s[i] == '0' {
		i++
	} else {
		for i < n && isDigit(s[i]) {
			i++
		}
	}

	if i < n && s[i] == '.' {
		j := i + 1
		if j >= n || !isDigit(s[j]) {
			return i, true // '.' with no following digit isn't part of the number
		}
		i = j
		for i < n && isDigit(s[i]) {
			i++
		}
	}

	if i < n && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < n && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j >= n || !isDigit(s[j]) {
			return i, true // 'e' with no following digit isn't part of the number
		}
		i = j
		for i < n && isDigit(s[i]) {
			i++
		}
	}

	return i, true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// ParseInt32 parses s as a decimal int32, round-tripping every value in
// [-2147483648, 2147483647] per spec.md §8 property 8. Per spec.md §9's
// open question, a number with both a fraction and an exponent present
// is explicitly not supported here (ESYNTAX); so is a number with only a
// fraction or only an exponent — int32 has no fractional or scaled
// representation to round-trip into.
func ParseInt32(s string) (int32, errs.Kind) {
	if !IsValid(s) {
		return 0, errs.ESYNTAX
	}
	if hasFraction(s) && hasExponent(s) {
		return 0, errs.ESYNTAX
	}
	if hasFraction(s) {
		return 0, errs.ESYNTAX
	}
	if hasExponent(s) {
		return 0, errs.ESYNTAX
	}

	neg := false
	i := 0
	if s[0] == '-' {
		neg = true
		i = 1
	}

	// The most negative int32, -2147483648, has no positive counterpart
	// that fits in int32 — accumulate the magnitude in an int64, which
	// holds 2147483648, so this single value round-trips without overflow.
	var mag int64
	for ; i < len(s); i++ {
		mag = mag*10 + int64(s[i]-'0')
		if !neg && mag > 2147483647 {
			return 0, errs.ERANGE
		}
		if neg && -mag < -2147483648 {
			return 0, errs.ERANGE
		}
	}
	if neg {
		mag = -mag
	}
	return int32(mag), errs.OK
}

func hasFraction(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return true
		}
	}
	return false
}

func hasExponent(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 'e' || s[i] == 'E' {
			return true
		}
	}
	return false
}
