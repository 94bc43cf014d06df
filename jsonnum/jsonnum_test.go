package jsonnum_test

import (
	"strconv"
	"testing"

	"github.com/momentics/aioloop/errs"
	"github.com/momentics/aioloop/jsonnum"
)

// TestIsValidGrammar covers property 7: accepts exactly strings matching
// sign?, integer, fraction?, exponent?; leading zeros except "0" rejected.
func TestIsValidGrammar(t *testing.T) {
	valid := []string{
		"0", "-0", "1", "-1", "123", "-123",
		"0.5", "123.456", "-0.5",
		"1e10", "1E10", "1e+10", "1e-10", "-1e-10",
		"123.456e78", "0.0", "9999999999999999999",
	}
	for _, s := range valid {
		if !jsonnum.IsValid(s) {
			t.Errorf("IsValid(%q) = false, want true", s)
		}
	}

	invalid := []string{
		"", "-", "01", "-01", "00", "+1",
		".5", "5.", "1.", "1e", "1e+", "--1",
		"1.2.3", "1e1e1", "abc", "1 ", " 1", "1,5", "NaN", "Infinity",
	}
	for _, s := range invalid {
		if jsonnum.IsValid(s) {
			t.Errorf("IsValid(%q) = true, want false", s)
		}
	}
}

// TestParseInt32RoundTrip covers property 8: every int32 round-trips
// through its decimal string, including the -2147483648 boundary.
func TestParseInt32RoundTrip(t *testing.T) {
	samples := []int32{
		0, 1, -1, 2147483647, -2147483647, -2147483648,
		100, -100, 123456789, -123456789,
	}
	for _, want := range samples {
		s := strconv.FormatInt(int64(want), 10)
		got, k := jsonnum.ParseInt32(s)
		if k != errs.OK {
			t.Fatalf("ParseInt32(%q): %v", s, k)
		}
		if got != want {
			t.Fatalf("ParseInt32(%q) = %d, want %d", s, got, want)
		}
	}

	// Sparse sweep across the full range rather than all ~4.3B values.
	for x := int64(-2147483648); x <= 2147483647; x += 104729 {
		want := int32(x)
		s := strconv.FormatInt(x, 10)
		got, k := jsonnum.ParseInt32(s)
		if k != errs.OK || got != want {
			t.Fatalf("ParseInt32(%q) = (%d, %v), want (%d, OK)", s, got, k, want)
		}
	}
}

func TestParseInt32Overflow(t *testing.T) {
	cases := []string{"2147483648", "-2147483649", "99999999999"}
	for _, s := range cases {
		if _, k := jsonnum.ParseInt32(s); k != errs.ERANGE {
			t.Errorf("ParseInt32(%q): got %v, want ERANGE", s, k)
		}
	}
}

// TestParseInt32FractionAndExponentUnsupported covers spec.md §9's open
// question: a number with both a fraction and an exponent present is
// explicitly not supported by the int32 parser; neither is one with only
// a fraction or only an exponent.
func TestParseInt32FractionAndExponentUnsupported(t *testing.T) {
	cases := []string{"1.5e10", "-1.5e-10", "0.1", "1e5"}
	for _, s := range cases {
		if _, k := jsonnum.ParseInt32(s); k != errs.ESYNTAX {
			t.Errorf("ParseInt32(%q): got %v, want ESYNTAX", s, k)
		}
	}
}

func TestParseInt32InvalidSyntax(t *testing.T) {
	cases := []string{"", "abc", "01", "--1", "1.2.3"}
	for _, s := range cases {
		if _, k := jsonnum.ParseInt32(s); k != errs.ESYNTAX {
			t.Errorf("ParseInt32(%q): got %v, want ESYNTAX", s, k)
		}
	}
}
