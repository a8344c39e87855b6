package command

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a numeric command argument together with the precision it is
// printed with. The device echoes settings back with the precision they
// were sent in, so "AP 20.0DB" and "AP 20DB" are not interchangeable for
// callers that compare against status strings.
type Value struct {
	f float64

	// prec is the number of digits after the decimal point.
	// Negative means the shortest form that round-trips, with at least
	// one decimal.
	prec int
}

// Int returns an integer value, printed without decimals.
func Int(n int) Value {
	return Value{f: float64(n), prec: 0}
}

// Float returns a value printed in its shortest round-trip form. Integral
// values keep one decimal, so Float(20) prints "20.0" and Float(0.531)
// prints "0.531". Use Int for a bare integer.
func Float(f float64) Value {
	return Value{f: f, prec: -1}
}

// Fixed returns a value printed with exactly prec decimals.
func Fixed(f float64, prec int) Value {
	if prec < 0 {
		prec = 0
	}
	return Value{f: f, prec: prec}
}

// ParseValue parses a decimal string and keeps its textual precision:
// "20.0" renders as "20.0", "30" as "30". Exponent forms fall back to the
// shortest representation.
func ParseValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, fmt.Errorf("%w: empty", ErrInvalidValue)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	if strings.ContainsAny(s, "eE") {
		return Float(f), nil
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return Fixed(f, len(s)-i-1), nil
	}
	return Value{f: f, prec: 0}, nil
}

// Float64 returns the numeric value.
func (v Value) Float64() float64 {
	return v.f
}

// Precision returns the number of printed decimals, or -1 for shortest form.
func (v Value) Precision() int {
	return v.prec
}

// String formats the value as it appears on the wire.
func (v Value) String() string {
	s := formatFloat(v.f, v.prec)
	if v.prec < 0 && !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// rebase returns f formatted like v, with at least minPrec decimals. The
// precision is also widened when f needs more decimals than v carries, so a
// clamped bound is never truncated.
func (v Value) rebase(f float64, minPrec int) Value {
	if v.prec < 0 {
		return Float(f)
	}
	prec := max(v.prec, minPrec, decimals(f))
	return Value{f: f, prec: prec}
}

func formatFloat(f float64, prec int) string {
	if prec < 0 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', prec, 64)
}

// decimals returns the digits after the decimal point in f's shortest form.
func decimals(f float64) int {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}
