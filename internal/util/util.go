// Package util provides shared utilities: date parsing, number coercion,
// rounding, and error collection.
package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ─── Date Parsing ─────────────────────────────────────────────────────────────

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into a time.Time (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate formats a time.Time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ─── Number Coercion ──────────────────────────────────────────────────────────

// ToFloat coerces a decoded JSON value to float64. Numbers pass through,
// numeric strings are parsed, and everything else (nil, bool, garbage,
// NaN, Inf) becomes 0.
func ToFloat(v interface{}) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = p
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ─── Rounding ─────────────────────────────────────────────────────────────────

// RoundHalfUp rounds to the nearest integer, with .5 going towards +Inf.
func RoundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// RoundTo rounds v to n decimal places, half away from zero.
func RoundTo(v float64, n int) float64 {
	p := math.Pow(10, float64(n))
	return math.Round(v*p) / p
}

// FormatValue formats a float64 for display without trailing zeros.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
