package util_test

import (
	"errors"
	"math"
	"testing"

	"github.com/derickschaefer/tubestats/internal/util"
)

func TestToFloat(t *testing.T) {
	cases := []struct {
		in   interface{}
		want float64
	}{
		{float64(3.5), 3.5},
		{"12", 12},
		{" 0.25 ", 0.25},
		{"abc", 0},
		{nil, 0},
		{true, 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{int64(7), 7},
	}
	for _, c := range cases {
		if got := util.ToFloat(c.in); got != c.want {
			t.Errorf("ToFloat(%v) = %g, want %g", c.in, got, c.want)
		}
	}
}

func TestRoundHalfUp(t *testing.T) {
	cases := map[float64]float64{2.5: 3, 2.4999: 2, 3: 3, -2.5: -2, 0.5: 1}
	for in, want := range cases {
		if got := util.RoundHalfUp(in); got != want {
			t.Errorf("RoundHalfUp(%g) = %g, want %g", in, got, want)
		}
	}
}

func TestRoundTo(t *testing.T) {
	if got := util.RoundTo(3.14159, 2); got != 3.14 {
		t.Errorf("RoundTo = %g", got)
	}
	if got := util.RoundTo(66.666666, 2); got != 66.67 {
		t.Errorf("RoundTo = %g", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := util.ParseDate("2024-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if util.FormatDate(d) != "2024-01-31" {
		t.Errorf("round trip gave %s", util.FormatDate(d))
	}
	if _, err := util.ParseDate("01/31/2024"); err == nil {
		t.Error("expected error for bad layout")
	}
}

func TestMultiError(t *testing.T) {
	var m util.MultiError
	if m.Err() != nil {
		t.Fatal("empty MultiError should be nil")
	}
	sentinel := errors.New("boom")
	m.Add(nil)
	m.Add(sentinel)
	m.Add(errors.New("bang"))
	err := m.Err()
	if err == nil || err.Error() != "boom; bang" {
		t.Fatalf("unexpected error %v", err)
	}
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should see collected error")
	}
}
