// Package transform implements stateless operators over chart series. Each
// operator takes a slice of ChartPoints and one selected metric and returns
// a new slice; the input is never modified and fields other than the
// selected metric are carried through unchanged.
package transform

import (
	"fmt"
	"math"

	"github.com/derickschaefer/tubestats/internal/model"
)

// ─── Cumulative ───────────────────────────────────────────────────────────────

// Cumulative replaces metric m on each point with the running sum up to and
// including that point, scanning left to right. Empty input returns an
// empty (non-nil) slice.
func Cumulative(points []model.ChartPoint, m model.Metric) []model.ChartPoint {
	out := make([]model.ChartPoint, len(points))
	var running float64
	for i, p := range points {
		running += p.Get(m)
		out[i] = p.With(m, running)
	}
	return out
}

// ─── Percent Change ───────────────────────────────────────────────────────────

// PctChange computes (v[t] - v[t-period]) / |v[t-period]| * 100 for metric m.
// Leading points that have no prior period are dropped. A zero base yields 0.
func PctChange(points []model.ChartPoint, m model.Metric, period int) ([]model.ChartPoint, error) {
	if period < 1 {
		return nil, fmt.Errorf("pct-change: period must be >= 1, got %d", period)
	}
	if len(points) <= period {
		return nil, fmt.Errorf("pct-change: need more than %d points, got %d", period, len(points))
	}
	out := make([]model.ChartPoint, 0, len(points)-period)
	for i := period; i < len(points); i++ {
		curr := points[i].Get(m)
		prev := points[i-period].Get(m)
		var val float64
		if prev != 0 {
			val = (curr - prev) / math.Abs(prev) * 100
		}
		out = append(out, points[i].With(m, val))
	}
	return out, nil
}

// ─── Tail ─────────────────────────────────────────────────────────────────────

// Tail returns a copy of the last n points, or all of them when n <= 0 or
// the series is shorter.
func Tail(points []model.ChartPoint, n int) []model.ChartPoint {
	start := 0
	if n > 0 && len(points) > n {
		start = len(points) - n
	}
	out := make([]model.ChartPoint, len(points)-start)
	copy(out, points[start:])
	return out
}

// Values extracts metric m from every point.
func Values(points []model.ChartPoint, m model.Metric) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Get(m)
	}
	return out
}

// Labels extracts the label of every point.
func Labels(points []model.ChartPoint) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.Label
	}
	return out
}

// ─── Rolling Window ───────────────────────────────────────────────────────────

// RollStat selects the statistic for rolling window computation.
type RollStat string

const (
	RollMean RollStat = "mean"
	RollStd  RollStat = "std"
	RollMin  RollStat = "min"
	RollMax  RollStat = "max"
	RollSum  RollStat = "sum"
)

// Roll computes a rolling window statistic over metric m. The window holds
// the current point and the (window-1) preceding points; early points use
// a shorter window.
func Roll(points []model.ChartPoint, m model.Metric, window int, stat RollStat) ([]model.ChartPoint, error) {
	if window < 1 {
		return nil, fmt.Errorf("roll: window must be >= 1, got %d", window)
	}
	switch stat {
	case RollMean, RollStd, RollMin, RollMax, RollSum:
	default:
		return nil, fmt.Errorf("roll: unknown stat %q (use mean, std, min, max, sum)", stat)
	}

	vals := Values(points, m)
	out := make([]model.ChartPoint, len(points))
	for i, p := range points {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		w := vals[start : i+1]

		var val float64
		switch stat {
		case RollMean:
			val = Mean(w)
		case RollStd:
			val = Stddev(w, Mean(w))
		case RollMin:
			val, _ = MinMax(w)
		case RollMax:
			_, val = MinMax(w)
		case RollSum:
			val = Sum(w)
		}
		out[i] = p.With(m, val)
	}
	return out, nil
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return Sum(vals) / float64(len(vals))
}

// Sum adds every value.
func Sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

// Stddev is the sample standard deviation around m.
func Stddev(vals []float64, m float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var sq float64
	for _, v := range vals {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)-1))
}

// MinMax returns the smallest and largest values; both 0 when empty.
func MinMax(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	mn, mx := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	return mn, mx
}
