// Package analyze computes statistical summaries and trend analysis over
// per-period metric values. All functions are pure; no I/O.
package analyze

import (
	"fmt"
	"math"
	"sort"

	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/transform"
)

// ─── Summary ──────────────────────────────────────────────────────────────────

// Summary holds descriptive statistics for one metric.
type Summary struct {
	Label     string  `json:"label"`
	Count     int     `json:"count"`
	Total     float64 `json:"total"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	Min       float64 `json:"min"`
	P25       float64 `json:"p25"`
	Median    float64 `json:"median"`
	P75       float64 `json:"p75"`
	Max       float64 `json:"max"`
	First     float64 `json:"first"`
	Last      float64 `json:"last"`
	Change    float64 `json:"change"`     // Last - First
	ChangePct float64 `json:"change_pct"` // (Last-First)/|First| * 100, 0 when First is 0
	Growth    float64 `json:"growth"`     // last period over previous, percent
}

// Summarize computes descriptive statistics over vals.
func Summarize(label string, vals []float64) Summary {
	s := Summary{Label: label, Count: len(vals)}
	if len(vals) == 0 {
		return s
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Total = transform.Sum(vals)
	s.Mean = s.Total / float64(len(vals))
	s.Std = transform.Stddev(vals, s.Mean)
	s.Median = percentile(sorted, 50)
	s.P25 = percentile(sorted, 25)
	s.P75 = percentile(sorted, 75)

	s.First = vals[0]
	s.Last = vals[len(vals)-1]
	s.Change = s.Last - s.First
	if s.First != 0 {
		s.ChangePct = s.Change / math.Abs(s.First) * 100
	}
	s.Growth = Growth(vals)
	return s
}

// SummarizePoints summarizes metric m across a chart series.
func SummarizePoints(points []model.ChartPoint, m model.Metric) Summary {
	return Summarize(string(m), transform.Values(points, m))
}

// Growth is the percent change of the last value over the one before it,
// rounded to 2 decimals. It is 0 with fewer than two values or when the
// previous value is not positive.
func Growth(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	latest, prev := vals[len(vals)-1], vals[len(vals)-2]
	if prev <= 0 {
		return 0
	}
	return math.Round((latest-prev)/prev*100*100) / 100
}

// ─── Trend ────────────────────────────────────────────────────────────────────

// TrendMethod selects the regression algorithm.
type TrendMethod string

const (
	TrendLinear   TrendMethod = "linear"
	TrendTheilSen TrendMethod = "theil-sen"
)

// ParseTrendMethod accepts "linear", "ols", "theil-sen" and "theilsen".
func ParseTrendMethod(s string) (TrendMethod, error) {
	switch s {
	case "linear", "ols", "":
		return TrendLinear, nil
	case "theil-sen", "theilsen":
		return TrendTheilSen, nil
	}
	return "", fmt.Errorf("unknown trend method %q (use linear or theil-sen)", s)
}

// TrendResult holds the output of a trend analysis. X is the period index,
// so Slope is in metric units per period.
type TrendResult struct {
	Label     string      `json:"label"`
	Method    TrendMethod `json:"method"`
	Slope     float64     `json:"slope"`
	Intercept float64     `json:"intercept"`
	R2        float64     `json:"r2"`
	Direction string      `json:"direction"` // "up", "down", "flat"
	N         int         `json:"n"`
}

// At evaluates the fitted line at period index x.
func (t TrendResult) At(x float64) float64 {
	return t.Slope*x + t.Intercept
}

// Trend fits a line to vals against their index.
func Trend(label string, vals []float64, method TrendMethod) (TrendResult, error) {
	tr := TrendResult{Label: label, Method: method, N: len(vals)}
	if len(vals) < 2 {
		return tr, fmt.Errorf("trend: need at least 2 values, got %d", len(vals))
	}

	switch method {
	case TrendTheilSen:
		// median pairwise slope, intercept through the centroid
		tr.Slope = medianSlope(vals)
		tr.Intercept = transform.Mean(vals) - tr.Slope*float64(len(vals)-1)/2
	default:
		tr.Slope, tr.Intercept = leastSquares(vals)
	}

	tr.R2 = rSquared(vals, tr)

	switch {
	case tr.Slope > 1e-9:
		tr.Direction = "up"
	case tr.Slope < -1e-9:
		tr.Direction = "down"
	default:
		tr.Direction = "flat"
	}
	return tr, nil
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := p / 100 * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// leastSquares fits y = slope*i + intercept where i is the index of each
// value.
func leastSquares(vals []float64) (slope, intercept float64) {
	n := float64(len(vals))
	xMean := (n - 1) / 2
	yMean := transform.Mean(vals)
	var sxy, sxx float64
	for i, v := range vals {
		dx := float64(i) - xMean
		sxy += dx * (v - yMean)
		sxx += dx * dx
	}
	if sxx == 0 {
		return 0, yMean
	}
	slope = sxy / sxx
	return slope, yMean - slope*xMean
}

// medianSlope is the Theil-Sen estimator over index-ordered values.
func medianSlope(vals []float64) float64 {
	n := len(vals)
	slopes := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			slopes = append(slopes, (vals[j]-vals[i])/float64(j-i))
		}
	}
	if len(slopes) == 0 {
		return 0
	}
	sort.Float64s(slopes)
	return percentile(slopes, 50)
}

// rSquared is the coefficient of determination of tr over vals, clamped
// at 0. A constant series fits perfectly.
func rSquared(vals []float64, tr TrendResult) float64 {
	yMean := transform.Mean(vals)
	var ssTot, ssRes float64
	for i, v := range vals {
		res := v - tr.At(float64(i))
		ssTot += (v - yMean) * (v - yMean)
		ssRes += res * res
	}
	if ssTot == 0 {
		return 1
	}
	return math.Max(0, 1-ssRes/ssTot)
}
