package analyze_test

import (
	"math"
	"testing"

	"github.com/derickschaefer/tubestats/internal/analyze"
	"github.com/derickschaefer/tubestats/internal/model"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func seq(vals ...float64) []float64 { return vals }

// ─── Summarize ────────────────────────────────────────────────────────────────

func TestSummarizeBasicCounts(t *testing.T) {
	s := analyze.Summarize("views", seq(1, 2, 3, 4, 5))
	if s.Label != "views" {
		t.Errorf("Label: expected views, got %q", s.Label)
	}
	if s.Count != 5 {
		t.Errorf("Count: expected 5, got %d", s.Count)
	}
	if !approxEqual(s.Total, 15, 1e-9) {
		t.Errorf("Total: expected 15, got %g", s.Total)
	}
}

func TestSummarizeMeanAndStd(t *testing.T) {
	s := analyze.Summarize("x", seq(1, 2, 3, 4, 5))
	if !approxEqual(s.Mean, 3.0, 1e-9) {
		t.Errorf("Mean: expected 3.0, got %g", s.Mean)
	}
	// Sample std of [1,2,3,4,5] = sqrt(2.5)
	if !approxEqual(s.Std, math.Sqrt(2.5), 1e-6) {
		t.Errorf("Std: expected %g, got %g", math.Sqrt(2.5), s.Std)
	}
}

func TestSummarizeMinMax(t *testing.T) {
	s := analyze.Summarize("x", seq(5, 2, 8, 1, 9, 3))
	if s.Min != 1 || s.Max != 9 {
		t.Errorf("Min/Max: expected 1/9, got %g/%g", s.Min, s.Max)
	}
}

func TestSummarizeMedian(t *testing.T) {
	if s := analyze.Summarize("x", seq(1, 2, 3, 4, 5)); !approxEqual(s.Median, 3, 1e-9) {
		t.Errorf("odd Median: expected 3, got %g", s.Median)
	}
	if s := analyze.Summarize("x", seq(1, 2, 3, 4)); !approxEqual(s.Median, 2.5, 1e-9) {
		t.Errorf("even Median: expected 2.5, got %g", s.Median)
	}
}

func TestSummarizePercentiles(t *testing.T) {
	s := analyze.Summarize("x", seq(1, 2, 3, 4, 5))
	if !(s.P25 < s.Median && s.Median < s.P75) {
		t.Errorf("expected P25 < Median < P75, got %g %g %g", s.P25, s.Median, s.P75)
	}
}

func TestSummarizeChange(t *testing.T) {
	s := analyze.Summarize("x", seq(100, 110, 120, 130))
	if !approxEqual(s.Change, 30, 1e-9) {
		t.Errorf("Change: expected 30, got %g", s.Change)
	}
	if !approxEqual(s.ChangePct, 30, 1e-9) {
		t.Errorf("ChangePct: expected 30, got %g", s.ChangePct)
	}
}

func TestSummarizeChangeZeroFirst(t *testing.T) {
	s := analyze.Summarize("x", seq(0, 10, 20))
	if s.ChangePct != 0 {
		t.Errorf("ChangePct: expected 0 when First=0, got %g", s.ChangePct)
	}
}

func TestSummarizeEmptyInput(t *testing.T) {
	s := analyze.Summarize("x", nil)
	if s.Count != 0 || s.Mean != 0 {
		t.Errorf("expected zero summary, got %+v", s)
	}
}

func TestSummarizeSingleValue(t *testing.T) {
	s := analyze.Summarize("x", seq(42))
	if s.Mean != 42 || s.Min != 42 || s.Max != 42 || s.Std != 0 {
		t.Errorf("unexpected single-value summary %+v", s)
	}
}

func TestSummarizePoints(t *testing.T) {
	pts := []model.ChartPoint{{Label: "a", Revenue: 1.5}, {Label: "b", Revenue: 2.5}}
	s := analyze.SummarizePoints(pts, model.MetricRevenue)
	if s.Label != "revenue" || !approxEqual(s.Total, 4, 1e-9) {
		t.Errorf("unexpected %+v", s)
	}
}

// ─── Growth ───────────────────────────────────────────────────────────────────

func TestGrowth(t *testing.T) {
	cases := []struct {
		name string
		vals []float64
		want float64
	}{
		{"up", seq(100, 150), 50},
		{"down", seq(1, 200, 100), -50},
		{"rounded", seq(3, 4), 33.33},
		{"zero previous", seq(0, 10), 0},
		{"single", seq(5), 0},
		{"empty", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := analyze.Growth(tc.vals); !approxEqual(got, tc.want, 1e-9) {
				t.Errorf("Growth(%v) = %g, want %g", tc.vals, got, tc.want)
			}
		})
	}
}

// ─── Trend ────────────────────────────────────────────────────────────────────

func TestTrendLinearUpward(t *testing.T) {
	tr, err := analyze.Trend("x", seq(1, 2, 3, 4, 5, 6, 7, 8, 9, 10), analyze.TrendLinear)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Direction != "up" {
		t.Errorf("Direction: expected up, got %q", tr.Direction)
	}
	if !approxEqual(tr.Slope, 1, 1e-9) || !approxEqual(tr.Intercept, 1, 1e-9) {
		t.Errorf("expected slope 1 intercept 1, got %g %g", tr.Slope, tr.Intercept)
	}
	if !approxEqual(tr.R2, 1, 1e-9) {
		t.Errorf("R2: expected 1, got %g", tr.R2)
	}
	if !approxEqual(tr.At(10), 11, 1e-9) {
		t.Errorf("At(10): expected 11, got %g", tr.At(10))
	}
}

func TestTrendLinearDownward(t *testing.T) {
	tr, err := analyze.Trend("x", seq(10, 9, 8, 7, 6), analyze.TrendLinear)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Direction != "down" {
		t.Errorf("Direction: expected down, got %q", tr.Direction)
	}
}

func TestTrendFlat(t *testing.T) {
	tr, err := analyze.Trend("x", seq(5, 5, 5, 5), analyze.TrendLinear)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Direction != "flat" {
		t.Errorf("Direction: expected flat, got %q", tr.Direction)
	}
}

func TestTrendR2Range(t *testing.T) {
	vals := seq(3.5, 4.4, 14.7, 13.3, 11.1, 8.4, 6.9, 6.0, 6.9, 6.7, 6.4, 6.7)
	for _, m := range []analyze.TrendMethod{analyze.TrendLinear, analyze.TrendTheilSen} {
		tr, err := analyze.Trend("x", vals, m)
		if err != nil {
			t.Fatalf("%s: %v", m, err)
		}
		if tr.R2 < 0 || tr.R2 > 1 {
			t.Errorf("%s: R2 must be in [0,1], got %g", m, tr.R2)
		}
	}
}

func TestTrendTooFew(t *testing.T) {
	if _, err := analyze.Trend("x", seq(5), analyze.TrendLinear); err == nil {
		t.Error("expected error for single value")
	}
}

func TestTrendTheilSenRobustToOutlier(t *testing.T) {
	vals := seq(1, 2, 3, -1000, 5, 6, 7, 8, 9, 10)
	tr, err := analyze.Trend("x", vals, analyze.TrendTheilSen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Direction != "up" {
		t.Errorf("Theil-Sen should be robust to outlier; direction=%q", tr.Direction)
	}
	if !approxEqual(tr.Slope, 1, 1e-9) {
		t.Errorf("expected median slope 1, got %g", tr.Slope)
	}
	if tr.Method != analyze.TrendTheilSen {
		t.Errorf("Method: expected theil-sen, got %q", tr.Method)
	}
}

func TestParseTrendMethod(t *testing.T) {
	for in, want := range map[string]analyze.TrendMethod{
		"linear": analyze.TrendLinear, "ols": analyze.TrendLinear,
		"theil-sen": analyze.TrendTheilSen, "theilsen": analyze.TrendTheilSen,
	} {
		got, err := analyze.ParseTrendMethod(in)
		if err != nil || got != want {
			t.Errorf("ParseTrendMethod(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := analyze.ParseTrendMethod("spline"); err == nil {
		t.Error("expected error for unknown method")
	}
}
