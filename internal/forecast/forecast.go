// Package forecast projects per-period metrics forward and assembles the
// result in the prediction file layout consumed by normalize.MergeForecast.
package forecast

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/derickschaefer/tubestats/internal/analyze"
	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/transform"
	"github.com/derickschaefer/tubestats/internal/util"
)

// Model names written into a generated PredictionSet.
const (
	ModelMovingAverage = "ma"
	ModelWeightedTrend = "wma"
	ModelTheilSen      = "theilsen"
)

// Models lists the generated models in output order.
var Models = []string{ModelMovingAverage, ModelWeightedTrend, ModelTheilSen}

const (
	DefaultHorizon = 30
	MAWindow       = 7
	WMAWindow      = 30
)

// ─── Models ───────────────────────────────────────────────────────────────────

// MovingAverage projects the mean of the trailing window as a flat line.
// It returns nil when fewer than window values are available.
func MovingAverage(vals []float64, window, horizon int) []float64 {
	if window < 1 || len(vals) < window || horizon < 1 {
		return nil
	}
	avg := transform.Mean(vals[len(vals)-window:])
	out := make([]float64, horizon)
	for i := range out {
		out[i] = avg
	}
	return out
}

// WeightedTrend fits a least-squares line to the trailing window with
// linearly increasing weights 1..window, so recent periods dominate, and
// extends it horizon periods past the window. It returns nil when fewer
// than window values are available.
func WeightedTrend(vals []float64, window, horizon int) []float64 {
	if window < 2 || len(vals) < window || horizon < 1 {
		return nil
	}
	recent := vals[len(vals)-window:]

	var wSum, xSum, ySum float64
	for i, y := range recent {
		w := float64(i + 1)
		wSum += w
		xSum += w * float64(i)
		ySum += w * y
	}
	xMean, yMean := xSum/wSum, ySum/wSum

	var num, den float64
	for i, y := range recent {
		w := float64(i + 1)
		dx := float64(i) - xMean
		num += w * dx * (y - yMean)
		den += w * dx * dx
	}
	var slope float64
	if den != 0 {
		slope = num / den
	}
	intercept := yMean - slope*xMean

	out := make([]float64, horizon)
	for i := range out {
		out[i] = slope*float64(window+i) + intercept
	}
	return out
}

// TheilSen extends a Theil-Sen line fitted to all of vals. It returns nil
// for fewer than two values.
func TheilSen(vals []float64, horizon int) []float64 {
	if horizon < 1 {
		return nil
	}
	tr, err := analyze.Trend("", vals, analyze.TrendTheilSen)
	if err != nil {
		return nil
	}
	n := len(vals)
	out := make([]float64, horizon)
	for i := range out {
		out[i] = tr.At(float64(n + i))
	}
	return out
}

// ─── Generation ───────────────────────────────────────────────────────────────

// Generate builds a PredictionSet from a chronological daily history. The
// forecast dates start the day after the last history label, which must
// be YYYY-MM-DD. A model with too little history for a metric gets no
// column for it, and a model with no columns is left out.
func Generate(history []model.ChartPoint, horizon int, now time.Time) (*model.PredictionSet, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("forecast: empty history")
	}
	if horizon < 1 {
		horizon = DefaultHorizon
	}
	last, err := util.ParseDate(history[len(history)-1].Label)
	if err != nil {
		return nil, fmt.Errorf("forecast: last history label: %w", err)
	}

	ps := &model.PredictionSet{
		LastUpdated: now.UTC().Format(time.RFC3339),
		Dates:       make([]string, horizon),
		Predictions: make(map[string]map[string][]float64, len(Models)),
	}
	for i := range ps.Dates {
		ps.Dates[i] = util.FormatDate(last.AddDate(0, 0, i+1))
	}
	put := func(name string, m model.Metric, vals []float64) {
		if len(vals) == 0 {
			return
		}
		if ps.Predictions[name] == nil {
			ps.Predictions[name] = make(map[string][]float64, len(model.Metrics))
		}
		ps.Predictions[name][m.PredictionKey()] = finish(m, vals)
	}
	for _, m := range model.Metrics {
		vals := transform.Values(history, m)
		put(ModelMovingAverage, m, MovingAverage(vals, MAWindow, horizon))
		put(ModelWeightedTrend, m, WeightedTrend(vals, WMAWindow, horizon))
		put(ModelTheilSen, m, TheilSen(vals, horizon))
	}

	slog.Debug("forecast generated",
		"history", len(history),
		"horizon", horizon,
		"from", ps.Dates[0])
	return ps, nil
}

// finish clamps at zero and rounds: revenue and watch hours to cents,
// counts to whole numbers.
func finish(m model.Metric, vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if v < 0 {
			v = 0
		}
		switch m {
		case model.MetricRevenue, model.MetricWatchTime:
			out[i] = util.RoundTo(v, 2)
		default:
			out[i] = util.RoundHalfUp(v)
		}
	}
	return out
}
