// Package normalize turns a canonical payload into display-ready values:
// scalar stats, per-period chart points and forecast-merged series.
// Every function here is pure; nothing is cached between calls.
package normalize

import (
	"fmt"
	"log/slog"

	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/transform"
	"github.com/derickschaefer/tubestats/internal/util"
)

// DailyWindow is the number of trailing points kept for daily charts.
const DailyWindow = 30

// maxFragment bounds the raw JSON logged with a malformed series.
const maxFragment = 512

// series selects g from p and checks that it has a date axis.
func series(p *model.Payload, g model.Granularity) (*model.TrendSeries, error) {
	ts := p.Series(g)
	if ts == nil {
		return nil, fmt.Errorf("%w: %q not present in payload", model.ErrUnknownGranularity, g)
	}
	if !ts.HasDates() {
		slog.Error("trend series has no date axis",
			"granularity", g,
			"fragment", fragment(ts.Raw))
		return nil, fmt.Errorf("%s: %w", g, model.ErrNoDateAxis)
	}
	return ts, nil
}

func fragment(raw []byte) string {
	if len(raw) > maxFragment {
		return string(raw[:maxFragment]) + "…"
	}
	return string(raw)
}

func sum(col []float64) float64 {
	var s float64
	for i := range col {
		s += model.At(col, i)
	}
	return s
}

// ─── Stats ────────────────────────────────────────────────────────────────────

// ComputeStats aggregates the series for g into card values.
func ComputeStats(p *model.Payload, g model.Granularity) (model.DerivedStats, error) {
	ts, err := series(p, g)
	if err != nil {
		return model.DerivedStats{}, err
	}

	views := sum(ts.Views)
	likes := sum(ts.Likes)
	comments := sum(ts.Comments)

	var engagement float64
	if views != 0 {
		engagement = util.RoundTo((likes+comments)/views*100, 2)
	}

	return model.DerivedStats{
		SubscriberCount:   sum(ts.Subscribers),
		ViewCount:         views,
		VideoCount:        len(p.TopVideos),
		WatchTimeHours:    util.RoundHalfUp(sum(ts.WatchMinutes) / 60),
		AvgEngagementRate: engagement,
		Revenue:           sum(ts.Revenue),
		Likes:             p.Summary.Likes30d,
		ProfileImage:      p.Summary.ProfileImage,
		LastUpdated:       p.Summary.LastUpdated,
	}, nil
}

// ─── Chart Series ─────────────────────────────────────────────────────────────

// BuildChartSeries returns one point per date in source order. Daily
// series keep only the last DailyWindow points.
func BuildChartSeries(p *model.Payload, g model.Granularity) ([]model.ChartPoint, error) {
	points, err := History(p, g)
	if err != nil {
		return nil, err
	}
	if g == model.Daily {
		return transform.Tail(points, DailyWindow), nil
	}
	return points, nil
}

// History is BuildChartSeries without the daily window; forecast
// generation trains on it.
func History(p *model.Payload, g model.Granularity) ([]model.ChartPoint, error) {
	ts, err := series(p, g)
	if err != nil {
		return nil, err
	}

	points := make([]model.ChartPoint, len(ts.Dates))
	for i, d := range ts.Dates {
		points[i] = model.ChartPoint{
			Label:       d,
			Views:       model.At(ts.Views, i),
			Subscribers: model.At(ts.Subscribers, i),
			Revenue:     model.At(ts.Revenue, i),
			Likes:       model.At(ts.Likes, i),
			Dislikes:    model.At(ts.Dislikes, i),
			WatchTime:   model.At(ts.WatchMinutes, i) / 60,
		}
	}
	return points, nil
}

// ToCumulative is the running-sum view of one metric.
func ToCumulative(points []model.ChartPoint, m model.Metric) []model.ChartPoint {
	return transform.Cumulative(points, m)
}

// ─── Forecast Merge ───────────────────────────────────────────────────────────

// MergeForecast appends the forecast for modelName/m to history. A bridge
// point repeating the last history label and value under Forecast joins
// the two segments. When the prediction set, model or metric is missing
// the history-only series is returned.
func MergeForecast(history []model.ChartPoint, ps *model.PredictionSet, modelName string, m model.Metric) []model.ForecastPoint {
	out := make([]model.ForecastPoint, 0, len(history))
	for _, h := range history {
		v := h.Get(m)
		out = append(out, model.ForecastPoint{Label: h.Label, History: &v})
	}

	vals, ok := ps.Values(modelName, m)
	if !ok || len(ps.Dates) == 0 {
		return out
	}

	if len(history) > 0 {
		last := history[len(history)-1]
		v := last.Get(m)
		out = append(out, model.ForecastPoint{Label: last.Label, Forecast: &v})
	}
	for i, d := range ps.Dates {
		v := model.At(vals, i)
		out = append(out, model.ForecastPoint{Label: d, Forecast: &v})
	}
	return out
}
