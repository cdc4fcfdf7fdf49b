// Package view assembles normalized values into the dashboard a client
// renders for one selection, and holds the latest published snapshot.
package view

import (
	"fmt"
	"sort"
	"strings"

	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/normalize"
)

// ─── Selection ────────────────────────────────────────────────────────────────

// Mode selects per-period or running-total chart values.
type Mode string

const (
	ModeChanges    Mode = "changes"
	ModeCumulative Mode = "cumulative"
)

// ParseMode accepts "changes"/"daily" and "cumulative"/"cum".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "changes", "change", "daily":
		return ModeChanges, nil
	case "cumulative", "cum":
		return ModeCumulative, nil
	}
	return "", fmt.Errorf("unknown chart mode %q (use changes or cumulative)", s)
}

// Selection is what a client is looking at.
type Selection struct {
	Granularity model.Granularity `json:"granularity"`
	Metric      model.Metric      `json:"metric"`
	Mode        Mode              `json:"mode"`
	// Model names the forecast model; empty picks PreferredModel.
	Model string `json:"model,omitempty"`
}

// DefaultSelection is daily views, per period.
func DefaultSelection() Selection {
	return Selection{Granularity: model.Daily, Metric: model.MetricViews, Mode: ModeChanges}
}

// modelPreference is the order PreferredModel tries.
var modelPreference = []string{"xgboost", "theilsen", "wma", "ma"}

// PreferredModel picks a forecast model present in ps, or "".
func PreferredModel(ps *model.PredictionSet) string {
	if ps == nil {
		return ""
	}
	for _, name := range modelPreference {
		if len(ps.Predictions[name]) > 0 {
			return name
		}
	}
	return ""
}

// ─── Dashboard ────────────────────────────────────────────────────────────────

// Dashboard is everything derived from one payload for one selection.
type Dashboard struct {
	Selection Selection             `json:"selection"`
	Stats     model.DerivedStats    `json:"stats"`
	Chart     []model.ChartPoint    `json:"chart"`
	Forecast  []model.ForecastPoint `json:"forecast"`
	Models    []string              `json:"models,omitempty"`
	Videos    []model.Video         `json:"videos"`
	Comments  []model.Comment       `json:"comments"`
	Insights  *model.Insights       `json:"insights,omitempty"`
}

// Build derives a Dashboard. ps may be nil; the forecast is then the
// history alone. The forecast always continues the per-period series,
// whatever the chart mode.
func Build(p *model.Payload, ps *model.PredictionSet, sel Selection) (*Dashboard, error) {
	if p == nil {
		return nil, model.ErrNoSnapshot
	}
	if sel.Mode == "" {
		sel.Mode = ModeChanges
	}
	if sel.Metric == "" {
		sel.Metric = model.MetricViews
	}
	if sel.Model == "" {
		sel.Model = PreferredModel(ps)
	}

	stats, err := normalize.ComputeStats(p, sel.Granularity)
	if err != nil {
		return nil, err
	}
	points, err := normalize.BuildChartSeries(p, sel.Granularity)
	if err != nil {
		return nil, err
	}

	chart := points
	if sel.Mode == ModeCumulative {
		chart = normalize.ToCumulative(points, sel.Metric)
	}

	d := &Dashboard{
		Selection: sel,
		Stats:     stats,
		Chart:     chart,
		Forecast:  normalize.MergeForecast(points, ps, sel.Model, sel.Metric),
		Models:    sortedModels(ps),
		Videos:    SortVideos(p.TopVideos, DefaultVideoSort),
		Comments:  SortComments(p.Comments, DefaultCommentSort),
		Insights:  p.Insights,
	}
	return d, nil
}

func sortedModels(ps *model.PredictionSet) []string {
	names := ps.Models()
	rank := func(n string) int {
		for i, pref := range modelPreference {
			if n == pref {
				return i
			}
		}
		return len(modelPreference)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := rank(names[i]), rank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names
}
