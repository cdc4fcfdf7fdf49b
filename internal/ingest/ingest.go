// Package ingest decodes dashboard_data.json and prediction_data.json into
// the canonical model types. Field names differ between schema generations
// and can be mixed within one payload, so every trend field is resolved
// independently through an ordered alias table.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/util"
)

// ─── Alias Table ──────────────────────────────────────────────────────────────

// alias is one accepted raw name for a canonical field.
type alias struct {
	Name string
	Gen  model.Generation
}

// Canonical trend field names.
const (
	FieldDates           = "dates"
	FieldViews           = "views"
	FieldSubscribers     = "subscribers"
	FieldRevenue         = "revenue"
	FieldWatchMinutes    = "watchMinutes"
	FieldAvgViewDuration = "avgViewDuration"
	FieldLikes           = "likes"
	FieldDislikes        = "dislikes"
	FieldComments        = "comments"
	FieldShares          = "shares"
)

// fieldAliases lists raw names per canonical field, highest precedence
// first. A field resolves to the first alias present as a JSON array.
var fieldAliases = map[string][]alias{
	FieldDates:           {{"dates", model.GenDashboard}, {"day", model.GenAnalytics}},
	FieldViews:           {{"views", model.GenUnknown}},
	FieldSubscribers:     {{"subscribers", model.GenDashboard}, {"subscribersGained", model.GenAnalytics}},
	FieldRevenue:         {{"revenue", model.GenDashboard}, {"estimatedRevenue", model.GenAnalytics}},
	FieldWatchMinutes:    {{"estimatedMinutesWatched", model.GenAnalytics}},
	FieldAvgViewDuration: {{"averageViewDuration", model.GenDashboard}},
	FieldLikes:           {{"likes", model.GenUnknown}},
	FieldDislikes:        {{"dislikes", model.GenUnknown}},
	FieldComments:        {{"comments", model.GenUnknown}},
	FieldShares:          {{"shares", model.GenUnknown}},
}

// Aliases returns the raw names accepted for a canonical field, in
// precedence order.
func Aliases(field string) []string {
	as := fieldAliases[field]
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Name
	}
	return out
}

// ─── Dashboard Payload ────────────────────────────────────────────────────────

type rawPayload struct {
	Summary        map[string]interface{}     `json:"summary"`
	Trends         map[string]json.RawMessage `json:"trends"`
	TopVideos      []map[string]interface{}   `json:"top_videos"`
	Comments       []map[string]interface{}   `json:"comments"`
	Insights       json.RawMessage            `json:"ai_insights"`
	Demographics   json.RawMessage            `json:"demographics"`
	TrafficSources json.RawMessage            `json:"traffic_sources"`
}

// Decode reads a dashboard payload from r.
func Decode(r io.Reader) (*model.Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes parses a dashboard payload. Only structurally invalid JSON
// is an error; missing sections become zero values. A granularity whose
// date axis cannot be resolved is kept with nil Dates so the normalizer
// can report it when that granularity is requested.
func DecodeBytes(data []byte) (*model.Payload, error) {
	var raw rawPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	p := &model.Payload{
		Summary: decodeSummary(raw.Summary),
		Trends:  make(map[model.Granularity]*model.TrendSeries, len(model.Granularities)),
	}

	for _, g := range model.Granularities {
		frag, ok := raw.Trends[string(g)]
		if !ok || isNull(frag) {
			continue
		}
		ts, err := decodeTrend(frag)
		if err != nil {
			slog.Warn("skipping unreadable trend series", "granularity", g, "error", err)
			continue
		}
		p.Trends[g] = ts
	}

	p.TopVideos = decodeVideos(raw.TopVideos)
	p.Comments = decodeComments(raw.Comments)
	p.Insights = decodeInsights(raw.Insights)

	if len(raw.Demographics) > 0 && !isNull(raw.Demographics) {
		var demo map[string]model.Table
		if err := json.Unmarshal(raw.Demographics, &demo); err != nil {
			slog.Warn("ignoring unreadable demographics", "error", err)
		} else {
			p.Demographics = demo
		}
	}
	if len(raw.TrafficSources) > 0 && !isNull(raw.TrafficSources) {
		var ts []map[string]interface{}
		if err := json.Unmarshal(raw.TrafficSources, &ts); err != nil {
			slog.Warn("ignoring unreadable traffic sources", "error", err)
		} else {
			p.TrafficSources = ts
		}
	}
	return p, nil
}

// ─── Trend Series ─────────────────────────────────────────────────────────────

// decodeTrend resolves one trend series fragment.
func decodeTrend(frag json.RawMessage) (*model.TrendSeries, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frag, &fields); err != nil {
		return nil, fmt.Errorf("trend series is not an object: %w", err)
	}

	ts := &model.TrendSeries{
		Sources: make(map[string]model.Generation),
		Raw:     append([]byte(nil), frag...),
	}

	if items, gen, ok := resolve(fields, FieldDates); ok {
		ts.Dates = toLabels(items)
		ts.Sources[FieldDates] = gen
	}

	column := func(field string) []float64 {
		items, gen, ok := resolve(fields, field)
		if !ok {
			return []float64{}
		}
		ts.Sources[field] = gen
		return toFloats(items)
	}

	ts.Views = column(FieldViews)
	ts.Subscribers = column(FieldSubscribers)
	ts.Revenue = column(FieldRevenue)
	ts.Likes = column(FieldLikes)
	ts.Dislikes = column(FieldDislikes)
	ts.Comments = column(FieldComments)
	ts.Shares = column(FieldShares)

	// Watch time: an explicit minutes column wins. Otherwise derive it
	// from views × averageViewDuration (seconds).
	if items, gen, ok := resolve(fields, FieldWatchMinutes); ok {
		ts.WatchMinutes = toFloats(items)
		ts.Sources[FieldWatchMinutes] = gen
	} else if items, _, ok := resolve(fields, FieldAvgViewDuration); ok {
		durations := toFloats(items)
		ts.WatchMinutes = make([]float64, len(ts.Views))
		for i := range ts.Views {
			ts.WatchMinutes[i] = ts.Views[i] * model.At(durations, i) / 60
		}
		ts.Sources[FieldWatchMinutes] = model.GenDerived
	} else {
		ts.WatchMinutes = []float64{}
	}

	return ts, nil
}

// resolve returns the first alias of field present as a JSON array.
// A null or non-array value falls through to the next alias.
func resolve(fields map[string]json.RawMessage, field string) ([]interface{}, model.Generation, bool) {
	for _, a := range fieldAliases[field] {
		frag, ok := fields[a.Name]
		if !ok || isNull(frag) {
			continue
		}
		var items []interface{}
		if err := json.Unmarshal(frag, &items); err != nil {
			slog.Debug("alias is not an array", "field", field, "alias", a.Name)
			continue
		}
		if items == nil {
			items = []interface{}{}
		}
		return items, a.Gen, true
	}
	return nil, model.GenUnknown, false
}

func toFloats(items []interface{}) []float64 {
	out := make([]float64, len(items))
	for i, v := range items {
		out[i] = util.ToFloat(v)
	}
	return out
}

func toLabels(items []interface{}) []string {
	out := make([]string, len(items))
	for i, v := range items {
		out[i] = toString(v)
	}
	return out
}

// ─── Sections ─────────────────────────────────────────────────────────────────

func decodeSummary(m map[string]interface{}) model.Summary {
	return model.Summary{
		ChannelName:          toString(m["channel_name"]),
		ProfileImage:         toString(m["profile_image"]),
		TotalViews30d:        util.ToFloat(m["total_views_30d"]),
		EstimatedRevenue30d:  util.ToFloat(m["estimated_revenue_30d"]),
		SubsGained30d:        util.ToFloat(m["subs_gained_30d"]),
		WatchTimeHours30d:    util.ToFloat(m["total_watch_time_hours_30d"]),
		Likes30d:             util.ToFloat(m["likes_30d"]),
		AvgEngagementRate30d: util.ToFloat(m["avg_engagement_rate_30d"]),
		LastUpdated:          toString(m["last_updated"]),
	}
}

func decodeVideos(rows []map[string]interface{}) []model.Video {
	out := make([]model.Video, 0, len(rows))
	for i, r := range rows {
		id := firstString(r, "video", "id")
		if id == "" {
			id = fmt.Sprintf("v-%d", i)
		}
		title := toString(r["title"])
		if title == "" {
			title = fmt.Sprintf("Unknown Video (%s)", id)
		}
		revenue := r["estimatedRevenue"]
		if revenue == nil {
			revenue = r["revenue"]
		}
		out = append(out, model.Video{
			ID:           id,
			Title:        title,
			Thumbnail:    toString(r["thumbnail"]),
			Views:        util.ToFloat(r["views"]),
			Likes:        util.ToFloat(r["likes"]),
			Dislikes:     util.ToFloat(r["dislikes"]),
			Revenue:      util.ToFloat(revenue),
			Comments:     util.ToFloat(r["comments"]),
			WatchMinutes: util.ToFloat(r["estimatedMinutesWatched"]),
		})
	}
	return out
}

func decodeComments(rows []map[string]interface{}) []model.Comment {
	out := make([]model.Comment, 0, len(rows))
	for i, r := range rows {
		id := toString(r["id"])
		if id == "" {
			id = fmt.Sprintf("c-%d", i)
		}
		out = append(out, model.Comment{
			ID:         id,
			Author:     toString(r["author"]),
			Text:       toString(r["text"]),
			Date:       toString(r["date"]),
			Likes:      util.ToFloat(r["likes"]),
			VideoTitle: firstString(r, "videoTitle", "video_title"),
		})
	}
	return out
}

// decodeInsights never fails: unreadable insight blocks are dropped.
func decodeInsights(frag json.RawMessage) *model.Insights {
	if len(frag) == 0 || isNull(frag) {
		return nil
	}
	var in model.Insights
	if err := json.Unmarshal(frag, &in); err != nil {
		slog.Warn("ignoring unreadable ai_insights", "error", err)
		return nil
	}
	if in.CurrentAnalysis == nil && in.FutureStrategy == nil {
		return nil
	}
	return &in
}

// ─── Predictions ──────────────────────────────────────────────────────────────

type rawPredictions struct {
	LastUpdated string                              `json:"last_updated"`
	Dates       []interface{}                       `json:"dates"`
	Predictions map[string]map[string][]interface{} `json:"predictions"`
}

// DecodePredictions reads a prediction_data.json document.
func DecodePredictions(r io.Reader) (*model.PredictionSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading predictions: %w", err)
	}
	return DecodePredictionBytes(data)
}

// DecodePredictionBytes parses a prediction document. Null forecast
// values read as 0; null model or metric entries are dropped.
func DecodePredictionBytes(data []byte) (*model.PredictionSet, error) {
	var raw rawPredictions
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding predictions: %w", err)
	}
	ps := &model.PredictionSet{
		LastUpdated: raw.LastUpdated,
		Dates:       toLabels(raw.Dates),
		Predictions: make(map[string]map[string][]float64, len(raw.Predictions)),
	}
	for name, metrics := range raw.Predictions {
		if metrics == nil {
			continue
		}
		byMetric := make(map[string][]float64, len(metrics))
		for key, vals := range metrics {
			if vals == nil {
				continue
			}
			byMetric[key] = toFloats(vals)
		}
		ps.Predictions[name] = byMetric
	}
	return ps, nil
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := toString(m[k]); s != "" {
			return s
		}
	}
	return ""
}
