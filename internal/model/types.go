// Package model defines the canonical data types used throughout tubestats.
// Raw payloads from either schema generation are normalized into these
// types by the ingest package; everything downstream works on them only.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ─── Granularity ──────────────────────────────────────────────────────────────

// Granularity is the aggregation period of a trend series.
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// Granularities lists every supported granularity in display order.
var Granularities = []Granularity{Daily, Weekly, Monthly}

// ParseGranularity accepts "daily", "Daily", "d" and so on.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day", "d":
		return Daily, nil
	case "weekly", "week", "w":
		return Weekly, nil
	case "monthly", "month", "m":
		return Monthly, nil
	}
	return "", fmt.Errorf("%w: %q (use daily, weekly or monthly)", ErrUnknownGranularity, s)
}

// ─── Metric ───────────────────────────────────────────────────────────────────

// Metric names one numeric field of a ChartPoint.
type Metric string

const (
	MetricViews       Metric = "views"
	MetricSubscribers Metric = "subscribers"
	MetricRevenue     Metric = "revenue"
	MetricLikes       Metric = "likes"
	MetricDislikes    Metric = "dislikes"
	MetricWatchTime   Metric = "watchTime"
)

// Metrics lists every chartable metric.
var Metrics = []Metric{MetricViews, MetricSubscribers, MetricRevenue, MetricLikes, MetricDislikes, MetricWatchTime}

// predictionKeys maps chart metrics to the metric keys used in
// prediction_data.json.
var predictionKeys = map[Metric]string{
	MetricViews:       "view_count",
	MetricSubscribers: "subscriber_count",
	MetricRevenue:     "revenue",
	MetricWatchTime:   "watch_time",
	MetricLikes:       "likes",
	MetricDislikes:    "dislikes",
}

// PredictionKey returns the prediction file key for m.
func (m Metric) PredictionKey() string {
	if k, ok := predictionKeys[m]; ok {
		return k
	}
	return string(m)
}

// ParseMetric accepts the canonical names plus a few CLI-friendly aliases.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "views", "view_count":
		return MetricViews, nil
	case "subscribers", "subs", "subscriber_count":
		return MetricSubscribers, nil
	case "revenue":
		return MetricRevenue, nil
	case "likes":
		return MetricLikes, nil
	case "dislikes":
		return MetricDislikes, nil
	case "watchtime", "watch_time", "watch-time":
		return MetricWatchTime, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// ─── Canonical Payload ────────────────────────────────────────────────────────

// Generation identifies which field-naming convention a value came from.
// The dashboard export uses dates/subscribers/revenue; rows written from
// the Analytics API use day/subscribersGained/estimatedRevenue.
type Generation int

const (
	GenUnknown   Generation = iota
	GenDashboard            // dates, subscribers, revenue, averageViewDuration
	GenAnalytics            // day, subscribersGained, estimatedRevenue, estimatedMinutesWatched
	GenDerived              // computed from other columns
)

func (g Generation) String() string {
	switch g {
	case GenDashboard:
		return "dashboard"
	case GenAnalytics:
		return "analytics"
	case GenDerived:
		return "derived"
	}
	return "unknown"
}

// TrendSeries is one granularity's worth of parallel per-period columns,
// already resolved to canonical names. Columns may be shorter than Dates;
// use At to read them.
type TrendSeries struct {
	Dates        []string  `json:"dates"`
	Views        []float64 `json:"views"`
	Subscribers  []float64 `json:"subscribers"`
	Revenue      []float64 `json:"revenue"`
	WatchMinutes []float64 `json:"watch_minutes"`
	Likes        []float64 `json:"likes"`
	Dislikes     []float64 `json:"dislikes"`
	Comments     []float64 `json:"comments"`
	Shares       []float64 `json:"shares"`

	// Sources records which generation each field resolved from.
	Sources map[string]Generation `json:"-"`
	// Raw keeps the original fragment for diagnostics.
	Raw []byte `json:"-"`
}

// HasDates reports whether a date axis was resolved.
func (t *TrendSeries) HasDates() bool {
	return t != nil && t.Dates != nil
}

// At returns col[i], or 0 when i is out of range.
func At(col []float64, i int) float64 {
	if i < 0 || i >= len(col) {
		return 0
	}
	return col[i]
}

// Summary is the channel-level snapshot block.
type Summary struct {
	ChannelName          string  `json:"channel_name,omitempty"`
	ProfileImage         string  `json:"profile_image,omitempty"`
	TotalViews30d        float64 `json:"total_views_30d"`
	EstimatedRevenue30d  float64 `json:"estimated_revenue_30d"`
	SubsGained30d        float64 `json:"subs_gained_30d"`
	WatchTimeHours30d    float64 `json:"total_watch_time_hours_30d"`
	Likes30d             float64 `json:"likes_30d"`
	AvgEngagementRate30d float64 `json:"avg_engagement_rate_30d"`
	LastUpdated          string  `json:"last_updated,omitempty"`
}

// Video is one top-video entry with fallbacks already applied.
type Video struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Thumbnail    string  `json:"thumbnail"`
	Views        float64 `json:"views"`
	Likes        float64 `json:"likes"`
	Dislikes     float64 `json:"dislikes"`
	Revenue      float64 `json:"revenue"`
	Comments     float64 `json:"comments"`
	WatchMinutes float64 `json:"watch_minutes"`
}

// Comment is one viewer comment.
type Comment struct {
	ID         string  `json:"id"`
	Author     string  `json:"author"`
	Text       string  `json:"text"`
	Date       string  `json:"date"`
	Likes      float64 `json:"likes"`
	VideoTitle string  `json:"videoTitle"`
}

// InsightItem is a titled block of insight text.
type InsightItem struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CurrentAnalysis is the "current analysis" insight block.
type CurrentAnalysis struct {
	Strengths      InsightItem `json:"strengths"`
	Improvements   InsightItem `json:"improvements"`
	ActionPlan     InsightItem `json:"action_plan"`
	DetailedReport string      `json:"detailed_report,omitempty"`
}

// FutureStrategy is the "future strategy" insight block.
type FutureStrategy struct {
	GrowthTrend    InsightItem `json:"growth_trend"`
	RiskFactor     InsightItem `json:"risk_factor"`
	ActionStrategy InsightItem `json:"action_strategy"`
	DetailedReport string      `json:"detailed_report,omitempty"`
}

// Insights holds the optional pre-written insight text.
type Insights struct {
	CurrentAnalysis *CurrentAnalysis `json:"current_analysis,omitempty"`
	FutureStrategy  *FutureStrategy  `json:"future_strategy,omitempty"`
}

// Table is a generic header/rows block (demographics, traffic sources).
type Table struct {
	Headers []string        `json:"headers"`
	Rows    [][]interface{} `json:"rows"`
}

// Payload is the canonical form of dashboard_data.json.
type Payload struct {
	Summary        Summary                      `json:"summary"`
	Trends         map[Granularity]*TrendSeries `json:"trends"`
	TopVideos      []Video                      `json:"top_videos"`
	Comments       []Comment                    `json:"comments"`
	Insights       *Insights                    `json:"ai_insights,omitempty"`
	Demographics   map[string]Table             `json:"demographics,omitempty"`
	TrafficSources []map[string]interface{}     `json:"traffic_sources,omitempty"`
}

// Series returns the trend series for g, or nil.
func (p *Payload) Series(g Granularity) *TrendSeries {
	if p == nil || p.Trends == nil {
		return nil
	}
	return p.Trends[g]
}

// PredictionSet is the canonical form of prediction_data.json.
// Predictions is keyed by model name, then by prediction metric key.
type PredictionSet struct {
	LastUpdated string                          `json:"last_updated,omitempty"`
	Dates       []string                        `json:"dates"`
	Predictions map[string]map[string][]float64 `json:"predictions"`
}

// Values returns the forecast column for model and metric, if present.
// An empty column counts as absent.
func (p *PredictionSet) Values(modelName string, m Metric) ([]float64, bool) {
	if p == nil || p.Predictions == nil {
		return nil, false
	}
	byMetric, ok := p.Predictions[modelName]
	if !ok || byMetric == nil {
		return nil, false
	}
	vals, ok := byMetric[m.PredictionKey()]
	if !ok || len(vals) == 0 {
		return nil, false
	}
	return vals, true
}

// Models returns the model names present in the set.
func (p *PredictionSet) Models() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.Predictions))
	for k := range p.Predictions {
		out = append(out, k)
	}
	return out
}

// ─── Derived Types ────────────────────────────────────────────────────────────

// DerivedStats are the scalar card values for one granularity.
type DerivedStats struct {
	SubscriberCount   float64 `json:"subscriberCount"`
	ViewCount         float64 `json:"viewCount"`
	VideoCount        int     `json:"videoCount"`
	WatchTimeHours    float64 `json:"watchTimeHours"`
	AvgEngagementRate float64 `json:"avgEngagementRate"`
	Revenue           float64 `json:"revenue"`
	Likes             float64 `json:"likes"`
	ProfileImage      string  `json:"profileImage,omitempty"`
	LastUpdated       string  `json:"lastUpdated,omitempty"`
}

// ChartPoint is one period of normalized metrics.
type ChartPoint struct {
	Label       string  `json:"name"`
	Views       float64 `json:"views"`
	Subscribers float64 `json:"subscribers"`
	Revenue     float64 `json:"revenue"`
	Likes       float64 `json:"likes"`
	Dislikes    float64 `json:"dislikes"`
	WatchTime   float64 `json:"watchTime"`
}

// Get returns the value of metric m.
func (c ChartPoint) Get(m Metric) float64 {
	switch m {
	case MetricViews:
		return c.Views
	case MetricSubscribers:
		return c.Subscribers
	case MetricRevenue:
		return c.Revenue
	case MetricLikes:
		return c.Likes
	case MetricDislikes:
		return c.Dislikes
	case MetricWatchTime:
		return c.WatchTime
	}
	return 0
}

// With returns a copy of c with metric m set to v.
func (c ChartPoint) With(m Metric, v float64) ChartPoint {
	switch m {
	case MetricViews:
		c.Views = v
	case MetricSubscribers:
		c.Subscribers = v
	case MetricRevenue:
		c.Revenue = v
	case MetricLikes:
		c.Likes = v
	case MetricDislikes:
		c.Dislikes = v
	case MetricWatchTime:
		c.WatchTime = v
	}
	return c
}

// ForecastPoint is one point of a history+forecast chart. Exactly one of
// History and Forecast is set, except on the bridge point.
type ForecastPoint struct {
	Label    string   `json:"name"`
	History  *float64 `json:"history,omitempty"`
	Forecast *float64 `json:"forecast,omitempty"`
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries timing and size metadata for a command result.
type ResultStats struct {
	DurationMs int64  `json:"duration_ms"`
	Items      int    `json:"items"`
	Source     string `json:"source,omitempty"` // "live", "archive" or "stdin"
}

// Result is the uniform envelope returned by every command.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindStats    = "stats"
	KindChart    = "chart"
	KindForecast = "forecast"
	KindVideos   = "videos"
	KindComments = "comments"
	KindInsights = "insights"
	KindSnapshot = "snapshot"
	KindTable    = "table"
)
