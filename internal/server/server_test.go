package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/tubestats/internal/ingest"
	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/view"
)

const payload = `{
  "summary": {"likes_30d": 4, "profile_image": "p.png"},
  "trends": {
    "daily": {
      "dates": ["2024-01-01", "2024-01-02", "2024-01-03"],
      "views": [100, 100, 100],
      "subscribers": [1, 1, 1],
      "revenue": [0.4, 0.4, 0.4],
      "estimatedMinutesWatched": [60, 60, 60],
      "likes": [2, 1, 1]
    },
    "weekly": {"views": [5]}
  },
  "top_videos": [
    {"video": "a", "title": "A", "views": 5},
    {"video": "b", "title": "B", "views": 50},
    {"video": "c", "title": "C", "views": 20}
  ],
  "comments": [
    {"id": "1", "date": "2024-01-01"},
    {"id": "2", "date": "2024-01-03"},
    {"id": "3", "date": "2024-01-02"}
  ],
  "ai_insights": {"current_analysis": {"strengths": {"title": "S", "content": "good"}}}
}`

type envelope struct {
	Status string          `json:"status"`
	Seq    uint64          `json:"seq"`
	Data   json.RawMessage `json:"data"`
	Error  *apiError       `json:"error"`
}

func published(t *testing.T) *view.State {
	t.Helper()
	p, err := ingest.DecodeBytes([]byte(payload))
	require.NoError(t, err)
	st := view.NewState()
	require.True(t, st.Publish(&view.Snapshot{
		Seq:     3,
		Payload: p,
		Predictions: &model.PredictionSet{
			Dates:       []string{"2024-01-04", "2024-01-05"},
			Predictions: map[string]map[string][]float64{"ma": {"view_count": {110, 120}}},
		},
		FetchedAt: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
	}))
	return st
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestStatsEndpoint(t *testing.T) {
	h := New(published(t), Options{}).Handler()
	rec, env := get(t, h, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(3), env.Seq)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var stats model.DerivedStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 300.0, stats.ViewCount)
	assert.Equal(t, 3.0, stats.SubscriberCount)
	assert.InDelta(t, 1.2, stats.Revenue, 1e-9)
	assert.Equal(t, 3.0, stats.WatchTimeHours)
	assert.Equal(t, 3, stats.VideoCount)
	assert.Equal(t, 4.0, stats.Likes)
}

func TestChartCumulative(t *testing.T) {
	h := New(published(t), Options{}).Handler()
	rec, env := get(t, h, "/api/chart?metric=views&mode=cumulative")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Points []model.ChartPoint `json:"points"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.Len(t, body.Points, 3)
	assert.Equal(t, 300.0, body.Points[2].Views)
	assert.Equal(t, 1.0, body.Points[2].Subscribers)
}

func TestForecastBridge(t *testing.T) {
	h := New(published(t), Options{}).Handler()
	_, env := get(t, h, "/api/forecast")

	var body struct {
		Models []string              `json:"models"`
		Points []model.ForecastPoint `json:"points"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, []string{"ma"}, body.Models)
	// 3 history, bridge, 2 forecast
	require.Len(t, body.Points, 6)
	bridge := body.Points[3]
	require.NotNil(t, bridge.Forecast)
	assert.Equal(t, 100.0, *bridge.Forecast)
	assert.Equal(t, 120.0, *body.Points[5].Forecast)
}

func TestVideosAndComments(t *testing.T) {
	h := New(published(t), Options{}).Handler()

	_, env := get(t, h, "/api/videos?limit=2&sort=views&dir=asc")
	var vids []model.Video
	require.NoError(t, json.Unmarshal(env.Data, &vids))
	require.Len(t, vids, 2)
	assert.Equal(t, "a", vids[0].ID)
	assert.Equal(t, "b", vids[1].ID)

	_, env = get(t, h, "/api/comments?limit=2")
	var comments []model.Comment
	require.NoError(t, json.Unmarshal(env.Data, &comments))
	require.Len(t, comments, 2)
	assert.Equal(t, "2", comments[0].ID)
	assert.Equal(t, "3", comments[1].ID)
}

func TestInsights(t *testing.T) {
	h := New(published(t), Options{}).Handler()
	_, env := get(t, h, "/api/insights")
	var ins model.Insights
	require.NoError(t, json.Unmarshal(env.Data, &ins))
	require.NotNil(t, ins.CurrentAnalysis)
	assert.Equal(t, "good", ins.CurrentAnalysis.Strengths.Content)
}

func TestErrorStatuses(t *testing.T) {
	h := New(published(t), Options{}).Handler()
	tests := []struct {
		target string
		status int
		code   string
	}{
		{"/api/stats?granularity=hourly", http.StatusBadRequest, "BAD_SELECTION"},
		{"/api/chart?metric=nope", http.StatusBadRequest, "BAD_SELECTION"},
		{"/api/chart?mode=sideways", http.StatusBadRequest, "BAD_SELECTION"},
		{"/api/videos?sort=colour", http.StatusBadRequest, "BAD_SELECTION"},
		{"/api/comments?limit=-1", http.StatusBadRequest, "BAD_SELECTION"},
		{"/api/stats?granularity=monthly", http.StatusBadRequest, "BAD_SELECTION"},
		{"/api/stats?granularity=weekly", http.StatusUnprocessableEntity, "NO_DATE_AXIS"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec, env := get(t, h, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestNoSnapshotIs503(t *testing.T) {
	h := New(view.NewState(), Options{}).Handler()
	for _, target := range []string{"/api/dashboard", "/api/videos", "/api/insights"} {
		rec, env := get(t, h, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
		assert.Equal(t, "NO_SNAPSHOT", env.Error.Code)
	}

	rec, env := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"ready":false`)
}

func TestMetricsEndpoint(t *testing.T) {
	h := New(published(t), Options{}).Handler()
	get(t, h, "/api/stats")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tubestats_http_requests_total{route="/api/stats",status="200"}`)
}

func TestCORSPreflight(t *testing.T) {
	h := New(published(t), Options{AllowedOrigins: []string{"https://dash.example"}}).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/api/stats", nil)
	req.Header.Set("Origin", "https://dash.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

type fakeRefresher struct {
	outcome string
	err     error
}

func (f fakeRefresher) Run(context.Context) (string, error) { return f.outcome, f.err }

func TestRefreshEndpoint(t *testing.T) {
	h := New(published(t), Options{Refresher: fakeRefresher{outcome: "published"}}).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"outcome":"published"`))

	h = New(published(t), Options{Refresher: fakeRefresher{err: errors.New("down")}}).Handler()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	h = New(published(t), Options{}).Handler()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "refresh is not routed without a refresher")
}
