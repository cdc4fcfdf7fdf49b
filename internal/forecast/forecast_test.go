package forecast_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/tubestats/internal/forecast"
	"github.com/derickschaefer/tubestats/internal/model"
)

func linear(n int, slope, intercept float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = slope*float64(i) + intercept
	}
	return out
}

func TestMovingAverage(t *testing.T) {
	vals := []float64{100, 1, 2, 3, 4, 5, 6, 7}
	out := forecast.MovingAverage(vals, 7, 3)
	assert.Equal(t, []float64{4, 4, 4}, out)

	assert.Nil(t, forecast.MovingAverage(vals[:6], 7, 3))
}

func TestWeightedTrendExactLine(t *testing.T) {
	vals := linear(40, 2, 10)
	out := forecast.WeightedTrend(vals, 30, 2)
	require.Len(t, out, 2)
	// the window starts at index 10, so x=30 in window terms is index 40
	assert.InDelta(t, 90, out[0], 1e-9)
	assert.InDelta(t, 92, out[1], 1e-9)

	assert.Nil(t, forecast.WeightedTrend(vals[:10], 30, 2))
}

func TestWeightedTrendFavoursRecent(t *testing.T) {
	vals := make([]float64, 30)
	for i := 20; i < 30; i++ {
		vals[i] = float64(i - 19)
	}
	out := forecast.WeightedTrend(vals, 30, 1)
	assert.Greater(t, out[0], 0.0)
}

func TestTheilSen(t *testing.T) {
	out := forecast.TheilSen([]float64{1, 2, 3, 4}, 2)
	require.Len(t, out, 2)
	assert.InDelta(t, 5, out[0], 1e-9)
	assert.InDelta(t, 6, out[1], 1e-9)

	assert.Nil(t, forecast.TheilSen([]float64{1}, 2))
}

func history(n int) []model.ChartPoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.ChartPoint, n)
	for i := range out {
		out[i] = model.ChartPoint{
			Label:     start.AddDate(0, 0, i).Format("2006-01-02"),
			Views:     float64(100 + i),
			Revenue:   1.234,
			Likes:     float64(10 - i),
			WatchTime: 2.5,
		}
	}
	return out
}

func TestGenerate(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	ps, err := forecast.Generate(history(35), 5, now)
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01T08:00:00Z", ps.LastUpdated)
	require.Len(t, ps.Dates, 5)
	assert.Equal(t, "2024-02-05", ps.Dates[0])
	assert.Equal(t, "2024-02-09", ps.Dates[4])
	assert.ElementsMatch(t, forecast.Models, ps.Models())

	for _, name := range forecast.Models {
		for _, m := range model.Metrics {
			v, ok := ps.Values(name, m)
			require.True(t, ok, "%s/%s", name, m)
			assert.Len(t, v, 5, "%s/%s", name, m)
		}
	}

	ma, _ := ps.Values(forecast.ModelMovingAverage, model.MetricRevenue)
	assert.Equal(t, 1.23, ma[0])

	// likes decline below zero and are clamped
	ts, _ := ps.Values(forecast.ModelTheilSen, model.MetricLikes)
	for _, v := range ts {
		assert.GreaterOrEqual(t, v, 0.0)
	}

	views, _ := ps.Values(forecast.ModelTheilSen, model.MetricViews)
	assert.Equal(t, 135.0, views[0])
}

func TestGenerateShortHistoryOmitsModel(t *testing.T) {
	ps, err := forecast.Generate(history(10), 3, time.Now())
	require.NoError(t, err)

	_, ok := ps.Values(forecast.ModelWeightedTrend, model.MetricViews)
	assert.False(t, ok)
	assert.NotContains(t, ps.Models(), forecast.ModelWeightedTrend)

	v, ok := ps.Values(forecast.ModelMovingAverage, model.MetricViews)
	require.True(t, ok)
	assert.Len(t, v, 3)
}

func TestGenerateDefaultsHorizon(t *testing.T) {
	ps, err := forecast.Generate(history(8), 0, time.Now())
	require.NoError(t, err)
	assert.Len(t, ps.Dates, forecast.DefaultHorizon)
}

func TestGenerateErrors(t *testing.T) {
	_, err := forecast.Generate(nil, 5, time.Now())
	assert.Error(t, err)

	_, err = forecast.Generate([]model.ChartPoint{{Label: "week 1"}}, 5, time.Now())
	assert.Error(t, err)
}
