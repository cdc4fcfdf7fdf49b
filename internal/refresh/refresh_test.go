package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/tubestats/internal/source"
	"github.com/derickschaefer/tubestats/internal/store"
	"github.com/derickschaefer/tubestats/internal/view"
)

const (
	dashA = `{"trends": {"daily": {"dates": ["2024-01-01"], "views": [1]}}}`
	dashB = `{"trends": {"daily": {"dates": ["2024-01-01"], "views": [2]}}}`
	predA = `{"dates": ["2024-01-02"], "predictions": {"ma": {"view_count": [9]}}}`
)

// ─── Fakes ────────────────────────────────────────────────────────────────────

type fakeFetcher struct {
	dash func(ctx context.Context) ([]byte, error)
	pred func(ctx context.Context) ([]byte, error)
}

func (f *fakeFetcher) FetchDashboardRaw(ctx context.Context) ([]byte, error) { return f.dash(ctx) }
func (f *fakeFetcher) FetchPredictionsRaw(ctx context.Context) ([]byte, error) {
	if f.pred == nil {
		return nil, source.ErrNotConfigured
	}
	return f.pred(ctx)
}

func body(s string) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) { return []byte(s), nil }
}

func fail(err error) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) { return nil, err }
}

type memArchive struct {
	mu    sync.Mutex
	dash  [][]byte
	preds [][]byte
	at    time.Time
}

func (m *memArchive) PutPayload(at time.Time, b []byte) (store.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dash = append(m.dash, b)
	m.at = at
	return store.Entry{Key: store.Key(at), FetchedAt: at, Bytes: len(b)}, nil
}

func (m *memArchive) PutPredictions(at time.Time, b []byte) (store.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preds = append(m.preds, b)
	return store.Entry{Key: store.Key(at), FetchedAt: at, Bytes: len(b)}, nil
}

func (m *memArchive) LatestPayload() (store.Entry, []byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.dash) == 0 {
		return store.Entry{}, nil, false, nil
	}
	return store.Entry{Key: store.Key(m.at), FetchedAt: m.at}, m.dash[len(m.dash)-1], true, nil
}

func (m *memArchive) LatestPredictions() (store.Entry, []byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.preds) == 0 {
		return store.Entry{}, nil, false, nil
	}
	return store.Entry{}, m.preds[len(m.preds)-1], true, nil
}

func views(t *testing.T, st *view.State) float64 {
	t.Helper()
	cur, err := st.Current()
	require.NoError(t, err)
	return cur.Payload.Series("daily").Views[0]
}

// ─── Run ──────────────────────────────────────────────────────────────────────

func TestRunPublishesAndArchives(t *testing.T) {
	arch := &memArchive{}
	r := New(&fakeFetcher{dash: body(dashA), pred: body(predA)}, view.NewState(), arch)

	outcome, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, outcome)

	cur, err := r.State().Current()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cur.Seq)
	require.NotNil(t, cur.Predictions)
	assert.Equal(t, []string{"ma"}, cur.Predictions.Models())
	assert.Len(t, arch.dash, 1)
	assert.Len(t, arch.preds, 1)
}

func TestRunDashboardFailureKeepsPreviousSnapshot(t *testing.T) {
	f := &fakeFetcher{dash: body(dashA)}
	r := New(f, view.NewState(), nil)
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	boom := errors.New("boom")
	f.dash = fail(boom)
	outcome, err := r.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, OutcomeFetchError, outcome)
	assert.Equal(t, 1.0, views(t, r.State()))
}

func TestRunRejectsPayloadWithoutDateAxis(t *testing.T) {
	r := New(&fakeFetcher{dash: body(`{"trends": {"daily": {"views": [1]}}}`)}, view.NewState(), nil)
	outcome, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoUsableSeries)
	assert.Equal(t, OutcomeDecodeError, outcome)
	_, err = r.State().Current()
	assert.Error(t, err)
}

func TestRunForecastFailureDoesNotBlockDashboard(t *testing.T) {
	f := &fakeFetcher{dash: body(dashA), pred: body(predA)}
	arch := &memArchive{}
	r := New(f, view.NewState(), arch)
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	f.dash = body(dashB)
	f.pred = fail(errors.New("forecast down"))
	outcome, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, outcome)

	cur, _ := r.State().Current()
	assert.Equal(t, 2.0, cur.Payload.Series("daily").Views[0])
	require.NotNil(t, cur.Predictions, "previous forecast is carried forward")
	assert.Len(t, arch.preds, 1, "stale forecast is not archived again")
}

func TestRunMalformedForecastIsIgnored(t *testing.T) {
	r := New(&fakeFetcher{dash: body(dashA), pred: body(`not json`)}, view.NewState(), nil)
	outcome, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, outcome)
	cur, _ := r.State().Current()
	assert.Nil(t, cur.Predictions)
}

func TestRunFallsBackToArchivedForecast(t *testing.T) {
	arch := &memArchive{}
	arch.PutPredictions(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), []byte(predA))
	r := New(&fakeFetcher{dash: body(dashA)}, view.NewState(), arch)

	outcome, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, outcome)

	cur, err := r.State().Current()
	require.NoError(t, err)
	require.NotNil(t, cur.Predictions)
	assert.Equal(t, []string{"ma"}, cur.Predictions.Models())
	assert.Len(t, arch.preds, 1, "archived forecast is not archived again")
}

func TestRunIgnoresUnreadableArchivedForecast(t *testing.T) {
	arch := &memArchive{}
	arch.PutPredictions(time.Now(), []byte(`not json`))
	r := New(&fakeFetcher{dash: body(dashA), pred: fail(errors.New("forecast down"))}, view.NewState(), arch)

	outcome, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, outcome)
	cur, _ := r.State().Current()
	assert.Nil(t, cur.Predictions)
}

// An earlier-started cycle that finishes last must not overwrite the
// result of a later-started cycle.
func TestRunOutOfOrderCompletionDropsStale(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	f := &fakeFetcher{dash: func(ctx context.Context) ([]byte, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-release
			return []byte(dashA), nil
		}
		return []byte(dashB), nil
	}}
	r := New(f, view.NewState(), nil)

	slow := make(chan string)
	go func() {
		outcome, _ := r.Run(context.Background())
		slow <- outcome
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)

	outcome, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, outcome)

	close(release)
	assert.Equal(t, OutcomeStale, <-slow)
	assert.Equal(t, 2.0, views(t, r.State()))
	assert.Equal(t, uint64(2), r.State().Seq())
}

// ─── Seed ─────────────────────────────────────────────────────────────────────

func TestSeedFromArchive(t *testing.T) {
	arch := &memArchive{}
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	arch.PutPayload(at, []byte(dashB))
	arch.PutPredictions(at, []byte(predA))

	r := New(&fakeFetcher{dash: body(dashA)}, view.NewState(), arch)
	ok, err := r.Seed()
	require.NoError(t, err)
	require.True(t, ok)

	cur, _ := r.State().Current()
	assert.Equal(t, 2.0, cur.Payload.Series("daily").Views[0])
	assert.Equal(t, at, cur.FetchedAt)
	assert.NotNil(t, cur.Predictions)

	// a fetch after seeding takes a later sequence number and wins
	_, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, views(t, r.State()))
}

func TestSeedEmptyOrNoArchive(t *testing.T) {
	ok, err := New(&fakeFetcher{}, view.NewState(), nil).Seed()
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = New(&fakeFetcher{}, view.NewState(), &memArchive{}).Seed()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSeedWithRealStore(t *testing.T) {
	s, err := store.Open(t.TempDir() + "/seed.db")
	require.NoError(t, err)
	defer s.Close()

	r := New(&fakeFetcher{dash: body(dashA), pred: body(predA)}, view.NewState(), s)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	fresh := New(&fakeFetcher{}, view.NewState(), s)
	ok, err := fresh.Seed()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1.0, views(t, fresh.State()))
}

// ─── Scheduler ────────────────────────────────────────────────────────────────

func TestSchedulerRunsJobUntilStopped(t *testing.T) {
	var n int32
	s := NewScheduler(func(context.Context) error {
		atomic.AddInt32(&n, 1)
		return errors.New("logged, not fatal")
	}, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&n) >= 2 }, time.Second, time.Millisecond)
	s.Stop()
	s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(func(context.Context) error { return nil }, time.Hour)
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler ignored cancellation")
	}
}
