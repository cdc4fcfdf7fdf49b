package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/derickschaefer/tubestats/internal/model"
)

const dashboardJSON = `{"trends": {"daily": {"dates": ["2024-01-01"], "views": [5]}}}`

func testClient(dash, pred string) *Client {
	c := NewClient(Options{
		DashboardURL:  dash,
		PredictionURL: pred,
		Timeout:       2 * time.Second,
		Rate:          1000,
		Backoff:       time.Millisecond,
	})
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func TestFetchDashboardHTTP(t *testing.T) {
	var gotT, gotAccept, gotKeep string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotT = r.URL.Query().Get("t")
		gotKeep = r.URL.Query().Get("channel")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(dashboardJSON))
	}))
	defer srv.Close()

	c := testClient(srv.URL+"/dashboard_data.json?channel=me", "")
	p, err := c.FetchDashboard(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Series(model.Daily).Views; len(got) != 1 || got[0] != 5 {
		t.Errorf("unexpected views %v", got)
	}
	if gotT != "1700000000000" {
		t.Errorf("cache-busting param: got %q", gotT)
	}
	if gotKeep != "me" {
		t.Errorf("existing query params must be kept, got %q", gotKeep)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept header: got %q", gotAccept)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(dashboardJSON))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	if _, err := c.FetchDashboardRaw(context.Background()); err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("expected 3 calls, got %d", n)
	}
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	if _, err := c.FetchDashboardRaw(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != maxRetries {
		t.Errorf("expected %d calls, got %d", maxRetries, n)
	}
}

func TestFetchNoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	if _, err := c.FetchDashboardRaw(context.Background()); err == nil {
		t.Fatal("expected error for 404")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	for i := 0; i < 5; i++ {
		_, _ = c.FetchDashboardRaw(context.Background())
	}
	if got := c.BreakerState(SourceDashboard); got != "open" {
		t.Fatalf("expected open breaker, got %s", got)
	}
	srv.Close()
	if _, err := c.FetchDashboardRaw(context.Background()); err == nil {
		t.Error("expected rejection while open")
	}
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	for i := 0; i < 8; i++ {
		_, err := c.FetchDashboardRaw(context.Background())
		var se *StatusError
		if !errors.As(err, &se) || se.Code != http.StatusNotFound {
			t.Fatalf("fetch %d: expected 404 status error, got %v", i, err)
		}
	}
	if got := c.BreakerState(SourceDashboard); got != "closed" {
		t.Errorf("expected closed breaker after 404s, got %s", got)
	}
}

func TestFailingForecastDoesNotBlockDashboard(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dashboard_data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(dashboardJSON))
	})
	mux.HandleFunc("/prediction_data.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL+"/dashboard_data.json", srv.URL+"/prediction_data.json")
	for i := 0; i < 5; i++ {
		if _, err := c.FetchPredictionsRaw(context.Background()); err == nil {
			t.Fatal("expected forecast fetch to fail")
		}
	}
	if got := c.BreakerState(SourcePredictions); got != "open" {
		t.Fatalf("expected forecast breaker open, got %s", got)
	}
	if got := c.BreakerState(SourceDashboard); got != "closed" {
		t.Errorf("expected dashboard breaker closed, got %s", got)
	}
	if _, err := c.FetchDashboard(context.Background()); err != nil {
		t.Errorf("dashboard fetch blocked by forecast failures: %v", err)
	}
}

func TestMissingForecastDoesNotBlockDashboard(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dashboard_data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(dashboardJSON))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL+"/dashboard_data.json", srv.URL+"/prediction_data.json")
	for i := 0; i < 5; i++ {
		_, _ = c.FetchPredictionsRaw(context.Background())
	}
	if _, err := c.FetchDashboard(context.Background()); err != nil {
		t.Errorf("dashboard fetch failed after forecast 404s: %v", err)
	}
}

func TestFetchFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dashboard_data.json")
	if err := os.WriteFile(path, []byte(dashboardJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, loc := range []string{path, "file://" + path} {
		c := testClient(loc, "")
		if _, err := c.FetchDashboard(context.Background()); err != nil {
			t.Errorf("%s: %v", loc, err)
		}
	}
}

func TestFetchPredictionsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prediction_data.json")
	body := `{"dates": ["2024-01-02"], "predictions": {"ma": {"view_count": [3]}}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	c := testClient("", path)
	ps, err := c.FetchPredictions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := ps.Values("ma", model.MetricViews); !ok || v[0] != 3 {
		t.Errorf("unexpected predictions %v", ps.Predictions)
	}
}

func TestFetchNotConfigured(t *testing.T) {
	c := testClient("", "")
	_, err := c.FetchPredictions(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestFetchMissingFile(t *testing.T) {
	c := testClient(filepath.Join(t.TempDir(), "nope.json"), "")
	if _, err := c.FetchDashboard(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFetchUnsupportedScheme(t *testing.T) {
	c := testClient("ftp://example.com/x.json", "")
	if _, err := c.FetchDashboardRaw(context.Background()); err == nil {
		t.Error("expected error for ftp scheme")
	}
}

func TestFetchContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := testClient(srv.URL, "")
	if _, err := c.FetchDashboardRaw(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
