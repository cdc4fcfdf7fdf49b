// Package source fetches the dashboard and prediction files. HTTP(S)
// sources are context-aware, share one rate limiter, retry transient
// errors (429, 5xx) and sit behind one circuit breaker per source.
// Plain paths and file:// URLs are read from disk.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/derickschaefer/tubestats/internal/ingest"
	"github.com/derickschaefer/tubestats/internal/metrics"
	"github.com/derickschaefer/tubestats/internal/model"
)

const (
	maxRetries = 4
	// maxBody caps a single response; dashboards with years of daily
	// rows stay well under it.
	maxBody = 64 << 20

	SourceDashboard   = "dashboard"
	SourcePredictions = "predictions"
)

// ErrNotConfigured is returned when a location is empty.
var ErrNotConfigured = errors.New("source location not configured")

// StatusError is a non-200 HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Client fetches raw payloads.
type Client struct {
	dashboardURL  string
	predictionURL string
	httpClient    *http.Client
	limiter       *rate.Limiter
	mu            sync.Mutex
	breakers      map[string]*gobreaker.CircuitBreaker[[]byte]
	backoff       time.Duration
	now           func() time.Time
	debug         bool
}

// Options configures a Client.
type Options struct {
	DashboardURL  string
	PredictionURL string
	Timeout       time.Duration
	Rate          float64 // requests per second
	Debug         bool
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Rate <= 0 {
		opts.Rate = 2
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	burst := int(opts.Rate)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		dashboardURL:  opts.DashboardURL,
		predictionURL: opts.PredictionURL,
		httpClient:    &http.Client{Timeout: opts.Timeout},
		limiter:       rate.NewLimiter(rate.Limit(opts.Rate), burst),
		breakers:      make(map[string]*gobreaker.CircuitBreaker[[]byte]),
		backoff:       opts.Backoff,
		now:           time.Now,
		debug:         opts.Debug,
	}
}

// DashboardURL returns the configured dashboard location.
func (c *Client) DashboardURL() string { return c.dashboardURL }

// PredictionURL returns the configured prediction location.
func (c *Client) PredictionURL() string { return c.predictionURL }

// ─── Typed Fetches ────────────────────────────────────────────────────────────

// FetchDashboardRaw returns the undecoded dashboard bytes.
func (c *Client) FetchDashboardRaw(ctx context.Context) ([]byte, error) {
	return c.Fetch(ctx, SourceDashboard, c.dashboardURL)
}

// FetchPredictionsRaw returns the undecoded prediction bytes.
func (c *Client) FetchPredictionsRaw(ctx context.Context) ([]byte, error) {
	return c.Fetch(ctx, SourcePredictions, c.predictionURL)
}

// FetchDashboard fetches and decodes dashboard_data.json.
func (c *Client) FetchDashboard(ctx context.Context) (*model.Payload, error) {
	body, err := c.FetchDashboardRaw(ctx)
	if err != nil {
		return nil, err
	}
	p, err := ingest.DecodeBytes(body)
	if err != nil {
		return nil, fmt.Errorf("dashboard %s: %w", c.dashboardURL, err)
	}
	return p, nil
}

// FetchPredictions fetches and decodes prediction_data.json.
func (c *Client) FetchPredictions(ctx context.Context) (*model.PredictionSet, error) {
	body, err := c.FetchPredictionsRaw(ctx)
	if err != nil {
		return nil, err
	}
	ps, err := ingest.DecodePredictionBytes(body)
	if err != nil {
		return nil, fmt.Errorf("predictions %s: %w", c.predictionURL, err)
	}
	return ps, nil
}

// ─── Low-level ────────────────────────────────────────────────────────────────

// Fetch reads loc, which may be an http(s) URL, a file:// URL or a path.
func (c *Client) Fetch(ctx context.Context, name, loc string) ([]byte, error) {
	if loc == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrNotConfigured)
	}
	start := time.Now()
	body, err := c.fetch(ctx, name, loc)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.FetchDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return body, nil
}

func (c *Client) fetch(ctx context.Context, name, loc string) ([]byte, error) {
	u, err := url.Parse(loc)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// bare path, or a Windows drive letter
		return readFile(loc)
	}
	switch u.Scheme {
	case "file":
		return readFile(u.Path)
	case "http", "https":
		cb := c.breaker(name)
		body, err := cb.Execute(func() ([]byte, error) {
			return c.get(ctx, u)
		})
		recordBreaker(cb.Name(), err)
		return body, err
	}
	return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
}

func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return b, nil
}

// get performs a cache-busted GET, handling rate limiting and retries.
func (c *Client) get(ctx context.Context, u *url.URL) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := u.Query()
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	reqURL := *u
	reqURL.RawQuery = q.Encode()

	if c.debug {
		slog.Debug("source request", "url", reqURL.String())
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.backoff
			slog.Debug("retrying after backoff", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("User-Agent", "tubestats/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("http: %w", err)
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading body: %w", err)
			continue
		}

		if c.debug {
			slog.Debug("source response", "status", resp.StatusCode, "bytes", len(body))
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &StatusError{Code: resp.StatusCode, Body: snippet(body)}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{Code: resp.StatusCode, Body: snippet(body)}
		}
		return body, nil
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxRetries, lastErr)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "…"
	}
	return s
}

// ─── Circuit Breaker ──────────────────────────────────────────────────────────

// breaker returns the breaker for one source, creating it on first use.
// Sources never share a breaker, so a failing forecast feed cannot lock
// out the dashboard.
func (c *Client) breaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[name]
	if !ok {
		cb = newBreaker("source-" + name)
		c.breakers[name] = cb
	}
	return cb
}

// newBreaker opens after 5 consecutive failed fetches and probes again
// after one minute.
func newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:         name,
		MaxRequests:  1,
		Interval:     5 * time.Minute,
		Timeout:      time.Minute,
		IsSuccessful: breakerSuccess,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
}

// breakerSuccess treats client errors other than 429 as healthy: the
// server answered, the request was wrong.
func breakerSuccess(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
	}
	return err == nil
}

func recordBreaker(name string, err error) {
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}

// BreakerState reports the breaker state of one source as "closed",
// "half-open" or "open".
func (c *Client) BreakerState(name string) string {
	return c.breaker(name).State().String()
}
