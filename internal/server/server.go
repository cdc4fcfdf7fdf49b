// Package server exposes the published dashboard over HTTP.
//
// Every data route reads the current snapshot once and derives its
// response from it, so a refresh that publishes mid-request never mixes
// two payloads in one response.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/derickschaefer/tubestats/internal/metrics"
	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/view"
)

// DefaultLimit is the page size for videos and comments when the request
// does not name one.
const DefaultLimit = 10

// Refresher triggers an out-of-band refresh cycle. *refresh.Refresher
// implements it.
type Refresher interface {
	Run(ctx context.Context) (string, error)
}

// Options configures a Server.
type Options struct {
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
	// RequestsPerMinute per client IP; 0 disables rate limiting.
	RequestsPerMinute int
	// Refresher enables POST /api/refresh when set.
	Refresher Refresher
}

// Server serves one view.State.
type Server struct {
	state *view.State
	opts  Options
}

// New creates a Server reading from st.
func New(st *view.State, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{state: st, opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(countRequests)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.opts.RequestsPerMinute > 0 {
			r.Use(httprate.LimitByIP(s.opts.RequestsPerMinute, time.Minute))
		}
		r.Get("/dashboard", s.dashboard)
		r.Get("/stats", s.stats)
		r.Get("/chart", s.chart)
		r.Get("/forecast", s.forecast)
		r.Get("/videos", s.videos)
		r.Get("/comments", s.comments)
		r.Get("/insights", s.insights)
		if s.opts.Refresher != nil {
			r.Post("/refresh", s.refresh)
		}
	})
	return r
}

// ─── Responses ────────────────────────────────────────────────────────────────

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type response struct {
	Status    string      `json:"status"`
	Seq       uint64      `json:"seq,omitempty"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     *apiError   `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code string, err error) {
	if status >= http.StatusInternalServerError {
		slog.Warn("api error", "code", code, "error", err)
	}
	respondJSON(w, status, response{Status: "error", Error: &apiError{Code: code, Message: err.Error()}})
}

// respondData wraps data with the sequence and fetch time of the snapshot
// it was derived from.
func respondData(w http.ResponseWriter, snap *view.Snapshot, data interface{}) {
	at := snap.FetchedAt
	respondJSON(w, http.StatusOK, response{Status: "ok", Seq: snap.Seq, UpdatedAt: &at, Data: data})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrNoSnapshot):
		return http.StatusServiceUnavailable, "NO_SNAPSHOT"
	case errors.Is(err, model.ErrNoDateAxis):
		return http.StatusUnprocessableEntity, "NO_DATE_AXIS"
	case errors.Is(err, model.ErrUnknownGranularity), errors.Is(err, model.ErrUnknownMetric):
		return http.StatusBadRequest, "BAD_SELECTION"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func fail(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	respondError(w, status, code, err)
}

// ─── Request parsing ──────────────────────────────────────────────────────────

func parseSelection(r *http.Request) (view.Selection, error) {
	q := r.URL.Query()
	sel := view.DefaultSelection()
	if v := q.Get("granularity"); v != "" {
		g, err := model.ParseGranularity(v)
		if err != nil {
			return sel, err
		}
		sel.Granularity = g
	}
	if v := q.Get("metric"); v != "" {
		m, err := model.ParseMetric(v)
		if err != nil {
			return sel, err
		}
		sel.Metric = m
	}
	mode, err := view.ParseMode(q.Get("mode"))
	if err != nil {
		return sel, err
	}
	sel.Mode = mode
	sel.Model = q.Get("model")
	return sel, nil
}

func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	return n, nil
}

// build reads the current snapshot and derives the dashboard for the
// request's selection. It writes the error response itself.
func (s *Server) build(w http.ResponseWriter, r *http.Request) (*view.Snapshot, *view.Dashboard, bool) {
	sel, err := parseSelection(r)
	if err != nil {
		s.badSelection(w, err)
		return nil, nil, false
	}
	snap, err := s.state.Current()
	if err != nil {
		fail(w, err)
		return nil, nil, false
	}
	d, err := view.Build(snap.Payload, snap.Predictions, sel)
	if err != nil {
		fail(w, err)
		return nil, nil, false
	}
	return snap, d, true
}

func (s *Server) badSelection(w http.ResponseWriter, err error) {
	respondError(w, http.StatusBadRequest, "BAD_SELECTION", err)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"ready": s.state.Seq() > 0, "seq": s.state.Seq()}
	if at := s.state.UpdatedAt(); !at.IsZero() {
		body["updated_at"] = at
	}
	respondJSON(w, http.StatusOK, response{Status: "ok", Data: body})
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	if snap, d, ok := s.build(w, r); ok {
		respondData(w, snap, d)
	}
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	if snap, d, ok := s.build(w, r); ok {
		respondData(w, snap, d.Stats)
	}
}

func (s *Server) chart(w http.ResponseWriter, r *http.Request) {
	if snap, d, ok := s.build(w, r); ok {
		respondData(w, snap, map[string]interface{}{"selection": d.Selection, "points": d.Chart})
	}
}

func (s *Server) forecast(w http.ResponseWriter, r *http.Request) {
	if snap, d, ok := s.build(w, r); ok {
		respondData(w, snap, map[string]interface{}{
			"selection": d.Selection,
			"models":    d.Models,
			"points":    d.Forecast,
		})
	}
}

func (s *Server) videos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, err := view.ParseSort(q.Get("sort"), q.Get("dir"), false, view.DefaultVideoSort)
	if err != nil {
		s.badSelection(w, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		s.badSelection(w, err)
		return
	}
	snap, err := s.state.Current()
	if err != nil {
		fail(w, err)
		return
	}
	respondData(w, snap, view.TopVideos(snap.Payload.TopVideos, limit, sort))
}

func (s *Server) comments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, err := view.ParseSort(q.Get("sort"), q.Get("dir"), true, view.DefaultCommentSort)
	if err != nil {
		s.badSelection(w, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		s.badSelection(w, err)
		return
	}
	snap, err := s.state.Current()
	if err != nil {
		fail(w, err)
		return
	}
	respondData(w, snap, view.RecentComments(snap.Payload.Comments, limit, sort))
}

func (s *Server) insights(w http.ResponseWriter, r *http.Request) {
	snap, err := s.state.Current()
	if err != nil {
		fail(w, err)
		return
	}
	respondData(w, snap, snap.Payload.Insights)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.opts.Refresher.Run(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "REFRESH_FAILED", err)
		return
	}
	respondJSON(w, http.StatusOK, response{
		Status: "ok",
		Seq:    s.state.Seq(),
		Data:   map[string]string{"outcome": outcome},
	})
}

// ─── Middleware ───────────────────────────────────────────────────────────────

// countRequests records every response under its route pattern.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
