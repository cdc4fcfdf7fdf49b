// Package refresh runs the fetch, decode and publish cycle. The dashboard
// and forecast fetches run concurrently and fail independently; a failed
// dashboard fetch keeps the previous snapshot, a failed forecast fetch
// keeps the previous forecast.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/derickschaefer/tubestats/internal/ingest"
	"github.com/derickschaefer/tubestats/internal/metrics"
	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/source"
	"github.com/derickschaefer/tubestats/internal/store"
	"github.com/derickschaefer/tubestats/internal/view"
)

// Fetcher returns raw file bodies. *source.Client implements it.
type Fetcher interface {
	FetchDashboardRaw(ctx context.Context) ([]byte, error)
	FetchPredictionsRaw(ctx context.Context) ([]byte, error)
}

// Archive persists raw bodies. *store.Store implements it.
type Archive interface {
	PutPayload(at time.Time, body []byte) (store.Entry, error)
	PutPredictions(at time.Time, body []byte) (store.Entry, error)
	LatestPayload() (store.Entry, []byte, bool, error)
	LatestPredictions() (store.Entry, []byte, bool, error)
}

// ErrNoUsableSeries means the payload decoded but no granularity has a
// date axis.
var ErrNoUsableSeries = errors.New("payload has no series with a date axis")

// Outcome of one cycle, also used as the metrics label.
const (
	OutcomePublished   = "published"
	OutcomeStale       = "stale"
	OutcomeFetchError  = "fetch_error"
	OutcomeDecodeError = "decode_error"
)

// Refresher owns the sequence counter. Every Run takes the next number
// when it starts and publishes only if no later-started Run has already
// published.
type Refresher struct {
	fetcher Fetcher
	state   *view.State
	archive Archive // may be nil
	seq     atomic.Uint64
	now     func() time.Time
}

// New creates a Refresher. archive may be nil.
func New(f Fetcher, st *view.State, archive Archive) *Refresher {
	return &Refresher{fetcher: f, state: st, archive: archive, now: time.Now}
}

// State returns the state the refresher publishes into.
func (r *Refresher) State() *view.State { return r.state }

// Run performs one refresh cycle and reports its outcome. A stale
// completion is not an error.
func (r *Refresher) Run(ctx context.Context) (string, error) {
	seq := r.seq.Add(1)
	log := slog.With("seq", seq)
	log.Debug("refresh starting")

	var (
		dashRaw, predRaw []byte
		dashErr, predErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dashRaw, dashErr = r.fetcher.FetchDashboardRaw(gctx)
		return nil // isolated; never cancels the forecast fetch
	})
	g.Go(func() error {
		predRaw, predErr = r.fetcher.FetchPredictionsRaw(gctx)
		return nil
	})
	_ = g.Wait()

	if dashErr != nil {
		log.Error("dashboard fetch failed; keeping previous snapshot", "error", dashErr)
		metrics.RefreshCycles.WithLabelValues(OutcomeFetchError).Inc()
		return OutcomeFetchError, dashErr
	}

	payload, err := decodeUsable(dashRaw)
	if err != nil {
		log.Error("dashboard payload rejected; keeping previous snapshot", "error", err)
		metrics.RefreshCycles.WithLabelValues(OutcomeDecodeError).Inc()
		return OutcomeDecodeError, err
	}

	preds, predFresh := r.predictions(log, predRaw, predErr)

	at := r.now()
	snap := &view.Snapshot{Seq: seq, Payload: payload, Predictions: preds, FetchedAt: at}
	if !r.state.Publish(snap) {
		log.Warn("dropping stale refresh result", "published_seq", r.state.Seq())
		metrics.StaleDrops.Inc()
		metrics.RefreshCycles.WithLabelValues(OutcomeStale).Inc()
		return OutcomeStale, nil
	}
	metrics.RefreshCycles.WithLabelValues(OutcomePublished).Inc()
	metrics.SnapshotSeq.Set(float64(seq))
	log.Info("snapshot published", "bytes", len(dashRaw), "forecast", preds != nil)

	r.persist(log, at, dashRaw, predRaw, predFresh)
	return OutcomePublished, nil
}

// predictions decodes a fresh prediction body, or falls back to the
// forecast of the current snapshot and then to the newest archived one.
func (r *Refresher) predictions(log *slog.Logger, raw []byte, fetchErr error) (*model.PredictionSet, bool) {
	if fetchErr == nil {
		ps, err := ingest.DecodePredictionBytes(raw)
		if err == nil {
			return ps, true
		}
		fetchErr = err
	}
	if errors.Is(fetchErr, source.ErrNotConfigured) {
		log.Debug("no prediction source configured")
	} else {
		log.Warn("forecast unavailable; continuing without fresh forecast", "error", fetchErr)
	}
	if cur, err := r.state.Current(); err == nil && cur.Predictions != nil {
		return cur.Predictions, false
	}
	return r.archivedPredictions(log), false
}

func (r *Refresher) archivedPredictions(log *slog.Logger) *model.PredictionSet {
	if r.archive == nil {
		return nil
	}
	e, raw, ok, err := r.archive.LatestPredictions()
	if err != nil {
		log.Warn("could not read archived predictions", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	ps, err := ingest.DecodePredictionBytes(raw)
	if err != nil {
		log.Warn("archived predictions rejected", "key", e.Key, "error", err)
		return nil
	}
	log.Info("using archived forecast", "key", e.Key, "fetched_at", e.FetchedAt)
	return ps
}

func (r *Refresher) persist(log *slog.Logger, at time.Time, dashRaw, predRaw []byte, predFresh bool) {
	if r.archive == nil {
		return
	}
	if _, err := r.archive.PutPayload(at, dashRaw); err != nil {
		log.Warn("could not archive payload", "error", err)
	}
	if predFresh {
		if _, err := r.archive.PutPredictions(at, predRaw); err != nil {
			log.Warn("could not archive predictions", "error", err)
		}
	}
}

// Seed publishes the newest archived payload, if any, so a restarted
// process serves data before its first fetch completes. It reports
// whether anything was published.
func (r *Refresher) Seed() (bool, error) {
	if r.archive == nil {
		return false, nil
	}
	e, raw, ok, err := r.archive.LatestPayload()
	if err != nil {
		return false, fmt.Errorf("loading archived payload: %w", err)
	}
	if !ok {
		return false, nil
	}
	payload, err := decodeUsable(raw)
	if err != nil {
		return false, fmt.Errorf("archived payload %s: %w", e.Key, err)
	}

	var preds *model.PredictionSet
	if _, praw, pok, perr := r.archive.LatestPredictions(); perr == nil && pok {
		if ps, err := ingest.DecodePredictionBytes(praw); err == nil {
			preds = ps
		}
	}

	seq := r.seq.Add(1)
	ok = r.state.Publish(&view.Snapshot{Seq: seq, Payload: payload, Predictions: preds, FetchedAt: e.FetchedAt})
	if ok {
		metrics.SnapshotSeq.Set(float64(seq))
		slog.Info("seeded snapshot from archive", "key", e.Key, "seq", seq)
	}
	return ok, nil
}

// decodeUsable decodes raw and checks that at least one granularity can
// be charted.
func decodeUsable(raw []byte) (*model.Payload, error) {
	p, err := ingest.DecodeBytes(raw)
	if err != nil {
		return nil, err
	}
	for _, g := range model.Granularities {
		if p.Series(g).HasDates() {
			return p, nil
		}
	}
	for _, g := range model.Granularities {
		if ts := p.Series(g); ts != nil {
			slog.Error("trend series has no date axis", "granularity", g, "fragment", fragment(ts.Raw))
		}
	}
	return nil, ErrNoUsableSeries
}

func fragment(raw []byte) string {
	const max = 512
	if len(raw) > max {
		return string(raw[:max]) + "…"
	}
	return string(raw)
}
