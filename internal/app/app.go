// Package app wires together configuration, the source client, and the
// optional payload store into a single Deps struct that commands receive
// at runtime.
package app

import (
	"fmt"
	"log/slog"

	"github.com/derickschaefer/tubestats/internal/config"
	"github.com/derickschaefer/tubestats/internal/refresh"
	"github.com/derickschaefer/tubestats/internal/source"
	"github.com/derickschaefer/tubestats/internal/store"
	"github.com/derickschaefer/tubestats/internal/view"
)

// Deps holds all runtime dependencies injected into command Run functions.
type Deps struct {
	Config *config.Config
	Source *source.Client
	Store  *store.Store // nil when --no-store is set or the db cannot be opened
}

// New builds a Deps from resolved config. The store is opened lazily by
// OpenStore so commands that never touch it do not lock the db file.
func New(cfg *config.Config) *Deps {
	client := source.NewClient(source.Options{
		DashboardURL:  cfg.DataURL,
		PredictionURL: cfg.PredictionURL,
		Timeout:       cfg.Timeout,
		Rate:          cfg.Rate,
		Debug:         cfg.Debug,
	})
	return &Deps{
		Config: cfg,
		Source: client,
	}
}

// OpenStore opens the bbolt store at Config.DBPath.
func (d *Deps) OpenStore() (*store.Store, error) {
	if d.Store != nil {
		return d.Store, nil
	}
	if d.Config.NoStore {
		return nil, fmt.Errorf("store disabled by --no-store")
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return nil, err
	}
	d.Store = s
	return s, nil
}

// Refresher builds a refresher publishing into st. Archiving is skipped,
// with a warning, when the store cannot be opened.
func (d *Deps) Refresher(st *view.State) *refresh.Refresher {
	var archive refresh.Archive
	if !d.Config.NoStore {
		if s, err := d.OpenStore(); err != nil {
			slog.Warn("payload archive unavailable", "path", d.Config.DBPath, "error", err)
		} else {
			archive = s
		}
	}
	return refresh.New(d.Source, st, archive)
}

// Close releases the store, if open.
func (d *Deps) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}
