package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/derickschaefer/tubestats/internal/refresh"
	"github.com/derickschaefer/tubestats/internal/server"
	"github.com/derickschaefer/tubestats/internal/view"
)

var (
	serveListen       string
	serveInterval     string
	serveRatePerMin   int
	serveNoRefreshAPI bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard as a JSON API with scheduled refresh",
	Long: `Starts an HTTP server exposing the dashboard under /api, plus /healthz
and /metrics (Prometheus).

On start the newest archived payload is published so the API answers
immediately; then a refresh runs at once and every --interval. A failed
refresh keeps the previous snapshot. Overlapping refreshes are resolved by
start order: a cycle that finishes after a newer one has published is
dropped.

Routes:
  GET  /api/dashboard   stats, chart, forecast, videos, comments, insights
  GET  /api/stats       ?granularity=daily|weekly|monthly
  GET  /api/chart       ?granularity=&metric=&mode=changes|cumulative
  GET  /api/forecast    ?granularity=&metric=&model=
  GET  /api/videos      ?sort=&dir=&limit=
  GET  /api/comments    ?sort=&dir=&limit=
  GET  /api/insights
  POST /api/refresh     run a refresh cycle now`,
	Example: `  tubestats serve
  tubestats serve --listen 127.0.0.1:9000 --interval 15m
  tubestats serve --data-url https://example.com/dashboard_data.json --rate-limit 120`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		listen := deps.Config.Listen
		if serveListen != "" {
			listen = serveListen
		}
		interval := deps.Config.RefreshInterval
		if serveInterval != "" {
			d, err := time.ParseDuration(serveInterval)
			if err != nil || d <= 0 {
				return fmt.Errorf("--interval: invalid duration %q", serveInterval)
			}
			interval = d
		}

		st := view.NewState()
		r := deps.Refresher(st)
		if _, err := r.Seed(); err != nil {
			slog.Warn("could not seed from archive", "error", err)
		}

		opts := server.Options{
			AllowedOrigins:    deps.Config.CORSOrigins,
			RequestsPerMinute: serveRatePerMin,
		}
		if !serveNoRefreshAPI {
			opts.Refresher = r
		}
		srv := &http.Server{
			Addr:              listen,
			Handler:           server.New(st, opts).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sched := refresh.NewScheduler(r.Job(), interval)
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			if _, err := r.Run(gctx); err != nil {
				slog.Warn("initial refresh failed", "error", err)
			}
			sched.Start(gctx)
			return nil
		})

		g.Go(func() error {
			slog.Info("listening", "addr", listen, "interval", interval.String())
			if !globalFlags.Quiet {
				successf(cmd.ErrOrStderr(), "Serving on %s (refresh every %s)", listen, interval)
			}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			slog.Info("shutting down")
			sched.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: listen from config, :8080)")
	serveCmd.Flags().StringVar(&serveInterval, "interval", "", "refresh interval (default: refresh_interval from config, 1h)")
	serveCmd.Flags().IntVar(&serveRatePerMin, "rate-limit", 0, "max API requests per minute per client IP (0 = unlimited)")
	serveCmd.Flags().BoolVar(&serveNoRefreshAPI, "no-refresh-api", false, "disable POST /api/refresh")
}
