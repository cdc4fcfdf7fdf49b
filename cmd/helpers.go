package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/tubestats/internal/app"
	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/normalize"
	"github.com/derickschaefer/tubestats/internal/pipeline"
	"github.com/derickschaefer/tubestats/internal/render"
	"github.com/derickschaefer/tubestats/internal/view"
)

// Values for model.ResultStats.Source.
const (
	sourceLive    = "live"
	sourceArchive = "archive"
	sourceStdin   = "stdin"
)

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// pipeFormat is resolveFormat for commands whose output feeds other
// commands: with no explicit --format, a pipe gets JSONL.
func pipeFormat(cfgFormat string) string {
	if globalFlags.Format == "" && globalFlags.Out == "" && !pipeline.IsTTY() {
		return render.FormatJSONL
	}
	return resolveFormat(cfgFormat)
}

// outputWriter returns def, or the --out file when one is set. The
// returned close function must always be called.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// loadSnapshot returns the snapshot a command works from. It fetches
// live unless --offline is set; a failed fetch falls back to the newest
// archived payload with a warning.
func loadSnapshot(ctx context.Context, deps *app.Deps) (*view.Snapshot, string, []string, error) {
	st := view.NewState()
	r := deps.Refresher(st)

	var (
		warnings []string
		fetchErr error
	)
	if !globalFlags.Offline {
		_, fetchErr = r.Run(ctx)
		if fetchErr == nil {
			snap, err := st.Current()
			return snap, sourceLive, nil, err
		}
		if deps.Config.NoStore {
			return nil, "", nil, fetchErr
		}
		warnings = append(warnings, fmt.Sprintf("fetch failed, using archived payload: %v", fetchErr))
	}

	ok, err := r.Seed()
	if err != nil {
		return nil, "", warnings, err
	}
	if !ok {
		if fetchErr != nil {
			return nil, "", nil, fetchErr
		}
		return nil, "", nil, fmt.Errorf("no archived payload in %s (run without --offline first)", deps.Config.DBPath)
	}
	snap, err := st.Current()
	return snap, sourceArchive, warnings, err
}

// selection builds a view.Selection from the resolved granularity and
// the command's metric/mode/model flags.
func selection(deps *app.Deps, metric, mode, modelName string) (view.Selection, error) {
	sel := view.DefaultSelection()
	sel.Granularity = deps.Config.Granularity
	if metric != "" {
		m, err := model.ParseMetric(metric)
		if err != nil {
			return sel, err
		}
		sel.Metric = m
	}
	md, err := view.ParseMode(mode)
	if err != nil {
		return sel, err
	}
	sel.Mode = md
	sel.Model = modelName
	return sel, nil
}

// dashboardFor loads the snapshot and builds the dashboard for sel.
func dashboardFor(ctx context.Context, deps *app.Deps, sel view.Selection) (*view.Dashboard, *view.Snapshot, string, []string, error) {
	snap, src, warnings, err := loadSnapshot(ctx, deps)
	if err != nil {
		return nil, nil, "", warnings, err
	}
	d, err := view.Build(snap.Payload, snap.Predictions, sel)
	if err != nil {
		return nil, nil, "", warnings, err
	}
	return d, snap, src, warnings, nil
}

// readOrLoadPoints reads chart points from stdin when it is a pipe;
// otherwise it loads the per-period chart series for the configured
// granularity.
func readOrLoadPoints(cmd *cobra.Command) ([]model.ChartPoint, string, error) {
	if pipeline.StdinIsPipe() {
		points, err := pipeline.ReadPoints(os.Stdin)
		return points, sourceStdin, err
	}
	deps, err := buildDeps()
	if err != nil {
		return nil, "", err
	}
	defer deps.Close()

	snap, src, warnings, err := loadSnapshot(cmd.Context(), deps)
	for _, w := range warnings {
		warnf(cmd.ErrOrStderr(), "%s", w)
	}
	if err != nil {
		return nil, "", err
	}
	points, err := normalize.BuildChartSeries(snap.Payload, deps.Config.Granularity)
	return points, src, err
}

// newResult wraps data in a Result envelope.
func newResult(kind, command string, data interface{}, items int, start time.Time) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Stats: model.ResultStats{
			DurationMs: time.Since(start).Milliseconds(),
			Items:      items,
		},
	}
}

// emit renders result in format and prints warnings and stats to stderr.
func emit(cmd *cobra.Command, result *model.Result, format string) error {
	if !render.ValidFormat(format) {
		return fmt.Errorf("unknown format %q (use %s)", format, strings.Join(render.Formats, ", "))
	}
	if err := render.RenderTo(globalFlags.Out, result, format); err != nil {
		return err
	}
	if !globalFlags.Quiet {
		render.PrintFooter(cmd.ErrOrStderr(), result, globalFlags.Verbose)
	}
	return nil
}

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

// printKVTableTo renders a two-column key/value list with aligned columns.
func printKVTableTo(w io.Writer, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", r[0], padding, r[1])
	}
}

// successf and warnf print status lines; colour is dropped when the
// stream is not a terminal or NO_COLOR is set.
func successf(w io.Writer, format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(w, "✓ "+format+"\n", args...)
}

func warnf(w io.Writer, format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(w, "⚠  "+format+"\n", args...)
}

func humanBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
