package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/normalize"
	"github.com/derickschaefer/tubestats/internal/transform"
	"github.com/derickschaefer/tubestats/internal/view"
)

var (
	seriesMetric string
	seriesMode   string
	seriesFull   bool
	seriesTail   int
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Per-period chart values for one granularity",
	Long: `Prints one row per period with views, subscribers, revenue, likes,
dislikes and watch hours.

Daily series are limited to the most recent 30 periods unless --full is
given. With --mode cumulative the --metric column becomes a running total;
the other columns stay per period.

When stdout is a pipe and no --format is given, rows are written as JSONL
so they can feed the chart, transform and analyze commands.`,
	Example: `  tubestats series
  tubestats series -g weekly --mode cumulative --metric subscribers
  tubestats series --full | tubestats chart plot --metric views
  tubestats series --format csv --out daily.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		sel, err := selection(deps, seriesMetric, seriesMode, "")
		if err != nil {
			return err
		}
		snap, src, warnings, err := loadSnapshot(cmd.Context(), deps)
		if err != nil {
			return err
		}

		var points []model.ChartPoint
		if seriesFull {
			points, err = normalize.History(snap.Payload, sel.Granularity)
		} else {
			points, err = normalize.BuildChartSeries(snap.Payload, sel.Granularity)
		}
		if err != nil {
			return err
		}
		if sel.Mode == view.ModeCumulative {
			points = normalize.ToCumulative(points, sel.Metric)
		}
		points = transform.Tail(points, seriesTail)

		command := fmt.Sprintf("series -g %s --mode %s", sel.Granularity, sel.Mode)
		result := newResult(model.KindChart, command, points, len(points), start)
		result.Stats.Source = src
		result.Warnings = warnings
		return emit(cmd, result, pipeFormat(deps.Config.Format))
	},
}

func init() {
	rootCmd.AddCommand(seriesCmd)

	seriesCmd.Flags().StringVarP(&seriesMetric, "metric", "m", "views",
		"metric for cumulative mode: views|subscribers|revenue|likes|dislikes|watchTime")
	seriesCmd.Flags().StringVar(&seriesMode, "mode", "changes",
		"chart mode: changes|cumulative")
	seriesCmd.Flags().BoolVar(&seriesFull, "full", false,
		"keep the whole daily series instead of the last 30 days")
	seriesCmd.Flags().IntVar(&seriesTail, "tail", 0,
		"keep only the last N periods (0 = all)")
}
