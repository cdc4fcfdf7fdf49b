package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Transform one metric of a chart series",
	Long: `Transform operators rewrite one metric of a chart series and leave the
other columns untouched. Input is JSONL on stdin when it is a pipe,
otherwise the current payload; output is JSONL when stdout is a pipe.

Pipeline example:
  tubestats series --full | tubestats transform roll --window 7 | tubestats chart plot
  tubestats series -g monthly | tubestats transform pct-change --metric revenue`,
}

var transformMetric string

// ─── cumulative ───────────────────────────────────────────────────────────────

var transformCumCmd = &cobra.Command{
	Use:   "cumulative",
	Short: "Running total of the metric",
	Example: `  tubestats series --full | tubestats transform cumulative --metric subscribers
  tubestats transform cumulative -g weekly --metric revenue --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransform(cmd, "transform cumulative", func(points []model.ChartPoint, m model.Metric) ([]model.ChartPoint, error) {
			return transform.Cumulative(points, m), nil
		})
	},
}

// ─── pct-change ───────────────────────────────────────────────────────────────

var transformPctPeriod int

var transformPctCmd = &cobra.Command{
	Use:   "pct-change",
	Short: "Percent change from N periods ago: (v[t]-v[t-N])/|v[t-N]| * 100",
	Example: `  tubestats series -g monthly | tubestats transform pct-change
  tubestats series --full | tubestats transform pct-change --period 7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransform(cmd, "transform pct-change", func(points []model.ChartPoint, m model.Metric) ([]model.ChartPoint, error) {
			return transform.PctChange(points, m, transformPctPeriod)
		})
	},
}

// ─── roll ─────────────────────────────────────────────────────────────────────

var (
	transformRollWindow int
	transformRollStat   string
)

var transformRollCmd = &cobra.Command{
	Use:   "roll",
	Short: "Rolling window statistic: mean, std, min, max, or sum",
	Example: `  tubestats series --full | tubestats transform roll --window 7
  tubestats series --full | tubestats transform roll --stat sum --window 28 --metric revenue`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransform(cmd, "transform roll", func(points []model.ChartPoint, m model.Metric) ([]model.ChartPoint, error) {
			return transform.Roll(points, m, transformRollWindow, transform.RollStat(transformRollStat))
		})
	},
}

// ─── tail ─────────────────────────────────────────────────────────────────────

var transformTailN int

var transformTailCmd = &cobra.Command{
	Use:     "tail",
	Short:   "Keep the last N periods",
	Example: `  tubestats series --full | tubestats transform tail --n 90 | tubestats chart plot`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransform(cmd, "transform tail", func(points []model.ChartPoint, _ model.Metric) ([]model.ChartPoint, error) {
			return transform.Tail(points, transformTailN), nil
		})
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(transformCmd)
	transformCmd.AddCommand(transformCumCmd)
	transformCmd.AddCommand(transformPctCmd)
	transformCmd.AddCommand(transformRollCmd)
	transformCmd.AddCommand(transformTailCmd)

	transformCmd.PersistentFlags().StringVarP(&transformMetric, "metric", "m", "views",
		"metric to transform: views|subscribers|revenue|likes|dislikes|watchTime")

	// pct-change flags
	transformPctCmd.Flags().IntVar(&transformPctPeriod, "period", 1, "lag period (1 = previous period, 7 = week over week on daily data)")

	// roll flags
	transformRollCmd.Flags().IntVar(&transformRollWindow, "window", 7, "window size (number of periods)")
	transformRollCmd.Flags().StringVar(&transformRollStat, "stat", "mean", "statistic: mean|std|min|max|sum")

	// tail flags
	transformTailCmd.Flags().IntVar(&transformTailN, "n", 30, "number of periods to keep")
}

// ─── Output helper ────────────────────────────────────────────────────────────

// runTransform reads the input series, applies op to the selected metric
// and writes the result in JSONL (pipeline) or the resolved format (terminal).
func runTransform(cmd *cobra.Command, command string, op func([]model.ChartPoint, model.Metric) ([]model.ChartPoint, error)) error {
	m, err := model.ParseMetric(transformMetric)
	if err != nil {
		return err
	}
	start := time.Now()
	points, src, err := readOrLoadPoints(cmd)
	if err != nil {
		return err
	}
	out, err := op(points, m)
	if err != nil {
		return err
	}
	result := newResult(model.KindChart, command+" --metric "+string(m), out, len(out), start)
	result.Stats.Source = src
	return emit(cmd, result, pipeFormat(""))
}
