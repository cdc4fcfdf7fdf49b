package cmd

import (
	"github.com/spf13/cobra"

	"github.com/derickschaefer/tubestats/internal/chart"
	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/normalize"
	"github.com/derickschaefer/tubestats/internal/view"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render a metric as an ASCII chart",
	Long: `Chart commands render one metric of a chart series to the terminal.

When stdin is a pipe the series is read as JSONL (the output of
'tubestats series' or 'tubestats transform'); otherwise the current
payload is loaded for --granularity.

Pipeline examples:
  tubestats series --full | tubestats transform roll --window 7 | tubestats chart plot
  tubestats series -g monthly | tubestats chart bar --metric revenue
  tubestats chart plot --metric subscribers --mode cumulative`,
}

// chartMetricMode resolves the shared --metric and --mode flags.
func chartMetricMode(metric, mode string) (model.Metric, view.Mode, error) {
	m, err := model.ParseMetric(metric)
	if err != nil {
		return "", "", err
	}
	md, err := view.ParseMode(mode)
	if err != nil {
		return "", "", err
	}
	return m, md, nil
}

// chartSeries loads points and applies the chart mode.
func chartSeries(cmd *cobra.Command, metric, mode string) (chart.Series, error) {
	m, md, err := chartMetricMode(metric, mode)
	if err != nil {
		return chart.Series{}, err
	}
	points, _, err := readOrLoadPoints(cmd)
	if err != nil {
		return chart.Series{}, err
	}
	name := string(m)
	if md == view.ModeCumulative {
		points = normalize.ToCumulative(points, m)
		name += " (cumulative)"
	}
	return chart.FromPoints(name, points, m), nil
}

// ─── chart bar ───────────────────────────────────────────────────────────────

var (
	chartBarMetric  string
	chartBarMode    string
	chartBarWidth   int
	chartBarMaxBars int
)

var chartBarCmd = &cobra.Command{
	Use:   "bar",
	Short: "Horizontal bar chart, one bar per period",
	Long: `Renders a horizontal bar chart with one labeled bar per period.

Best suited for weekly or monthly series. Negative values (for example
net subscriber changes) extend left from a zero line.`,
	Example: `  tubestats chart bar -g monthly --metric revenue
  tubestats chart bar --metric subscribers --max-bars 14
  tubestats series -g weekly | tubestats chart bar --metric views`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := chartSeries(cmd, chartBarMetric, chartBarMode)
		if err != nil {
			return err
		}
		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()
		return chart.Bar(w, s, chart.BarOptions{
			Width:   chartBarWidth,
			MaxBars: chartBarMaxBars,
		})
	},
}

// ─── chart plot ──────────────────────────────────────────────────────────────

var (
	chartPlotMetric string
	chartPlotMode   string
	chartPlotWidth  int
	chartPlotHeight int
	chartPlotTitle  string
)

var chartPlotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Multi-line ASCII chart with labeled axes",
	Long: `Renders a multi-line chart with Y-axis tick labels and X-axis period labels.

Width auto-detects from $COLUMNS (falls back to 80). Override with --width
and --height. Use 'tubestats forecast show --plot' to draw a forecast.`,
	Example: `  tubestats chart plot
  tubestats chart plot --metric watchTime --height 8
  tubestats chart plot --metric subscribers --mode cumulative --title "Subscribers"
  tubestats series --full | tubestats chart plot --width 120`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := chartSeries(cmd, chartPlotMetric, chartPlotMode)
		if err != nil {
			return err
		}
		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()

		// chart.Plot handles width=0 by calling termWidth() internally.
		return chart.Plot(w, s, chart.PlotOptions{
			Width:  chartPlotWidth,
			Height: chartPlotHeight,
			Title:  chartPlotTitle,
		})
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.AddCommand(chartBarCmd)
	chartCmd.AddCommand(chartPlotCmd)

	// bar flags
	chartBarCmd.Flags().StringVarP(&chartBarMetric, "metric", "m", "views",
		"metric: views|subscribers|revenue|likes|dislikes|watchTime")
	chartBarCmd.Flags().StringVar(&chartBarMode, "mode", "changes",
		"chart mode: changes|cumulative")
	chartBarCmd.Flags().IntVar(&chartBarWidth, "width", 0,
		"total chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
	chartBarCmd.Flags().IntVar(&chartBarMaxBars, "max-bars", 0,
		"maximum bars to render, keeping the last N when the series is longer (0 = no limit)")

	// plot flags
	chartPlotCmd.Flags().StringVarP(&chartPlotMetric, "metric", "m", "views",
		"metric: views|subscribers|revenue|likes|dislikes|watchTime")
	chartPlotCmd.Flags().StringVar(&chartPlotMode, "mode", "changes",
		"chart mode: changes|cumulative")
	chartPlotCmd.Flags().IntVar(&chartPlotWidth, "width", 0,
		"chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
	chartPlotCmd.Flags().IntVar(&chartPlotHeight, "height", 12,
		"chart height in rows (default 12)")
	chartPlotCmd.Flags().StringVar(&chartPlotTitle, "title", "",
		"chart title (default: metric name)")
}
