package cmd

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/tubestats/internal/analyze"
	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/render"
	"github.com/derickschaefer/tubestats/internal/transform"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one metric of a chart series",
	Long: `Analyze operators summarize one metric. The series is read as JSONL from
stdin when it is a pipe; otherwise the current payload is loaded.

Examples:
  tubestats analyze summary --metric views
  tubestats series --full | tubestats analyze trend --method theil-sen`,
}

// ─── analyze summary ─────────────────────────────────────────────────────────

var analyzeSummaryMetric string

var analyzeSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Descriptive statistics: count, total, mean, std, min, max, median, growth",
	Example: `  tubestats analyze summary
  tubestats analyze summary -g weekly --metric subscribers
  tubestats series --full | tubestats transform pct-change | tubestats analyze summary`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := model.ParseMetric(analyzeSummaryMetric)
		if err != nil {
			return err
		}
		start := time.Now()
		points, src, err := readOrLoadPoints(cmd)
		if err != nil {
			return err
		}

		s := analyze.SummarizePoints(points, m)
		format := resolveFormat("")
		if format == render.FormatJSON || format == render.FormatJSONL {
			result := newResult(model.KindTable, "analyze summary", s, s.Count, start)
			result.Stats.Source = src
			return emit(cmd, result, format)
		}

		tbl := kvTable([][]string{
			{"metric", s.Label},
			{"count", fmt.Sprintf("%d", s.Count)},
			{"total", fmtStat(s.Total)},
			{"mean", fmtStat(s.Mean)},
			{"std", fmtStat(s.Std)},
			{"min", fmtStat(s.Min)},
			{"p25", fmtStat(s.P25)},
			{"median", fmtStat(s.Median)},
			{"p75", fmtStat(s.P75)},
			{"max", fmtStat(s.Max)},
			{"first", fmtStat(s.First)},
			{"last", fmtStat(s.Last)},
			{"change", fmtStat(s.Change)},
			{"change_pct", fmtStatPct(s.ChangePct)},
			{"growth", fmtStatPct(s.Growth)},
		})
		result := newResult(model.KindTable, "analyze summary", tbl, s.Count, start)
		result.Stats.Source = src
		return emit(cmd, result, format)
	},
}

// ─── analyze trend ────────────────────────────────────────────────────────────

var (
	analyzeTrendMetric string
	analyzeTrendMethod string
)

var analyzeTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Fit a linear trend: slope per period, intercept, R², direction",
	Example: `  tubestats analyze trend
  tubestats analyze trend --metric revenue --method theil-sen`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := model.ParseMetric(analyzeTrendMetric)
		if err != nil {
			return err
		}
		method, err := analyze.ParseTrendMethod(analyzeTrendMethod)
		if err != nil {
			return err
		}
		start := time.Now()
		points, src, err := readOrLoadPoints(cmd)
		if err != nil {
			return err
		}

		tr, err := analyze.Trend(string(m), transform.Values(points, m), method)
		if err != nil {
			return err
		}

		format := resolveFormat("")
		if format == render.FormatJSON || format == render.FormatJSONL {
			result := newResult(model.KindTable, "analyze trend", tr, tr.N, start)
			result.Stats.Source = src
			return emit(cmd, result, format)
		}

		tbl := kvTable([][]string{
			{"metric", tr.Label},
			{"method", string(tr.Method)},
			{"direction", tr.Direction},
			{"periods", fmt.Sprintf("%d", tr.N)},
			{"slope_per_period", fmt.Sprintf("%.6f", tr.Slope)},
			{"intercept", fmt.Sprintf("%.4f", tr.Intercept)},
			{"r2", fmt.Sprintf("%.4f", tr.R2)},
			{"next_period", fmtStat(tr.At(float64(tr.N)))},
		})
		result := newResult(model.KindTable, "analyze trend", tbl, tr.N, start)
		result.Stats.Source = src
		return emit(cmd, result, format)
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.AddCommand(analyzeSummaryCmd)
	analyzeCmd.AddCommand(analyzeTrendCmd)

	analyzeSummaryCmd.Flags().StringVarP(&analyzeSummaryMetric, "metric", "m", "views",
		"metric: views|subscribers|revenue|likes|dislikes|watchTime")
	analyzeTrendCmd.Flags().StringVarP(&analyzeTrendMetric, "metric", "m", "views",
		"metric: views|subscribers|revenue|likes|dislikes|watchTime")
	analyzeTrendCmd.Flags().StringVar(&analyzeTrendMethod, "method", "linear",
		"regression method: linear|theil-sen")
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// kvTable turns field/value pairs into a two-column table.
func kvTable(rows [][]string) *model.Table {
	t := &model.Table{Headers: []string{"FIELD", "VALUE"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []interface{}{r[0], r[1]})
	}
	return t
}

func fmtStat(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	return fmt.Sprintf("%.4f", v)
}

func fmtStatPct(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	return fmt.Sprintf("%.2f%%", v)
}
