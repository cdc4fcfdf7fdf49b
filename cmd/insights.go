package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/tubestats/internal/model"
)

var insightsReport bool

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Pre-written channel insights from the export",
	Long: `Prints the insight blocks shipped in dashboard_data.json: strengths,
improvements and an action plan for the current period, plus growth trend,
risk factor and strategy for the next one.

--report prints the long-form detailed reports instead.`,
	Example: `  tubestats insights
  tubestats insights --report
  tubestats insights --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		snap, src, warnings, err := loadSnapshot(cmd.Context(), deps)
		if err != nil {
			return err
		}
		in := snap.Payload.Insights
		if in == nil {
			warnings = append(warnings, "payload has no insights")
		}

		if insightsReport {
			w, closeFn, err := outputWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeFn()
			printed := false
			if in != nil && in.CurrentAnalysis != nil && in.CurrentAnalysis.DetailedReport != "" {
				fmt.Fprintf(w, "── Current analysis ──\n\n%s\n\n", in.CurrentAnalysis.DetailedReport)
				printed = true
			}
			if in != nil && in.FutureStrategy != nil && in.FutureStrategy.DetailedReport != "" {
				fmt.Fprintf(w, "── Future strategy ──\n\n%s\n\n", in.FutureStrategy.DetailedReport)
				printed = true
			}
			if !printed {
				fmt.Fprintln(w, "No detailed reports in payload.")
			}
			return nil
		}

		items := 0
		if in != nil {
			if in.CurrentAnalysis != nil {
				items += 3
			}
			if in.FutureStrategy != nil {
				items += 3
			}
		}
		result := newResult(model.KindInsights, "insights", in, items, start)
		result.Stats.Source = src
		result.Warnings = warnings
		return emit(cmd, result, resolveFormat(deps.Config.Format))
	},
}

func init() {
	rootCmd.AddCommand(insightsCmd)

	insightsCmd.Flags().BoolVar(&insightsReport, "report", false, "print the detailed reports as plain text")
}
