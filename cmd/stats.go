package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/tubestats/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Headline channel numbers for one granularity",
	Long: `Prints the derived stat cards: subscribers gained, views, video count,
watch time, average engagement and revenue.

Daily figures cover the last 30 days of the series; weekly and monthly
figures cover the whole series.`,
	Example: `  tubestats stats
  tubestats stats -g monthly --format json
  tubestats stats --offline --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		sel, err := selection(deps, "", "", "")
		if err != nil {
			return err
		}
		d, _, src, warnings, err := dashboardFor(cmd.Context(), deps, sel)
		if err != nil {
			return err
		}

		result := newResult(model.KindStats, fmt.Sprintf("stats -g %s", sel.Granularity), d.Stats, 1, start)
		result.Stats.Source = src
		result.Warnings = warnings
		return emit(cmd, result, resolveFormat(deps.Config.Format))
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
