package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/tubestats/internal/model"
)

// trafficSection names the traffic source table alongside the
// demographics tables.
const trafficSection = "traffic_sources"

var audienceCmd = &cobra.Command{
	Use:   "audience [SECTION]",
	Short: "Demographics and traffic source tables",
	Long: `Without arguments, lists the audience tables in the export and their row
counts. With a section name, prints that table.

Demographics sections come from the export as-is (for example age_gender
or geography); traffic_sources is the traffic source breakdown.`,
	Example: `  tubestats audience
  tubestats audience traffic_sources
  tubestats audience age_gender --format csv`,
	Args: cobra.MaximumNArgs(1),
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
		sections := audienceSections(snap.Payload)

		if len(args) == 0 {
			names := make([]string, 0, len(sections))
			for name := range sections {
				names = append(names, name)
			}
			sort.Strings(names)
			tbl := &model.Table{Headers: []string{"SECTION", "ROWS"}}
			for _, name := range names {
				tbl.Rows = append(tbl.Rows, []interface{}{name, float64(len(sections[name].Rows))})
			}
			result := newResult(model.KindTable, "audience", tbl, len(names), start)
			result.Stats.Source = src
			result.Warnings = warnings
			return emit(cmd, result, resolveFormat(deps.Config.Format))
		}

		tbl, ok := sections[args[0]]
		if !ok {
			return fmt.Errorf("no audience section %q (run 'tubestats audience' to list them)", args[0])
		}
		result := newResult(model.KindTable, "audience "+args[0], &tbl, len(tbl.Rows), start)
		result.Stats.Source = src
		result.Warnings = warnings
		return emit(cmd, result, resolveFormat(deps.Config.Format))
	},
}

// audienceSections collects the demographics tables and the traffic
// sources, the latter flattened to a table with sorted column names.
func audienceSections(p *model.Payload) map[string]model.Table {
	out := make(map[string]model.Table, len(p.Demographics)+1)
	for name, t := range p.Demographics {
		out[name] = t
	}
	if len(p.TrafficSources) == 0 {
		return out
	}

	seen := map[string]bool{}
	var headers []string
	for _, row := range p.TrafficSources {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	sort.Strings(headers)
	t := model.Table{Headers: headers}
	for _, row := range p.TrafficSources {
		cells := make([]interface{}, len(headers))
		for i, h := range headers {
			cells[i] = row[h]
		}
		t.Rows = append(t.Rows, cells)
	}
	out[trafficSection] = t
	return out
}

func init() {
	rootCmd.AddCommand(audienceCmd)
}
