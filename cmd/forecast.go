package cmd

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/tubestats/internal/chart"
	"github.com/derickschaefer/tubestats/internal/forecast"
	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/normalize"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Show or generate metric forecasts",
	Long: `Forecasts come from prediction_data.json, keyed by model and metric.

  tubestats forecast show               # history joined to the preferred model
  tubestats forecast generate --save    # compute ma, wma and theilsen locally`,
}

// ─── forecast show ────────────────────────────────────────────────────────────

var (
	forecastShowMetric string
	forecastShowModel  string
	forecastShowPlot   bool
	forecastShowWidth  int
	forecastShowHeight int
)

var forecastShowCmd = &cobra.Command{
	Use:   "show",
	Short: "History followed by the forecast for one metric",
	Long: `Joins the per-period history to a forecast column. The last history
period is repeated as the first forecast point so the two lines meet.

Without --model the first available of xgboost, theilsen, wma and ma is
used. A missing model or metric prints the history alone.`,
	Example: `  tubestats forecast show
  tubestats forecast show --metric subscribers --model wma
  tubestats forecast show --plot --height 16`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		sel, err := selection(deps, forecastShowMetric, "", forecastShowModel)
		if err != nil {
			return err
		}
		d, _, src, warnings, err := dashboardFor(cmd.Context(), deps, sel)
		if err != nil {
			return err
		}
		if len(d.Models) == 0 {
			warnings = append(warnings, "no forecast available; showing history only")
		} else if d.Selection.Model == "" || len(d.Forecast) == len(d.Chart) {
			warnings = append(warnings, fmt.Sprintf("model %q has no %s forecast (available: %v)", d.Selection.Model, sel.Metric, d.Models))
		}

		if forecastShowPlot {
			for _, w := range warnings {
				warnf(cmd.ErrOrStderr(), "%s", w)
			}
			title := string(sel.Metric)
			if d.Selection.Model != "" {
				title = fmt.Sprintf("%s (%s)", sel.Metric, d.Selection.Model)
			}
			w, closeFn, err := outputWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeFn()
			return chart.PlotForecast(w, title, d.Forecast, chart.PlotOptions{
				Width:  forecastShowWidth,
				Height: forecastShowHeight,
			})
		}

		command := fmt.Sprintf("forecast show --metric %s --model %s", sel.Metric, d.Selection.Model)
		result := newResult(model.KindForecast, command, d.Forecast, len(d.Forecast), start)
		result.Stats.Source = src
		result.Warnings = warnings
		return emit(cmd, result, resolveFormat(deps.Config.Format))
	},
}

// ─── forecast generate ────────────────────────────────────────────────────────

var (
	forecastGenHorizon int
	forecastGenSave    bool
	forecastGenWrite   string
)

var forecastGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Compute forecasts from the full daily history",
	Long: `Fits a 7-day moving average (ma), a 30-day weighted trend (wma) and a
Theil-Sen trend (theilsen) to every metric of the daily series and
projects them --horizon days past the last date.

--save stores the result in the local archive, where the next refresh
picks it up when the prediction source is unavailable. --write saves it as
a prediction_data.json file.`,
	Example: `  tubestats forecast generate
  tubestats forecast generate --horizon 14 --save
  tubestats forecast generate --write prediction_data.json`,
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
		history, err := normalize.History(snap.Payload, model.Daily)
		if err != nil {
			return err
		}

		horizon := deps.Config.ForecastHorizon
		if cmd.Flags().Changed("horizon") {
			horizon = forecastGenHorizon
		}
		ps, err := forecast.Generate(history, horizon, time.Now())
		if err != nil {
			return err
		}

		if forecastGenSave || forecastGenWrite != "" {
			body, err := json.Marshal(ps)
			if err != nil {
				return fmt.Errorf("encoding predictions: %w", err)
			}
			if forecastGenWrite != "" {
				if err := os.WriteFile(forecastGenWrite, append(body, '\n'), 0644); err != nil {
					return fmt.Errorf("writing %s: %w", forecastGenWrite, err)
				}
			}
			if forecastGenSave {
				st, err := deps.OpenStore()
				if err != nil {
					return err
				}
				e, err := st.PutPredictions(time.Now(), body)
				if err != nil {
					return fmt.Errorf("saving predictions: %w", err)
				}
				if !globalFlags.Quiet {
					successf(cmd.ErrOrStderr(), "Saved predictions %s (%s)", e.Key, humanBytes(int64(e.Bytes)))
				}
			}
		}

		command := fmt.Sprintf("forecast generate --horizon %d", horizon)
		result := newResult(model.KindForecast, command, ps, len(ps.Dates), start)
		result.Stats.Source = src
		result.Warnings = warnings
		return emit(cmd, result, resolveFormat(deps.Config.Format))
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(forecastCmd)
	forecastCmd.AddCommand(forecastShowCmd)
	forecastCmd.AddCommand(forecastGenerateCmd)

	forecastShowCmd.Flags().StringVarP(&forecastShowMetric, "metric", "m", "views",
		"metric: views|subscribers|revenue|likes|dislikes|watchTime")
	forecastShowCmd.Flags().StringVar(&forecastShowModel, "model", "",
		"forecast model (default: first of xgboost, theilsen, wma, ma)")
	forecastShowCmd.Flags().BoolVar(&forecastShowPlot, "plot", false,
		"draw an ASCII chart instead of a table")
	forecastShowCmd.Flags().IntVar(&forecastShowWidth, "width", 0,
		"chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
	forecastShowCmd.Flags().IntVar(&forecastShowHeight, "height", 12,
		"chart height in rows")

	forecastGenerateCmd.Flags().IntVar(&forecastGenHorizon, "horizon", 0,
		"days to forecast (default: forecast_horizon from config, 30)")
	forecastGenerateCmd.Flags().BoolVar(&forecastGenSave, "save", false,
		"store the predictions in the local archive")
	forecastGenerateCmd.Flags().StringVar(&forecastGenWrite, "write", "",
		"also write the predictions to this prediction_data.json path")
}
