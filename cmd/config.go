package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/tubestats/internal/config"
	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tubestats configuration",
	Long:  `Read and write tubestats configuration stored in config.json.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config.json in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config.json already exists at %s (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		successf(cmd.OutOrStdout(), "Created %s", path)
		fmt.Fprintln(cmd.OutOrStdout(), "  Edit data_url and prediction_url to point at your exports.")
		return nil
	},
}

var configShowSecrets bool

var configShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"get"},
	Short:   "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalFlags.DataURL)
		if err != nil {
			return err
		}

		redact := config.Redact
		if configShowSecrets {
			redact = func(s string) string { return s }
		}
		src := "(not found)"
		if cfg.ConfigPath != "" {
			src = cfg.ConfigPath
		}

		if resolveFormat(cfg.Format) == render.FormatJSON {
			type configOut struct {
				DataURL         string   `json:"data_url"`
				PredictionURL   string   `json:"prediction_url"`
				Format          string   `json:"default_format"`
				Granularity     string   `json:"granularity"`
				Timeout         string   `json:"timeout"`
				Rate            float64  `json:"rate"`
				RefreshInterval string   `json:"refresh_interval"`
				Listen          string   `json:"listen"`
				CORSOrigins     []string `json:"cors_origins"`
				DBPath          string   `json:"db_path"`
				ForecastHorizon int      `json:"forecast_horizon"`
				ConfigFile      string   `json:"config_file"`
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(configOut{
				DataURL:         redact(cfg.DataURL),
				PredictionURL:   redact(cfg.PredictionURL),
				Format:          cfg.Format,
				Granularity:     string(cfg.Granularity),
				Timeout:         cfg.Timeout.String(),
				Rate:            cfg.Rate,
				RefreshInterval: cfg.RefreshInterval.String(),
				Listen:          cfg.Listen,
				CORSOrigins:     cfg.CORSOrigins,
				DBPath:          cfg.DBPath,
				ForecastHorizon: cfg.ForecastHorizon,
				ConfigFile:      src,
			})
		}

		origins := "*"
		if len(cfg.CORSOrigins) > 0 {
			origins = strings.Join(cfg.CORSOrigins, ", ")
		}
		printKVTableTo(cmd.OutOrStdout(), [][]string{
			{"data_url", redact(cfg.DataURL)},
			{"prediction_url", redact(cfg.PredictionURL)},
			{"default_format", cfg.Format},
			{"granularity", string(cfg.Granularity)},
			{"timeout", cfg.Timeout.String()},
			{"rate", fmt.Sprintf("%.1f req/s", cfg.Rate)},
			{"refresh_interval", cfg.RefreshInterval.String()},
			{"listen", cfg.Listen},
			{"cors_origins", origins},
			{"db_path", cfg.DBPath},
			{"forecast_horizon", fmt.Sprintf("%d", cfg.ForecastHorizon)},
			{"config_file", src},
		})
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.json",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])

		// Load existing file or start from template
		f, path, err := loadConfigFile()
		if err != nil {
			if !os.IsNotExist(err) {
				return err
			}
			path = config.DefaultConfigFile
			tmpl := config.Template()
			f = &tmpl
		}
		if err := setConfigValue(f, key, args[1]); err != nil {
			return err
		}
		if err := config.WriteFile(path, *f); err != nil {
			return err
		}
		successf(cmd.OutOrStdout(), "Set %s in %s", key, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)

	configShowCmd.Flags().BoolVar(&configShowSecrets, "show-secrets", false, "show source URLs with query strings and credentials")
}

// setConfigValue validates val and stores it under key.
func setConfigValue(f *config.File, key, val string) error {
	switch key {
	case "data_url":
		f.DataURL = val
	case "prediction_url":
		f.PredictionURL = val
	case "default_format", "format":
		if !render.ValidFormat(val) {
			return fmt.Errorf("unknown format %q (use %s)", val, strings.Join(render.Formats, ", "))
		}
		f.DefaultFormat = val
	case "granularity":
		g, err := model.ParseGranularity(val)
		if err != nil {
			return err
		}
		f.Granularity = string(g)
	case "timeout", "refresh_interval":
		d, err := time.ParseDuration(val)
		if err != nil || d <= 0 {
			return fmt.Errorf("%s must be a positive duration such as 30s or 1h", key)
		}
		if key == "timeout" {
			f.Timeout = val
		} else {
			f.RefreshInterval = val
		}
	case "rate":
		r, err := strconv.ParseFloat(val, 64)
		if err != nil || r <= 0 {
			return fmt.Errorf("rate must be a positive number")
		}
		f.Rate = r
	case "listen":
		f.Listen = val
	case "cors_origins":
		var origins []string
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		f.CORSOrigins = origins
	case "db_path":
		f.DBPath = val
	case "forecast_horizon":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return fmt.Errorf("forecast_horizon must be a positive integer")
		}
		f.ForecastHorizon = n
	default:
		return fmt.Errorf("unknown config key: %q\n\nValid keys: data_url, prediction_url, default_format, granularity, timeout, rate, refresh_interval, listen, cors_origins, db_path, forecast_horizon", key)
	}
	return nil
}

// loadConfigFile reads config.json from cwd; used by configSetCmd.
func loadConfigFile() (*config.File, string, error) {
	path := config.DefaultConfigFile
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	var f config.File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing %s: %w", path, err)
	}
	return &f, path, nil
}
