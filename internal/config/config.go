// Package config handles loading and resolving tubestats configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flag --data-url (and the other persistent flags)
//  2. Environment variables TUBESTATS_DATA_URL, TUBESTATS_PREDICTION_URL,
//     TUBESTATS_DB_PATH
//  3. The same variables from a .env file in the current working directory
//  4. config.json in the current working directory
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"

	"github.com/derickschaefer/tubestats/internal/model"
)

const (
	DefaultConfigFile      = "config.json"
	DefaultEnvFile         = ".env"
	DefaultFormat          = "table"
	DefaultDataURL         = "dashboard_data.json"
	DefaultPredictionURL   = "prediction_data.json"
	DefaultTimeout         = 30 * time.Second
	DefaultRate            = 2.0
	DefaultRefreshInterval = time.Hour
	DefaultListen          = ":8080"
	DefaultForecastHorizon = 30
	EnvDataURL             = "TUBESTATS_DATA_URL"
	EnvPredictionURL       = "TUBESTATS_PREDICTION_URL"
	EnvDBPath              = "TUBESTATS_DB_PATH"
)

// File is the on-disk representation of config.json.
type File struct {
	DataURL         string   `json:"data_url"`
	PredictionURL   string   `json:"prediction_url"`
	DefaultFormat   string   `json:"default_format"`
	Granularity     string   `json:"granularity"`
	Timeout         string   `json:"timeout"`
	Rate            float64  `json:"rate"`
	RefreshInterval string   `json:"refresh_interval"`
	Listen          string   `json:"listen"`
	CORSOrigins     []string `json:"cors_origins,omitempty"`
	DBPath          string   `json:"db_path"`
	ForecastHorizon int      `json:"forecast_horizon"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	DataURL         string
	PredictionURL   string
	Format          string
	Granularity     model.Granularity
	Timeout         time.Duration
	Rate            float64
	RefreshInterval time.Duration
	Listen          string
	CORSOrigins     []string
	DBPath          string
	ForecastHorizon int
	ConfigPath      string // path of the config.json that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	NoStore bool
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Load resolves configuration from all sources.
// flagDataURL is the value of --data-url (empty string if not set).
func Load(flagDataURL string) (*Config, error) {
	cfg := &Config{
		DataURL:         DefaultDataURL,
		PredictionURL:   DefaultPredictionURL,
		Format:          DefaultFormat,
		Granularity:     model.Daily,
		Timeout:         DefaultTimeout,
		Rate:            DefaultRate,
		RefreshInterval: DefaultRefreshInterval,
		Listen:          DefaultListen,
		ForecastHorizon: DefaultForecastHorizon,
	}

	// Layer 1: config.json (lowest priority)
	f, path, err := loadFile()
	switch {
	case err == nil:
		applyFile(cfg, f, path)
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	// Layer 2: environment variables, falling back to .env
	dotenv, err := godotenv.Read(DefaultEnvFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", DefaultEnvFile, err)
	}
	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}
	if v := lookup(EnvDataURL); v != "" {
		cfg.DataURL = v
	}
	if v := lookup(EnvPredictionURL); v != "" {
		cfg.PredictionURL = v
	}
	if v := lookup(EnvDBPath); v != "" {
		cfg.DBPath = v
	}

	// Layer 3: CLI flag (highest priority)
	if flagDataURL != "" {
		cfg.DataURL = flagDataURL
	}

	// Set default DB path if still unset
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".tubestats", "tubestats.db")
		}
	}

	return cfg, nil
}

// Validate returns an error if required fields are missing.
func (c *Config) Validate() error {
	if c.DataURL == "" {
		return errors.New(
			"dashboard data location not set.\n\n" +
				"Set it one of these ways:\n" +
				"  1. CLI flag:        tubestats --data-url https://example.com/dashboard_data.json ...\n" +
				"  2. Environment:     export TUBESTATS_DATA_URL=./dashboard_data.json\n" +
				"  3. config.json:     {\"data_url\": \"./dashboard_data.json\"}",
		)
	}
	if c.ForecastHorizon <= 0 {
		return fmt.Errorf("forecast_horizon must be positive, got %d", c.ForecastHorizon)
	}
	return nil
}

// Redact returns loc with credentials and query parameters hidden.
// Safe for logging and display; signed URLs carry their secret in the query.
func Redact(loc string) string {
	u, err := url.Parse(loc)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return loc
	}
	hadUser := u.User != nil
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "****"
	}
	s := u.String()
	if hadUser {
		prefix := u.Scheme + "://"
		s = prefix + "****@" + strings.TrimPrefix(s, prefix)
	}
	return s
}

// loadFile attempts to read config.json from the current working directory.
// A missing file is reported with an error wrapping os.ErrNotExist.
func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("config.json not found at %s: %w", path, os.ErrNotExist)
		}
		return nil, "", fmt.Errorf("reading config.json: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing config.json: %w", err)
	}
	return &f, path, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty or unparseable.
func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	if f.DataURL != "" {
		cfg.DataURL = f.DataURL
	}
	if f.PredictionURL != "" {
		cfg.PredictionURL = f.PredictionURL
	}
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if f.Granularity != "" {
		if g, err := model.ParseGranularity(f.Granularity); err == nil {
			cfg.Granularity = g
		}
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	if f.RefreshInterval != "" {
		if d, err := time.ParseDuration(f.RefreshInterval); err == nil && d > 0 {
			cfg.RefreshInterval = d
		}
	}
	if f.Listen != "" {
		cfg.Listen = f.Listen
	}
	if len(f.CORSOrigins) > 0 {
		cfg.CORSOrigins = f.CORSOrigins
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.ForecastHorizon > 0 {
		cfg.ForecastHorizon = f.ForecastHorizon
	}
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `tubestats config init`.
func Template() File {
	return File{
		DataURL:         DefaultDataURL,
		PredictionURL:   DefaultPredictionURL,
		DefaultFormat:   DefaultFormat,
		Granularity:     string(model.Daily),
		Timeout:         "30s",
		Rate:            DefaultRate,
		RefreshInterval: "1h",
		Listen:          DefaultListen,
		ForecastHorizon: DefaultForecastHorizon,
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
