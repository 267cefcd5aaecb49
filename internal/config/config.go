// Package config loads bookmerge settings from the environment, an optional
// YAML file and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. BOOKMERGE_WORKERS
const EnvPrefix = "BOOKMERGE"

// Config holds the settings of every command
type Config struct {
	GoodreadsPath     string `yaml:"goodreads_path" envconfig:"GOODREADS_PATH" default:"landing/goodreads_books.json"`
	GoogleParquetPath string `yaml:"google_parquet_path" envconfig:"GOOGLE_PARQUET_PATH" default:"landing/googlebooks_books.parquet"`
	GoogleCSVPath     string `yaml:"google_csv_path" envconfig:"GOOGLE_CSV_PATH" default:"landing/googlebooks_books.csv"`

	OutputDir       string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"standard"`
	MetricsPath     string `yaml:"metrics_path" envconfig:"METRICS_PATH" default:"docs/quality_metrics.json"`
	MetricsYAMLPath string `yaml:"metrics_yaml_path" envconfig:"METRICS_YAML_PATH"`
	SQLitePath      string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`

	AmbiguityPolicy string `yaml:"ambiguity_policy" envconfig:"AMBIGUITY_POLICY" default:"report"`
	Workers         int    `yaml:"workers" envconfig:"WORKERS" default:"4"`

	// Read from BOOKMERGE_GOOGLE_BOOKS_API_KEY, then GOOGLE_BOOKS_API_KEY.
	// Never read from the YAML file.
	GoogleBooksAPIKey string        `yaml:"-" envconfig:"GOOGLE_BOOKS_API_KEY"`
	EnrichMaxPages    int           `yaml:"enrich_max_pages" envconfig:"ENRICH_MAX_PAGES" default:"3"`
	EnrichMinScore    float64       `yaml:"enrich_min_score" envconfig:"ENRICH_MIN_SCORE" default:"20"`
	EnrichPause       time.Duration `yaml:"enrich_pause" envconfig:"ENRICH_PAUSE" default:"500ms"`
}

// Load reads defaults and environment variables, then overlays the YAML
// file at path when path is not empty. Flags are applied by the caller.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	return &cfg, nil
}

// Validate checks the merged settings
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.GoodreadsPath) == "" {
		errs = append(errs, errors.New("goodreads path is required"))
	}
	if strings.TrimSpace(c.GoogleParquetPath) == "" && strings.TrimSpace(c.GoogleCSVPath) == "" {
		errs = append(errs, errors.New("a google books parquet or csv path is required"))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, errors.New("output dir is required"))
	}
	switch c.AmbiguityPolicy {
	case "report", "skip", "abort":
	default:
		errs = append(errs, fmt.Errorf("ambiguity policy must be report, skip or abort, got %q", c.AmbiguityPolicy))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Workers))
	}
	if c.EnrichMaxPages < 1 {
		errs = append(errs, fmt.Errorf("enrich max pages must be >= 1, got %d", c.EnrichMaxPages))
	}
	if c.EnrichMinScore < 0 {
		errs = append(errs, fmt.Errorf("enrich min score must be >= 0, got %g", c.EnrichMinScore))
	}
	return errors.Join(errs...)
}
