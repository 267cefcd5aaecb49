package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/bookmerge/internal/config"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var (
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "bookmerge",
		Short: "Reconcile Goodreads and Google Books catalogs into one canonical book table",
		Long: `Bookmerge resolves which Goodreads and Google Books records describe the same
book, merges them field by field and writes a deduplicated dimension table keyed
by a stable canonical id, along with a per-source detail table and quality metrics.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return setupLogger(logLevel, logFormat)
		},
	}

	cmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	// Add subcommands
	cmd.AddCommand(newMergeCmd())
	cmd.AddCommand(newEnrichCmd())
	cmd.AddCommand(newInspectCmd())

	return cmd
}

func setupLogger(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid --log-format %q (expected text or json)", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig reads environment and --config, then applies the flags the user
// set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	textFlags := map[string]*string{
		"goodreads":        &cfg.GoodreadsPath,
		"google-parquet":   &cfg.GoogleParquetPath,
		"google-csv":       &cfg.GoogleCSVPath,
		"output-dir":       &cfg.OutputDir,
		"metrics":          &cfg.MetricsPath,
		"metrics-yaml":     &cfg.MetricsYAMLPath,
		"sqlite":           &cfg.SQLitePath,
		"ambiguity-policy": &cfg.AmbiguityPolicy,
	}
	for name, dst := range textFlags {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	intFlags := map[string]*int{
		"workers":   &cfg.Workers,
		"max-pages": &cfg.EnrichMaxPages,
	}
	for name, dst := range intFlags {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	if flags.Lookup("min-score") != nil && flags.Changed("min-score") {
		cfg.EnrichMinScore, _ = flags.GetFloat64("min-score")
	}
	if flags.Lookup("pause") != nil && flags.Changed("pause") {
		cfg.EnrichPause, _ = flags.GetDuration("pause")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// addInputFlags registers the landing-file flags shared by every command
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("goodreads", "", "Goodreads JSON-lines landing file")
	cmd.Flags().String("google-parquet", "", "Google Books Parquet landing file")
	cmd.Flags().String("google-csv", "", "Google Books CSV landing file (';' separated)")
}
