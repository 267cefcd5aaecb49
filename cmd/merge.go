package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/bookmerge/internal/config"
	"github.com/lehigh-university-libraries/bookmerge/internal/output"
	"github.com/lehigh-university-libraries/bookmerge/internal/pipeline"
	"github.com/lehigh-university-libraries/bookmerge/internal/records"
	"github.com/spf13/cobra"
)

const (
	bookTable   = "dim_book"
	detailTable = "book_source_detail"
)

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Build the canonical book table from the landing files",
		Long: `Normalize the Goodreads and Google Books landing files, match records that
describe the same book, merge each match field by field and write:

  <output-dir>/dim_book.{parquet,csv}            one row per canonical book
  <output-dir>/book_source_detail.{parquet,csv}  provenance of every merge
  <metrics>                                      quality metrics as JSON`,
		Example: `  bookmerge merge
  bookmerge merge --goodreads landing/goodreads_books.json --output-dir standard
  bookmerge merge --ambiguity-policy abort --sqlite standard/books.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runMerge(cmd, cfg)
		},
	}

	addInputFlags(cmd)
	cmd.Flags().String("output-dir", "", "Directory for dim_book and book_source_detail")
	cmd.Flags().String("metrics", "", "Quality metrics JSON output path")
	cmd.Flags().String("metrics-yaml", "", "Optional quality metrics YAML output path")
	cmd.Flags().String("sqlite", "", "Optional SQLite database to write both tables into")
	cmd.Flags().String("ambiguity-policy", "", "What to do with ambiguous matches (report, skip, abort)")
	cmd.Flags().Int("workers", 0, "Parallel normalize and merge workers")

	return cmd
}

func runMerge(cmd *cobra.Command, cfg *config.Config) error {
	policy, err := pipeline.ParsePolicy(cfg.AmbiguityPolicy)
	if err != nil {
		return err
	}

	goodreads, stats, err := records.LoadGoodreads(cfg.GoodreadsPath)
	if err != nil {
		return err
	}
	slog.Info("Loaded Goodreads records", "path", cfg.GoodreadsPath, "records", stats.Records, "corrupt_lines", stats.Corrupt)

	google, err := records.LoadGoogle(cfg.GoogleParquetPath, cfg.GoogleCSVPath)
	if err != nil {
		return err
	}
	found := records.Found(google)
	slog.Info("Loaded Google Books records", "records", len(found), "placeholders", len(google)-len(found))

	driver := pipeline.New(pipeline.Options{
		Workers:         cfg.Workers,
		AmbiguityPolicy: policy,
		RunID:           uuid.NewString(),
		Now:             time.Now,
	})
	result, err := driver.Run(cmd.Context(), pipeline.Input{
		Goodreads:    goodreads,
		Google:       found,
		CorruptLines: stats.Corrupt,
	})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	if err := output.SaveTable(
		filepath.Join(cfg.OutputDir, bookTable+".parquet"),
		filepath.Join(cfg.OutputDir, bookTable+".csv"),
		records.CanonicalColumns, result.Books,
	); err != nil {
		return fmt.Errorf("failed to save %s: %w", bookTable, err)
	}
	if err := output.SaveTable(
		filepath.Join(cfg.OutputDir, detailTable+".parquet"),
		filepath.Join(cfg.OutputDir, detailTable+".csv"),
		records.ProvenanceColumns, result.Provenance,
	); err != nil {
		return fmt.Errorf("failed to save %s: %w", detailTable, err)
	}

	if cfg.SQLitePath != "" {
		if err := output.WriteSQLite(cfg.SQLitePath, result.Books, result.Provenance); err != nil {
			return err
		}
		slog.Info("Saved SQLite database", "path", cfg.SQLitePath)
	}

	if cfg.MetricsPath != "" {
		if err := output.SaveMetricsJSON(cfg.MetricsPath, result.Metrics); err != nil {
			return err
		}
	}
	if cfg.MetricsYAMLPath != "" {
		if err := output.SaveMetricsYAML(cfg.MetricsYAMLPath, result.Metrics); err != nil {
			return err
		}
	}

	result.Metrics.PrintSummary(cmd.OutOrStdout())
	return nil
}
