package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/bookmerge/internal/config"
	"github.com/lehigh-university-libraries/bookmerge/internal/googlebooks"
	"github.com/lehigh-university-libraries/bookmerge/internal/normalize"
	"github.com/lehigh-university-libraries/bookmerge/internal/output"
	"github.com/lehigh-university-libraries/bookmerge/internal/records"
	"github.com/spf13/cobra"
)

func newEnrichCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Look up Goodreads books in the Google Books API",
		Long: `Search Google Books for every Goodreads record not yet present in the Google
Books landing file and append the best match, or a NOT_FOUND placeholder, so
that reruns only query new books.

The API key is read from GOOGLE_BOOKS_API_KEY (or BOOKMERGE_GOOGLE_BOOKS_API_KEY).
Without one, requests are sent unauthenticated with a lower quota.`,
		Example: `  bookmerge enrich --limit 50
  bookmerge enrich --min-score 40 --max-pages 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			return runEnrich(cmd, cfg, limit)
		},
	}

	addInputFlags(cmd)
	cmd.Flags().Int("limit", 0, "Maximum number of new books to look up (0 = all)")
	cmd.Flags().Float64("min-score", 0, "Minimum candidate score to accept a match")
	cmd.Flags().Int("max-pages", 0, "Result pages fetched per query")
	cmd.Flags().Duration("pause", 0, "Pause between books and between result pages")

	return cmd
}

func runEnrich(cmd *cobra.Command, cfg *config.Config, limit int) error {
	ctx := cmd.Context()

	goodreads, _, err := records.LoadGoodreads(cfg.GoodreadsPath)
	if err != nil {
		return err
	}

	existing, err := records.LoadGoogle(cfg.GoogleParquetPath, cfg.GoogleCSVPath)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, row := range existing {
		if ref := normalize.Text(row.GoodreadsIDRef); ref != "" {
			known[ref] = true
		}
	}

	pending := make([]records.GoodreadsRecord, 0, len(goodreads))
	for _, rec := range goodreads {
		if id := normalize.Text(rec.ID); id != "" && !known[id] {
			pending = append(pending, rec)
		}
	}
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	slog.Info("Books to enrich", "pending", len(pending), "already_known", len(known))
	if len(pending) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Google Books landing file is up to date")
		return nil
	}

	searcher, err := googlebooks.NewAPISearcher(ctx, cfg.GoogleBooksAPIKey)
	if err != nil {
		return err
	}

	opts := googlebooks.DefaultOptions()
	opts.MaxPages = cfg.EnrichMaxPages
	opts.MinScore = cfg.EnrichMinScore
	opts.Pause = cfg.EnrichPause

	added, stats, runErr := googlebooks.NewEnricher(searcher, opts).Enrich(ctx, pending, known)
	if runErr != nil && !errors.Is(runErr, ctx.Err()) {
		return runErr
	}

	// Partial results are kept on cancellation so the next run resumes.
	if len(added) > 0 {
		all := append(existing, added...)
		if err := output.SaveTable(cfg.GoogleParquetPath, cfg.GoogleCSVPath, records.GoogleColumns, all); err != nil {
			return fmt.Errorf("failed to save google books landing file: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Enrichment: %d found, %d not found, %d skipped\n", stats.Found, stats.NotFound, stats.Skipped)
	return runErr
}
