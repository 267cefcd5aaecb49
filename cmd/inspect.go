package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/lehigh-university-libraries/bookmerge/internal/identity"
	"github.com/lehigh-university-libraries/bookmerge/internal/normalize"
	"github.com/lehigh-university-libraries/bookmerge/internal/records"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var (
		source string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show how landing records normalize and which keys they match on",
		Long: `Print records from a landing file after normalization, together with the
join keys each matching tier would use, the canonical id the record alone
would resolve to and every field that failed to normalize.

Useful for finding out why two records did or did not match.`,
		Example: `  # First 10 Goodreads records
  bookmerge inspect

  # Every Google Books record
  bookmerge inspect --source google --limit 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var normalized []records.NormalizedRecord
			switch records.Source(source) {
			case records.SourceGoodreads:
				raw, _, err := records.LoadGoodreads(cfg.GoodreadsPath)
				if err != nil {
					return err
				}
				for _, r := range raw {
					normalized = append(normalized, normalize.Goodreads(r))
				}
			case records.SourceGoogle:
				raw, err := records.LoadGoogle(cfg.GoogleParquetPath, cfg.GoogleCSVPath)
				if err != nil {
					return err
				}
				for _, r := range records.Found(raw) {
					normalized = append(normalized, normalize.Google(r))
				}
			default:
				return fmt.Errorf("--source must be goodreads or google, got %q", source)
			}

			if limit > 0 && len(normalized) > limit {
				normalized = normalized[:limit]
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %d %s records\n", len(normalized), source)
			fmt.Fprintln(out, strings.Repeat("=", 80))
			fmt.Fprintln(out)

			ctx := cmd.Context()
			for i := range normalized {
				select {
				case <-ctx.Done():
					fmt.Fprintln(out, "\nInspection interrupted.")
					return nil
				default:
				}

				fmt.Fprintf(out, "RECORD %d/%d\n", i+1, len(normalized))
				fmt.Fprintln(out, strings.Repeat("-", 80))
				printRecord(out, &normalized[i])
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	addInputFlags(cmd)
	cmd.Flags().StringVar(&source, "source", string(records.SourceGoodreads), "Landing file to inspect (goodreads, google)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of records to show (0 for all)")

	return cmd
}

func printRecord(w io.Writer, rec *records.NormalizedRecord) {
	fmt.Fprintf(w, "Source ID:      %s\n", rec.SourceID)
	if rec.GoodreadsRef != "" {
		fmt.Fprintf(w, "Goodreads Ref:  %s\n", rec.GoodreadsRef)
	}
	fmt.Fprintf(w, "Title:          %s\n", rec.Title)
	fmt.Fprintf(w, "Authors:        %s\n", strings.Join(rec.Authors, " | "))
	fmt.Fprintf(w, "Publisher:      %s\n", rec.Publisher)
	fmt.Fprintf(w, "Pub Date:       %s\n", rec.PubDate)
	fmt.Fprintf(w, "Language:       %s\n", rec.Language)
	fmt.Fprintf(w, "Categories:     %s\n", strings.Join(rec.Categories, " | "))
	fmt.Fprintf(w, "ISBN-13:        %s\n", rec.ISBN13)
	fmt.Fprintf(w, "ISBN-10:        %s\n", rec.ISBN10)
	if rec.PriceAmount != nil {
		fmt.Fprintf(w, "Price:          %.2f %s\n", *rec.PriceAmount, rec.PriceCurrency)
	}

	keys := identity.JoinKeysOf(rec)
	fmt.Fprintln(w, "Join keys:")
	fmt.Fprintf(w, "  id:           %s\n", keys.ExplicitID)
	fmt.Fprintf(w, "  isbn13:       %s\n", keys.ISBN13)
	fmt.Fprintf(w, "  heuristic:    %s\n", keys.Heuristic)
	fmt.Fprintf(w, "Canonical ID:   %s\n", identity.Resolve(rec))

	if len(rec.Issues) > 0 {
		fmt.Fprintf(w, "Issues (%d):\n", len(rec.Issues))
		for _, issue := range rec.Issues {
			fmt.Fprintf(w, "  - %v\n", issue)
		}
	}
}
