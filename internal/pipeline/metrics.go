package pipeline

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/bookmerge/internal/match"
)

// Metrics summarizes the quality of one run
type Metrics struct {
	GeneratedAt            string         `json:"generated_at" yaml:"generated_at"`
	RunID                  string         `json:"run_id" yaml:"run_id"`
	AmbiguityPolicy        string         `json:"ambiguity_policy" yaml:"ambiguity_policy"`
	RowsInputGoodreads     int            `json:"rows_input_goodreads" yaml:"rows_input_goodreads"`
	RowsInputGoogle        int            `json:"rows_input_google" yaml:"rows_input_google"`
	CorruptInputLines      int            `json:"corrupt_input_lines" yaml:"corrupt_input_lines"`
	MatchGroups            int            `json:"match_groups" yaml:"match_groups"`
	MatchedPairs           int            `json:"matched_pairs" yaml:"matched_pairs"`
	MatchesByTier          map[string]int `json:"matches_by_tier" yaml:"matches_by_tier"`
	AmbiguousMatches       int            `json:"ambiguous_matches" yaml:"ambiguous_matches"`
	RowsOutput             int            `json:"rows_output" yaml:"rows_output"`
	DuplicatesRemoved      int            `json:"duplicates_removed" yaml:"duplicates_removed"`
	PercentWithISBN13      float64        `json:"percent_with_isbn13" yaml:"percent_with_isbn13"`
	PercentWithISBN10      float64        `json:"percent_with_isbn10" yaml:"percent_with_isbn10"`
	PercentWithCategories  float64        `json:"percent_with_categories" yaml:"percent_with_categories"`
	PercentWithPubDate     float64        `json:"percent_with_pub_date" yaml:"percent_with_pub_date"`
	SourcePreferenceCounts map[string]int `json:"source_preference_counts" yaml:"source_preference_counts"`
	MalformedFields        map[string]int `json:"malformed_fields" yaml:"malformed_fields"`
}

func computeMetrics(opts Options, in Input, matched *match.Result, result *Result, candidates int) *Metrics {
	m := &Metrics{
		GeneratedAt:            opts.Now().UTC().Format(time.RFC3339),
		RunID:                  opts.RunID,
		AmbiguityPolicy:        string(opts.AmbiguityPolicy),
		RowsInputGoodreads:     len(in.Goodreads),
		RowsInputGoogle:        len(in.Google),
		CorruptInputLines:      in.CorruptLines,
		MatchGroups:            len(matched.Groups),
		MatchedPairs:           matched.Pairs(),
		MatchesByTier:          make(map[string]int),
		AmbiguousMatches:       len(matched.Ambiguities),
		RowsOutput:             len(result.Books),
		DuplicatesRemoved:      candidates - len(result.Books),
		SourcePreferenceCounts: make(map[string]int),
		MalformedFields:        make(map[string]int),
	}

	for _, tier := range match.Tiers {
		m.MatchesByTier[tier.String()] = 0
	}
	for _, g := range matched.Groups {
		if g.Paired() {
			m.MatchesByTier[g.Tier.String()]++
		}
	}

	var isbn13, isbn10, categories, pubDate int
	for _, b := range result.Books {
		m.SourcePreferenceCounts[string(b.SourcePreference)]++
		if b.ISBN13 != "" {
			isbn13++
		}
		if b.ISBN10 != "" {
			isbn10++
		}
		if b.Categories != "" {
			categories++
		}
		if b.PubDate != "" {
			pubDate++
		}
	}
	m.PercentWithISBN13 = percent(isbn13, len(result.Books))
	m.PercentWithISBN10 = percent(isbn10, len(result.Books))
	m.PercentWithCategories = percent(categories, len(result.Books))
	m.PercentWithPubDate = percent(pubDate, len(result.Books))

	for _, issue := range result.FieldIssues {
		m.MalformedFields[issue.Field]++
	}
	return m
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*10000) / 100
}

// PrintSummary writes a human-readable summary of the run
func (m *Metrics) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(w, "BOOK RECONCILIATION SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "Generated: %s\n", m.GeneratedAt)
	fmt.Fprintf(w, "Run ID: %s\n", m.RunID)
	fmt.Fprintf(w, "Ambiguity Policy: %s\n", m.AmbiguityPolicy)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "INPUT")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Goodreads Records: %d\n", m.RowsInputGoodreads)
	fmt.Fprintf(w, "Google Books Records: %d\n", m.RowsInputGoogle)
	fmt.Fprintf(w, "Corrupt Lines Skipped: %d\n", m.CorruptInputLines)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "MATCHING")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Match Groups: %d\n", m.MatchGroups)
	fmt.Fprintf(w, "Matched Pairs: %d\n", m.MatchedPairs)
	for _, tier := range match.Tiers {
		fmt.Fprintf(w, "  %-10s %d\n", tier.String()+":", m.MatchesByTier[tier.String()])
	}
	fmt.Fprintf(w, "Ambiguous Matches: %d\n", m.AmbiguousMatches)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "OUTPUT")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Canonical Rows: %d\n", m.RowsOutput)
	fmt.Fprintf(w, "Duplicates Removed: %d\n", m.DuplicatesRemoved)
	fmt.Fprintf(w, "With ISBN-13: %.2f%%\n", m.PercentWithISBN13)
	fmt.Fprintf(w, "With ISBN-10: %.2f%%\n", m.PercentWithISBN10)
	fmt.Fprintf(w, "With Categories: %.2f%%\n", m.PercentWithCategories)
	fmt.Fprintf(w, "With Publication Date: %.2f%%\n", m.PercentWithPubDate)
	for _, source := range sortedKeys(m.SourcePreferenceCounts) {
		fmt.Fprintf(w, "Preferred %s: %d\n", source, m.SourcePreferenceCounts[source])
	}

	if len(m.MalformedFields) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "MALFORMED FIELDS (nulled)")
		fmt.Fprintln(w, strings.Repeat("-", 70))
		for _, field := range sortedKeys(m.MalformedFields) {
			fmt.Fprintf(w, "%s: %d\n", field, m.MalformedFields[field])
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", 70))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
