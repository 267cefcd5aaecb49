// Package pipeline drives a full reconciliation run: normalize both sources,
// match, merge each group, deduplicate and collect quality metrics.
package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/lehigh-university-libraries/bookmerge/internal/dedupe"
	"github.com/lehigh-university-libraries/bookmerge/internal/match"
	"github.com/lehigh-university-libraries/bookmerge/internal/normalize"
	"github.com/lehigh-university-libraries/bookmerge/internal/records"
	"github.com/lehigh-university-libraries/bookmerge/internal/survivor"
)

// Policy decides what a run does with ambiguous matches
type Policy string

const (
	// PolicyReport keeps ambiguous records as unmatched singletons
	PolicyReport Policy = "report"
	// PolicySkip leaves ambiguous records out of the canonical table
	PolicySkip Policy = "skip"
	// PolicyAbort fails the run
	PolicyAbort Policy = "abort"
)

// ParsePolicy validates a policy name
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyReport, PolicySkip, PolicyAbort:
		return p, nil
	}
	return "", fmt.Errorf("unknown ambiguity policy %q (expected report, skip or abort)", s)
}

// Options configures a Driver
type Options struct {
	Workers         int
	AmbiguityPolicy Policy
	RunID           string
	Now             func() time.Time
}

// Input is the pair of raw record sets for one run
type Input struct {
	Goodreads []records.GoodreadsRecord
	Google    []records.GoogleBooksRecord
	// CorruptLines counts landing-file lines dropped before the run
	CorruptLines int
}

// Result holds everything a run produces
type Result struct {
	Books       []records.CanonicalBook
	Provenance  []records.ProvenanceRecord
	Ambiguities []*match.AmbiguousMatchError
	FieldIssues []*normalize.FieldError
	Metrics     *Metrics
}

// Driver runs the reconciliation stages
type Driver struct {
	opts Options
}

// New creates a Driver, filling defaults for unset options
func New(opts Options) *Driver {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.AmbiguityPolicy == "" {
		opts.AmbiguityPolicy = PolicyReport
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Driver{opts: opts}
}

// Run reconciles in. Identity collisions always fail the run; ambiguous
// matches follow the configured policy.
func (d *Driver) Run(ctx context.Context, in Input) (*Result, error) {
	start := d.opts.Now()

	goodreads := make([]records.NormalizedRecord, len(in.Goodreads))
	if err := forEach(ctx, d.opts.Workers, len(in.Goodreads), func(i int) {
		goodreads[i] = normalize.Goodreads(in.Goodreads[i])
	}); err != nil {
		return nil, fmt.Errorf("failed to normalize goodreads records: %w", err)
	}

	google := make([]records.NormalizedRecord, len(in.Google))
	if err := forEach(ctx, d.opts.Workers, len(in.Google), func(i int) {
		google[i] = normalize.Google(in.Google[i])
	}); err != nil {
		return nil, fmt.Errorf("failed to normalize google records: %w", err)
	}

	issues := collectIssues(goodreads, google)
	slog.Info("Records normalized", "goodreads", len(goodreads), "google", len(google), "malformed_fields", len(issues))
	for _, issue := range issues {
		slog.Warn("Malformed field nulled", "source", issue.Source, "id", issue.RecordID, "field", issue.Field, "value", issue.Value)
	}

	matched := match.Match(goodreads, google)
	slog.Info("Records matched", "groups", len(matched.Groups), "pairs", matched.Pairs(), "ambiguous", len(matched.Ambiguities))
	for _, amb := range matched.Ambiguities {
		slog.Warn("Ambiguous match", "tier", amb.Tier.String(), "key", amb.Key, "goodreads", amb.GoodreadsIDs, "google", amb.GoogleIDs)
	}
	if d.opts.AmbiguityPolicy == PolicyAbort && len(matched.Ambiguities) > 0 {
		return nil, fmt.Errorf("aborting on %d ambiguous matches: %w", len(matched.Ambiguities), matched.Err())
	}

	books := make([]records.CanonicalBook, len(matched.Groups))
	provenance := make([]records.ProvenanceRecord, len(matched.Groups))
	if err := forEach(ctx, d.opts.Workers, len(matched.Groups), func(i int) {
		books[i], provenance[i] = survivor.Merge(matched.Groups[i])
	}); err != nil {
		return nil, fmt.Errorf("failed to merge match groups: %w", err)
	}
	for _, p := range provenance {
		if len(p.Conflicts) > 0 {
			slog.Warn("Sources disagree", "canonical_id", p.CanonicalID, "goodreads", p.SourceGoodreadsID, "google", p.SourceGoogleID, "fields", p.Conflicts)
		}
	}

	candidates := make([]int, 0, len(books))
	for i, g := range matched.Groups {
		if g.Ambiguous && d.opts.AmbiguityPolicy == PolicySkip {
			continue
		}
		candidates = append(candidates, i)
	}
	pool := make([]records.CanonicalBook, len(candidates))
	for i, j := range candidates {
		pool[i] = books[j]
	}

	winners, err := dedupe.Winners(pool)
	if err != nil {
		for _, e := range unwrapAll(err) {
			slog.Error("Identity collision", "err", e)
		}
		return nil, fmt.Errorf("failed to deduplicate: %w", err)
	}

	out := make([]records.CanonicalBook, len(winners))
	for i, w := range winners {
		out[i] = pool[w]
		provenance[candidates[w]].Retained = true
	}

	slices.SortFunc(out, func(a, b records.CanonicalBook) int {
		return cmp.Compare(a.CanonicalID, b.CanonicalID)
	})
	slices.SortStableFunc(provenance, func(a, b records.ProvenanceRecord) int {
		return cmp.Or(
			cmp.Compare(a.CanonicalID, b.CanonicalID),
			cmp.Compare(a.SourceGoodreadsID, b.SourceGoodreadsID),
			cmp.Compare(a.SourceGoogleID, b.SourceGoogleID),
		)
	})

	result := &Result{
		Books:       out,
		Provenance:  provenance,
		Ambiguities: matched.Ambiguities,
		FieldIssues: issues,
	}
	result.Metrics = computeMetrics(d.opts, in, matched, result, len(pool))

	slog.Info("Reconciliation complete",
		"rows_output", len(out),
		"duplicates_removed", result.Metrics.DuplicatesRemoved,
		"duration", d.opts.Now().Sub(start))
	return result, nil
}

func collectIssues(sets ...[]records.NormalizedRecord) []*normalize.FieldError {
	var out []*normalize.FieldError
	for _, set := range sets {
		for i := range set {
			for _, err := range set[i].Issues {
				var fe *normalize.FieldError
				if errors.As(err, &fe) {
					out = append(out, fe)
				}
			}
		}
	}
	return out
}

func unwrapAll(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
