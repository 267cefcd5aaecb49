package identity

import (
	"github.com/lehigh-university-libraries/bookmerge/internal/normalize"
	"github.com/lehigh-university-libraries/bookmerge/internal/records"
)

// JoinKeys are the values a record offers to each matching tier. Empty means
// the record cannot take part in that tier.
type JoinKeys struct {
	// ExplicitID is the Goodreads id: its own for Goodreads records, the
	// enrichment's cross-reference for Google records.
	ExplicitID string
	ISBN13     string
	Heuristic  string
}

// JoinKeysOf returns the join keys of a normalized record
func JoinKeysOf(rec *records.NormalizedRecord) JoinKeys {
	keys := JoinKeys{
		ISBN13:    rec.ISBN13,
		Heuristic: HeuristicKey(rec),
	}
	switch rec.Source {
	case records.SourceGoodreads:
		keys.ExplicitID = rec.SourceID
	case records.SourceGoogle:
		keys.ExplicitID = rec.GoodreadsRef
	}
	return keys
}

// HeuristicKey is title_normalized + "|" + first author in key form. Both
// parts are required.
func HeuristicKey(rec *records.NormalizedRecord) string {
	title := rec.TitleNormalized
	author := normalize.Key(rec.FirstAuthor)
	if title == "" || author == "" {
		return ""
	}
	return title + "|" + author
}
