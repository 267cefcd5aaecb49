// Package dedupe collapses canonical rows that share a canonical id.
package dedupe

import (
	"errors"
	"log/slog"

	"github.com/lehigh-university-libraries/bookmerge/internal/identity"
	"github.com/lehigh-university-libraries/bookmerge/internal/records"
)

// Score counts the non-null fields of a canonical row
func Score(b *records.CanonicalBook) int {
	n := 0
	for _, v := range b.Values() {
		if v != nil {
			n++
		}
	}
	return n
}

// better reports whether candidate should replace current as a group's
// representative. Earlier input wins remaining ties, so candidate (which
// always comes later) must be strictly better.
func better(candidate, current *records.CanonicalBook) bool {
	cs, ks := Score(candidate), Score(current)
	if cs != ks {
		return cs > ks
	}
	return candidate.SourcePreference == records.SourceGoodreads && current.SourcePreference != records.SourceGoodreads
}

// Winners returns the index of the retained row for each canonical id, in
// order of first appearance. Rows sharing a digest id but built from
// different identity components are reported as collisions.
func Winners(books []records.CanonicalBook) ([]int, error) {
	winner := make(map[string]int)
	keys := make(map[string][]identity.Key)
	var order []string

	for i := range books {
		id := books[i].CanonicalID
		keys[id] = append(keys[id], identity.KeyOfBook(&books[i]))

		current, seen := winner[id]
		if !seen {
			winner[id] = i
			order = append(order, id)
			continue
		}
		if better(&books[i], &books[current]) {
			slog.Debug("Duplicate replaces representative", "canonical_id", id, "kept", i, "dropped", current)
			winner[id] = i
		} else {
			slog.Debug("Duplicate dropped", "canonical_id", id, "kept", current, "dropped", i)
		}
	}

	var errs []error
	out := make([]int, len(order))
	for i, id := range order {
		out[i] = winner[id]
		if err := identity.CheckCollision(id, keys[id]); err != nil {
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

// Dedupe keeps one row per canonical id
func Dedupe(books []records.CanonicalBook) ([]records.CanonicalBook, error) {
	idx, err := Winners(books)
	if err != nil {
		return nil, err
	}
	out := make([]records.CanonicalBook, len(idx))
	for i, j := range idx {
		out[i] = books[j]
	}
	return out, nil
}
