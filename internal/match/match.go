// Package match pairs Goodreads and Google Books records in tiers: explicit
// cross-reference, then ISBN-13, then the title and first-author key. A
// record consumed by one tier is not offered to the weaker ones.
package match

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/bookmerge/internal/identity"
	"github.com/lehigh-university-libraries/bookmerge/internal/records"
)

// Tier is the strategy that produced a match
type Tier int

const (
	TierNone Tier = iota
	TierExplicitID
	TierISBN13
	TierHeuristic
)

func (t Tier) String() string {
	switch t {
	case TierExplicitID:
		return "id"
	case TierISBN13:
		return "isbn13"
	case TierHeuristic:
		return "heuristic"
	default:
		return "none"
	}
}

// Tiers lists the matching tiers in priority order
var Tiers = []Tier{TierExplicitID, TierISBN13, TierHeuristic}

func (t Tier) key(keys identity.JoinKeys) string {
	switch t {
	case TierExplicitID:
		return keys.ExplicitID
	case TierISBN13:
		return keys.ISBN13
	case TierHeuristic:
		return keys.Heuristic
	}
	return ""
}

// Group associates at most one record from each source. Tier is TierNone for
// singletons.
type Group struct {
	Goodreads *records.NormalizedRecord
	Google    *records.NormalizedRecord
	Tier      Tier
	Ambiguous bool
}

// Paired reports whether both sources contributed
func (g Group) Paired() bool {
	return g.Goodreads != nil && g.Google != nil
}

// ErrAmbiguousMatch is the sentinel matched by every AmbiguousMatchError
var ErrAmbiguousMatch = errors.New("ambiguous match")

// AmbiguousMatchError reports a join key shared by more than one record on
// either side within a tier. None of the records involved are matched.
type AmbiguousMatchError struct {
	Tier         Tier
	Key          string
	GoodreadsIDs []string
	GoogleIDs    []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous %s match on %q: goodreads [%s] google [%s]",
		e.Tier, e.Key, strings.Join(e.GoodreadsIDs, ", "), strings.Join(e.GoogleIDs, ", "))
}

// Is reports whether target is ErrAmbiguousMatch
func (e *AmbiguousMatchError) Is(target error) bool {
	return target == ErrAmbiguousMatch
}

// Result is the outcome of Match
type Result struct {
	Groups      []Group
	Ambiguities []*AmbiguousMatchError
}

// Err joins every ambiguity, nil when there are none
func (r *Result) Err() error {
	errs := make([]error, len(r.Ambiguities))
	for i, a := range r.Ambiguities {
		errs[i] = a
	}
	return errors.Join(errs...)
}

// Pairs counts groups with a record from both sources
func (r *Result) Pairs() int {
	n := 0
	for _, g := range r.Groups {
		if g.Paired() {
			n++
		}
	}
	return n
}

type side struct {
	recs      []records.NormalizedRecord
	keys      []identity.JoinKeys
	partner   []int
	tier      []Tier
	ambiguous []bool
}

func newSide(recs []records.NormalizedRecord) *side {
	s := &side{
		recs:      recs,
		keys:      make([]identity.JoinKeys, len(recs)),
		partner:   make([]int, len(recs)),
		tier:      make([]Tier, len(recs)),
		ambiguous: make([]bool, len(recs)),
	}
	for i := range recs {
		s.keys[i] = identity.JoinKeysOf(&recs[i])
		s.partner[i] = -1
	}
	return s
}

func (s *side) available(i int) bool {
	return s.partner[i] < 0 && !s.ambiguous[i]
}

// index groups the available records by their key for tier, keeping keys in
// first-seen order.
func (s *side) index(t Tier) (map[string][]int, []string) {
	byKey := make(map[string][]int)
	var order []string
	for i := range s.recs {
		if !s.available(i) {
			continue
		}
		k := t.key(s.keys[i])
		if k == "" {
			continue
		}
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], i)
	}
	return byKey, order
}

func (s *side) ids(idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = s.recs[j].SourceID
	}
	return out
}

// Match groups goodreads and google records. Every input record appears in
// exactly one group. Groups are ordered by Goodreads input order followed by
// unmatched Google records in input order.
func Match(goodreads, google []records.NormalizedRecord) *Result {
	a := newSide(goodreads)
	b := newSide(google)
	result := &Result{}

	for _, tier := range Tiers {
		aIdx, order := a.index(tier)
		bIdx, _ := b.index(tier)

		matched := 0
		for _, key := range order {
			bs := bIdx[key]
			if len(bs) == 0 {
				continue
			}
			as := aIdx[key]
			if len(as) == 1 && len(bs) == 1 {
				a.partner[as[0]], b.partner[bs[0]] = bs[0], as[0]
				a.tier[as[0]], b.tier[bs[0]] = tier, tier
				matched++
				continue
			}

			for _, i := range as {
				a.ambiguous[i] = true
			}
			for _, j := range bs {
				b.ambiguous[j] = true
			}
			result.Ambiguities = append(result.Ambiguities, &AmbiguousMatchError{
				Tier:         tier,
				Key:          key,
				GoodreadsIDs: a.ids(as),
				GoogleIDs:    b.ids(bs),
			})
		}
		slog.Debug("Match tier complete", "tier", tier, "matched", matched, "ambiguities", len(result.Ambiguities))
	}

	result.Groups = make([]Group, 0, len(goodreads)+len(google))
	for i := range a.recs {
		g := Group{Goodreads: &a.recs[i], Tier: a.tier[i], Ambiguous: a.ambiguous[i]}
		if j := a.partner[i]; j >= 0 {
			g.Google = &b.recs[j]
		}
		result.Groups = append(result.Groups, g)
	}
	for j := range b.recs {
		if b.partner[j] >= 0 {
			continue
		}
		result.Groups = append(result.Groups, Group{Google: &b.recs[j], Ambiguous: b.ambiguous[j]})
	}

	return result
}
