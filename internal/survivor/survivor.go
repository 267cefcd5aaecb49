// Package survivor merges a match group into one canonical book, choosing a
// winning source per field.
package survivor

import (
	"github.com/lehigh-university-libraries/bookmerge/internal/identity"
	"github.com/lehigh-university-libraries/bookmerge/internal/match"
	"github.com/lehigh-university-libraries/bookmerge/internal/normalize"
	"github.com/lehigh-university-libraries/bookmerge/internal/records"
)

// Authority says which source a field is read from first
type Authority string

const (
	// AuthorityPreferred fields come from the more complete source
	AuthorityPreferred Authority = "preferred"
	// AuthoritySocial fields come from Goodreads
	AuthoritySocial Authority = "social"
	// AuthorityCommercial fields come from Google Books
	AuthorityCommercial Authority = "commercial"
	// AuthorityUnion fields merge both sources, Goodreads elements first
	AuthorityUnion Authority = "union"
)

// FieldAuthorities is the survivorship policy per canonical field
var FieldAuthorities = map[string]Authority{
	"isbn13":         AuthoritySocial,
	"isbn10":         AuthoritySocial,
	"title":          AuthorityPreferred,
	"publisher":      AuthorityPreferred,
	"pub_date":       AuthorityPreferred,
	"format":         AuthorityPreferred,
	"description":    AuthorityPreferred,
	"url":            AuthorityPreferred,
	"rating_value":   AuthoritySocial,
	"rating_count":   AuthoritySocial,
	"num_pages":      AuthoritySocial,
	"language":       AuthoritySocial,
	"price_amount":   AuthorityCommercial,
	"price_currency": AuthorityCommercial,
	"authors":        AuthorityUnion,
	"categories":     AuthorityUnion,
}

// Completeness counts the non-null fields a record contributes. A missing
// record scores zero.
func Completeness(rec *records.NormalizedRecord) int {
	if rec == nil {
		return 0
	}
	n := 0
	for _, present := range []bool{
		rec.Title != "",
		len(rec.Authors) > 0,
		rec.Publisher != "",
		rec.PubDate != "",
		rec.Language != "",
		len(rec.Categories) > 0,
		rec.NumPages != nil,
		rec.Format != "",
		rec.Description != "",
		rec.RatingValue != nil,
		rec.RatingCount != nil,
		rec.PriceAmount != nil,
		rec.PriceCurrency != "",
		rec.ISBN13 != "",
		rec.ISBN10 != "",
		rec.URL != "",
	} {
		if present {
			n++
		}
	}
	return n
}

// Preference returns the source driving the descriptive fields. Ties go to
// Goodreads.
func Preference(g match.Group) records.Source {
	if g.Goodreads == nil {
		return records.SourceGoogle
	}
	if g.Google != nil && Completeness(g.Google) > Completeness(g.Goodreads) {
		return records.SourceGoogle
	}
	return records.SourceGoodreads
}

// merger holds the two sides of a group with nil replaced by an empty record
type merger struct {
	goodreads *records.NormalizedRecord
	google    *records.NormalizedRecord
	preferred records.Source
	conflicts []string
}

func (m *merger) order(field string) (first, second *records.NormalizedRecord) {
	switch FieldAuthorities[field] {
	case AuthorityCommercial:
		return m.google, m.goodreads
	case AuthorityPreferred:
		if m.preferred == records.SourceGoogle {
			return m.google, m.goodreads
		}
	}
	return m.goodreads, m.google
}

func (m *merger) text(field string, get func(*records.NormalizedRecord) string, same func(a, b string) bool) string {
	first, second := m.order(field)
	a, b := get(first), get(second)
	if a == "" {
		return b
	}
	if b != "" && !same(a, b) {
		m.conflicts = append(m.conflicts, field)
	}
	return a
}

func (m *merger) float(field string, get func(*records.NormalizedRecord) *float64) *float64 {
	first, second := m.order(field)
	a, b := get(first), get(second)
	if a == nil {
		return b
	}
	if b != nil && *a != *b {
		m.conflicts = append(m.conflicts, field)
	}
	return a
}

func (m *merger) int(field string, get func(*records.NormalizedRecord) *int64) *int64 {
	first, second := m.order(field)
	a, b := get(first), get(second)
	if a == nil {
		return b
	}
	if b != nil && *a != *b {
		m.conflicts = append(m.conflicts, field)
	}
	return a
}

func exact(a, b string) bool {
	return a == b
}

func sameKey(a, b string) bool {
	return normalize.Key(a) == normalize.Key(b)
}

// Merge produces the canonical book for a group and its provenance record
func Merge(g match.Group) (records.CanonicalBook, records.ProvenanceRecord) {
	m := &merger{
		goodreads: orEmpty(g.Goodreads),
		google:    orEmpty(g.Google),
		preferred: Preference(g),
	}

	book := records.CanonicalBook{
		ISBN13:                 m.text("isbn13", func(r *records.NormalizedRecord) string { return r.ISBN13 }, exact),
		ISBN10:                 m.text("isbn10", func(r *records.NormalizedRecord) string { return r.ISBN10 }, exact),
		Title:                  m.text("title", func(r *records.NormalizedRecord) string { return r.Title }, sameKey),
		Publisher:              m.text("publisher", func(r *records.NormalizedRecord) string { return r.Publisher }, sameKey),
		PubDate:                m.text("pub_date", func(r *records.NormalizedRecord) string { return r.PubDate }, exact),
		Format:                 m.text("format", func(r *records.NormalizedRecord) string { return r.Format }, sameKey),
		Description:            m.text("description", func(r *records.NormalizedRecord) string { return r.Description }, exact),
		Language:               m.text("language", func(r *records.NormalizedRecord) string { return r.Language }, exact),
		NumPages:               m.int("num_pages", func(r *records.NormalizedRecord) *int64 { return r.NumPages }),
		RatingValue:            m.float("rating_value", func(r *records.NormalizedRecord) *float64 { return r.RatingValue }),
		RatingCount:            m.int("rating_count", func(r *records.NormalizedRecord) *int64 { return r.RatingCount }),
		MostCompleteURL:        m.text("url", func(r *records.NormalizedRecord) string { return r.URL }, exact),
		SourcePreference:       m.preferred,
		IngestionDateGoodreads: m.goodreads.IngestionDate,
		IngestionDateGoogle:    m.google.IngestionDate,
	}
	book.PriceAmount, book.PriceCurrency = m.price()

	authors := normalize.Union(m.goodreads.Authors, m.google.Authors)
	book.Authors = normalize.JoinList(authors)
	if len(authors) > 0 {
		book.FirstAuthor = authors[0]
	}
	book.Categories = normalize.JoinList(normalize.Union(m.goodreads.Categories, m.google.Categories))
	book.TitleNormalized = normalize.Key(book.Title)
	book.PubYear = normalize.Year(book.PubDate)
	book.CanonicalID = identity.KeyOfBook(&book).ID()

	prov := records.ProvenanceRecord{
		CanonicalID:           book.CanonicalID,
		SourceGoodreadsID:     m.goodreads.SourceID,
		SourceGoogleID:        m.google.SourceID,
		CompletenessGoodreads: int64(Completeness(g.Goodreads)),
		CompletenessGoogle:    int64(Completeness(g.Google)),
		ChosenSource:          m.preferred,
		MatchTier:             g.Tier.String(),
		Ambiguous:             g.Ambiguous,
		Conflicts:             m.conflicts,
	}
	return book, prov
}

// price takes amount and currency together from the first source that has
// either, so an amount is never paired with another source's currency.
func (m *merger) price() (*float64, string) {
	first, second := m.order("price_amount")
	for _, rec := range []*records.NormalizedRecord{first, second} {
		if rec.PriceAmount != nil || rec.PriceCurrency != "" {
			if rec == first && second.PriceAmount != nil && rec.PriceAmount != nil && *second.PriceAmount != *rec.PriceAmount {
				m.conflicts = append(m.conflicts, "price_amount")
			}
			return rec.PriceAmount, rec.PriceCurrency
		}
	}
	return nil, ""
}

func orEmpty(rec *records.NormalizedRecord) *records.NormalizedRecord {
	if rec == nil {
		return &records.NormalizedRecord{}
	}
	return rec
}
