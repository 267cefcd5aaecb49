package survivor

import (
	"testing"

	"github.com/lehigh-university-libraries/bookmerge/internal/match"
	"github.com/lehigh-university-libraries/bookmerge/internal/normalize"
	"github.com/lehigh-university-libraries/bookmerge/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }
func n(v int64) *int64     { return &v }

func TestCompleteness(t *testing.T) {
	assert.Equal(t, 0, Completeness(nil))
	assert.Equal(t, 0, Completeness(&records.NormalizedRecord{SourceID: "x", IngestionDate: "2024-01-01"}))
	assert.Equal(t, 3, Completeness(&records.NormalizedRecord{Title: "t", Authors: []string{"a"}, RatingValue: f(4)}))
}

func TestMergeCleanCode(t *testing.T) {
	goodreads := normalize.Goodreads(records.GoodreadsRecord{
		ID:      "gr1",
		Title:   "Clean Code",
		Authors: records.StringList{"Robert C. Martin"},
		PubDate: "2008",
	})
	google := normalize.Google(records.GoogleBooksRecord{
		GBID:          "gb1",
		Title:         "Clean Code",
		Authors:       "Robert C. Martin",
		ISBN13:        "9780132350884",
		PriceAmount:   f(35.50),
		PriceCurrency: "$",
	})

	book, prov := Merge(match.Group{Goodreads: &goodreads, Google: &google, Tier: match.TierHeuristic})

	assert.Equal(t, "9780132350884", book.CanonicalID)
	assert.Equal(t, "USD", book.PriceCurrency)
	require.NotNil(t, book.PriceAmount)
	assert.InDelta(t, 35.50, *book.PriceAmount, 1e-9)
	assert.Equal(t, records.SourceGoogle, book.SourcePreference, "google contributes more fields")
	assert.Equal(t, "2008", book.PubDate)
	require.NotNil(t, book.PubYear)
	assert.Equal(t, int64(2008), *book.PubYear)
	assert.Equal(t, "Robert C. Martin", book.Authors)
	assert.Equal(t, "clean code", book.TitleNormalized)

	assert.Equal(t, "gr1", prov.SourceGoodreadsID)
	assert.Equal(t, "gb1", prov.SourceGoogleID)
	assert.Equal(t, int64(3), prov.CompletenessGoodreads)
	assert.Equal(t, int64(5), prov.CompletenessGoogle)
	assert.Equal(t, records.SourceGoogle, prov.ChosenSource)
	assert.Equal(t, "heuristic", prov.MatchTier)
	assert.Empty(t, prov.Conflicts)
}

func TestMergeTieBreaksToGoodreads(t *testing.T) {
	goodreads := &records.NormalizedRecord{Source: records.SourceGoodreads, SourceID: "1", Title: "Dune", Publisher: "Chilton", URL: "https://goodreads/1"}
	google := &records.NormalizedRecord{Source: records.SourceGoogle, SourceID: "g1", Title: "Dune (Deluxe)", Publisher: "Ace", URL: "https://books.google/g1"}

	book, prov := Merge(match.Group{Goodreads: goodreads, Google: google, Tier: match.TierExplicitID})

	assert.Equal(t, records.SourceGoodreads, book.SourcePreference)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "Chilton", book.Publisher)
	assert.Equal(t, "https://goodreads/1", book.MostCompleteURL)
	assert.Equal(t, []string{"title", "publisher", "url"}, prov.Conflicts)
}

func TestMergeFieldAuthorities(t *testing.T) {
	goodreads := &records.NormalizedRecord{
		Source:        records.SourceGoodreads,
		SourceID:      "1",
		Title:         "Dune",
		Authors:       []string{"Frank Herbert"},
		Categories:    []string{"Science Fiction", "Classics"},
		RatingValue:   f(4.3),
		NumPages:      n(412),
		PriceAmount:   f(9.99),
		PriceCurrency: "USD",
		IngestionDate: "2024-05-01",
	}
	google := &records.NormalizedRecord{
		Source:        records.SourceGoogle,
		SourceID:      "g1",
		Title:         "Dune",
		Authors:       []string{"frank herbert", "Brian Herbert"},
		Categories:    []string{"Fiction", "classics"},
		Publisher:     "Ace",
		Description:   "Set on the desert planet Arrakis.",
		Language:      "en",
		RatingValue:   f(4.0),
		RatingCount:   n(1200),
		NumPages:      n(896),
		PriceAmount:   f(12.5),
		PriceCurrency: "EUR",
		ISBN13:        "9780441172719",
		IngestionDate: "2024-05-02",
	}

	book, prov := Merge(match.Group{Goodreads: goodreads, Google: google, Tier: match.TierHeuristic})

	assert.Equal(t, records.SourceGoogle, book.SourcePreference)
	assert.Equal(t, "Ace", book.Publisher)
	assert.Equal(t, "Set on the desert planet Arrakis.", book.Description)

	// social fields from goodreads, falling back to google when null
	assert.Equal(t, 4.3, *book.RatingValue)
	assert.Equal(t, int64(412), *book.NumPages)
	assert.Equal(t, int64(1200), *book.RatingCount)
	assert.Equal(t, "en", book.Language)

	// commercial pair from google
	assert.Equal(t, 12.5, *book.PriceAmount)
	assert.Equal(t, "EUR", book.PriceCurrency)

	assert.Equal(t, "Frank Herbert|Brian Herbert", book.Authors)
	assert.Equal(t, "Frank Herbert", book.FirstAuthor)
	assert.Equal(t, "Science Fiction|Classics|Fiction", book.Categories)
	assert.Equal(t, "9780441172719", book.CanonicalID)
	assert.Equal(t, "2024-05-01", book.IngestionDateGoodreads)
	assert.Equal(t, "2024-05-02", book.IngestionDateGoogle)

	assert.ElementsMatch(t, []string{"num_pages", "rating_value", "price_amount"}, prov.Conflicts)
}

func TestMergeSingleton(t *testing.T) {
	google := &records.NormalizedRecord{Source: records.SourceGoogle, SourceID: "g1", Title: "Orphan", FirstAuthor: "Nobody", Authors: []string{"Nobody"}, IngestionDate: "2024-05-02"}

	book, prov := Merge(match.Group{Google: google})

	assert.Equal(t, records.SourceGoogle, book.SourcePreference)
	assert.Len(t, book.CanonicalID, 40)
	assert.Empty(t, book.IngestionDateGoodreads)
	assert.Equal(t, "2024-05-02", book.IngestionDateGoogle)
	assert.Equal(t, int64(0), prov.CompletenessGoodreads)
	assert.Equal(t, "none", prov.MatchTier)
	assert.Empty(t, prov.SourceGoodreadsID)
}

func TestMergeCanonicalIDMatchesResolve(t *testing.T) {
	goodreads := normalize.Goodreads(records.GoodreadsRecord{ID: "7", Title: "The Hobbit", Authors: records.StringList{"J.R.R. Tolkien"}, Publisher: "Allen & Unwin", PubDate: "1937-09-21"})

	book, _ := Merge(match.Group{Goodreads: &goodreads})
	again, _ := Merge(match.Group{Goodreads: &goodreads})

	assert.Equal(t, book.CanonicalID, again.CanonicalID)
	assert.Len(t, book.CanonicalID, 40)
}
