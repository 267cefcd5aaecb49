package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Source identifies which catalog a record was extracted from.
type Source string

const (
	// SourceGoodreads is the social catalog (ratings, page counts, language).
	SourceGoodreads Source = "goodreads"
	// SourceGoogle is the commercial catalog (identifiers, prices).
	SourceGoogle Source = "google"
)

// StringList decodes from a JSON array of strings or from a single delimited
// string. Null array elements are dropped.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler
func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	}

	var items []*string
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return fmt.Errorf("expected string or array of strings: %w", err)
	}

	out := make(StringList, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	*l = out
	return nil
}

// Number holds a numeric field as scraped: a JSON number, a numeric string, or
// null. Raw keeps the original text when it could not be parsed so the
// normalizer can report it.
type Number struct {
	Value float64
	Valid bool
	Raw   string
}

// UnmarshalJSON implements json.Unmarshaler
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*n = ParseNumber(s)
		return nil
	}

	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil {
		n.Raw = string(trimmed)
		return nil
	}
	n.Value = f
	n.Valid = true
	return nil
}

// ParseNumber parses a numeric string, accepting a comma decimal separator.
// Empty and NaN-like strings are null; anything else unparseable keeps Raw.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none":
		return Number{}
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return Number{Raw: s}
	}
	return Number{Value: f, Valid: true}
}

// Present reports whether the source supplied anything at all.
func (n Number) Present() bool {
	return n.Valid || n.Raw != ""
}

// GoodreadsRecord is one book as scraped from Goodreads
type GoodreadsRecord struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Authors       StringList `json:"authors"`
	Publisher     string     `json:"publisher"`
	PubDate       string     `json:"pub_date"`
	Language      string     `json:"language"`
	Categories    StringList `json:"categories"`
	NumPages      Number     `json:"num_pages"`
	Format        string     `json:"format"`
	Description   string     `json:"description"`
	Desc          string     `json:"desc"` // legacy scraper key
	RatingValue   Number     `json:"rating_value"`
	RatingCount   Number     `json:"rating_count"`
	PriceAmount   Number     `json:"price_amount"`
	PriceCurrency string     `json:"price_currency"`
	ISBN13        string     `json:"isbn13"`
	ISBN10        string     `json:"isbn10"`
	ISBN          string     `json:"isbn"` // legacy scraper key for ISBN-10
	URL           string     `json:"url"`
	IngestionDate string     `json:"ingestion_date"`
}

// DescriptionText returns the description, falling back to the legacy key
func (r *GoodreadsRecord) DescriptionText() string {
	if strings.TrimSpace(r.Description) != "" {
		return r.Description
	}
	return r.Desc
}

// ISBN10Text returns the ISBN-10, falling back to the legacy key
func (r *GoodreadsRecord) ISBN10Text() string {
	if strings.TrimSpace(r.ISBN10) != "" {
		return r.ISBN10
	}
	return r.ISBN
}

// GoogleBooksRecord is one volume as produced by the Google Books enrichment.
// Authors and Categories keep the enrichment's " | " delimited form.
type GoogleBooksRecord struct {
	GBID           string   `json:"gb_id" parquet:"gb_id"`
	GoodreadsIDRef string   `json:"goodreads_id_ref,omitempty" parquet:"goodreads_id_ref,optional"`
	Title          string   `json:"title,omitempty" parquet:"title,optional"`
	Authors        string   `json:"authors,omitempty" parquet:"authors,optional"`
	Publisher      string   `json:"publisher,omitempty" parquet:"publisher,optional"`
	PubDate        string   `json:"pub_date,omitempty" parquet:"pub_date,optional"`
	Language       string   `json:"language,omitempty" parquet:"language,optional"`
	Categories     string   `json:"categories,omitempty" parquet:"categories,optional"`
	PageCount      *int64   `json:"page_count,omitempty" parquet:"page_count,optional"`
	ISBN13         string   `json:"isbn13,omitempty" parquet:"isbn13,optional"`
	ISBN10         string   `json:"isbn10,omitempty" parquet:"isbn10,optional"`
	AverageRating  *float64 `json:"average_rating,omitempty" parquet:"average_rating,optional"`
	RatingsCount   *int64   `json:"ratings_count,omitempty" parquet:"ratings_count,optional"`
	PriceAmount    *float64 `json:"price_amount,omitempty" parquet:"price_amount,optional"`
	PriceCurrency  string   `json:"price_currency,omitempty" parquet:"price_currency,optional"`
	Description    string   `json:"description,omitempty" parquet:"description,optional"`
	URL            string   `json:"url,omitempty" parquet:"url,optional"`
	IngestionDate  string   `json:"ingestion_date,omitempty" parquet:"ingestion_date,optional"`

	// Unparsed maps a numeric column to the CSV text that did not fit its
	// type. The normalizer reports each entry as a malformed field.
	Unparsed map[string]string `json:"-" parquet:"-"`
}

// GoogleColumns is the landing-file column order for GoogleBooksRecord
var GoogleColumns = []string{
	"gb_id", "goodreads_id_ref", "title", "authors", "publisher", "pub_date",
	"language", "categories", "page_count", "isbn13", "isbn10", "average_rating",
	"ratings_count", "price_amount", "price_currency", "description", "url",
	"ingestion_date",
}

// Values returns the record's cells in GoogleColumns order, nil for null
func (r GoogleBooksRecord) Values() []any {
	return []any{
		r.GBID, str(r.GoodreadsIDRef), str(r.Title), str(r.Authors), str(r.Publisher),
		str(r.PubDate), str(r.Language), str(r.Categories), i64(r.PageCount),
		str(r.ISBN13), str(r.ISBN10), f64(r.AverageRating), i64(r.RatingsCount),
		f64(r.PriceAmount), str(r.PriceCurrency), str(r.Description), str(r.URL),
		str(r.IngestionDate),
	}
}

// NormalizedRecord is a source record after field normalization. Both
// variants share this shape; Source says which one it is. Empty strings and
// nil pointers are null.
type NormalizedRecord struct {
	Source          Source
	SourceID        string
	GoodreadsRef    string // Google only: Goodreads id linked by the enrichment
	Title           string
	TitleNormalized string
	Authors         []string
	FirstAuthor     string
	Publisher       string
	PubDate         string
	PubYear         *int64
	Language        string
	Categories      []string
	NumPages        *int64
	Format          string
	Description     string
	RatingValue     *float64
	RatingCount     *int64
	PriceAmount     *float64
	PriceCurrency   string
	ISBN13          string
	ISBN10          string
	URL             string
	IngestionDate   string

	// Issues holds the malformed-field findings absorbed during normalization
	Issues []error
}

// CanonicalBook is one row of the deduplicated dimension table
type CanonicalBook struct {
	CanonicalID            string   `json:"canonical_id" parquet:"canonical_id"`
	ISBN13                 string   `json:"isbn13,omitempty" parquet:"isbn13,optional"`
	ISBN10                 string   `json:"isbn10,omitempty" parquet:"isbn10,optional"`
	Title                  string   `json:"title,omitempty" parquet:"title,optional"`
	TitleNormalized        string   `json:"title_normalized,omitempty" parquet:"title_normalized,optional"`
	Authors                string   `json:"authors,omitempty" parquet:"authors,optional"`
	FirstAuthor            string   `json:"first_author,omitempty" parquet:"first_author,optional"`
	Publisher              string   `json:"publisher,omitempty" parquet:"publisher,optional"`
	PubDate                string   `json:"pub_date,omitempty" parquet:"pub_date,optional"`
	PubYear                *int64   `json:"pub_year,omitempty" parquet:"pub_year,optional"`
	Language               string   `json:"language,omitempty" parquet:"language,optional"`
	Categories             string   `json:"categories,omitempty" parquet:"categories,optional"`
	NumPages               *int64   `json:"num_pages,omitempty" parquet:"num_pages,optional"`
	Format                 string   `json:"format,omitempty" parquet:"format,optional"`
	Description            string   `json:"description,omitempty" parquet:"description,optional"`
	RatingValue            *float64 `json:"rating_value,omitempty" parquet:"rating_value,optional"`
	RatingCount            *int64   `json:"rating_count,omitempty" parquet:"rating_count,optional"`
	PriceAmount            *float64 `json:"price_amount,omitempty" parquet:"price_amount,optional"`
	PriceCurrency          string   `json:"price_currency,omitempty" parquet:"price_currency,optional"`
	SourcePreference       Source   `json:"source_preference" parquet:"source_preference"`
	MostCompleteURL        string   `json:"most_complete_url,omitempty" parquet:"most_complete_url,optional"`
	IngestionDateGoodreads string   `json:"ingestion_date_goodreads,omitempty" parquet:"ingestion_date_goodreads,optional"`
	IngestionDateGoogle    string   `json:"ingestion_date_google,omitempty" parquet:"ingestion_date_google,optional"`
}

// CanonicalColumns is the data dictionary column order for CanonicalBook
var CanonicalColumns = []string{
	"canonical_id", "isbn13", "isbn10", "title", "title_normalized", "authors",
	"first_author", "publisher", "pub_date", "pub_year", "language", "categories",
	"num_pages", "format", "description", "rating_value", "rating_count",
	"price_amount", "price_currency", "source_preference", "most_complete_url",
	"ingestion_date_goodreads", "ingestion_date_google",
}

// Values returns the row's cells in CanonicalColumns order, nil for null
func (b CanonicalBook) Values() []any {
	return []any{
		b.CanonicalID, str(b.ISBN13), str(b.ISBN10), str(b.Title), str(b.TitleNormalized),
		str(b.Authors), str(b.FirstAuthor), str(b.Publisher), str(b.PubDate), i64(b.PubYear),
		str(b.Language), str(b.Categories), i64(b.NumPages), str(b.Format), str(b.Description),
		f64(b.RatingValue), i64(b.RatingCount), f64(b.PriceAmount), str(b.PriceCurrency),
		string(b.SourcePreference), str(b.MostCompleteURL), str(b.IngestionDateGoodreads),
		str(b.IngestionDateGoogle),
	}
}

// ProvenanceRecord traces one match group to the canonical row it produced
type ProvenanceRecord struct {
	CanonicalID           string   `json:"canonical_id" parquet:"canonical_id"`
	SourceGoodreadsID     string   `json:"source_goodreads_id,omitempty" parquet:"source_goodreads_id,optional"`
	SourceGoogleID        string   `json:"source_google_id,omitempty" parquet:"source_google_id,optional"`
	CompletenessGoodreads int64    `json:"completeness_goodreads" parquet:"completeness_goodreads"`
	CompletenessGoogle    int64    `json:"completeness_google" parquet:"completeness_google"`
	ChosenSource          Source   `json:"chosen_source" parquet:"chosen_source"`
	MatchTier             string   `json:"match_tier" parquet:"match_tier"`
	Ambiguous             bool     `json:"ambiguous" parquet:"ambiguous"`
	Conflicts             []string `json:"conflicts,omitempty" parquet:"conflicts,list"`
	Retained              bool     `json:"retained" parquet:"retained"`
}

// ProvenanceColumns is the column order for ProvenanceRecord
var ProvenanceColumns = []string{
	"canonical_id", "source_goodreads_id", "source_google_id", "completeness_goodreads",
	"completeness_google", "chosen_source", "match_tier", "ambiguous", "conflicts", "retained",
}

// Values returns the row's cells in ProvenanceColumns order, nil for null
func (p ProvenanceRecord) Values() []any {
	var conflicts any
	if len(p.Conflicts) > 0 {
		conflicts = strings.Join(p.Conflicts, "|")
	}
	return []any{
		p.CanonicalID, str(p.SourceGoodreadsID), str(p.SourceGoogleID), p.CompletenessGoodreads,
		p.CompletenessGoogle, string(p.ChosenSource), p.MatchTier, p.Ambiguous, conflicts, p.Retained,
	}
}

func str(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func i64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func f64(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
