package normalize

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/bookmerge/internal/records"
)

const (
	// AuthorDelimiters separate names inside a single author string. Commas
	// are not delimiters because they appear inside names ("Martin, Robert C.").
	AuthorDelimiters = "|;"
	// CategoryDelimiters separate genres and categories
	CategoryDelimiters = "|"
)

// googleNumberFields maps Google landing columns to normalized field names
var googleNumberFields = map[string]string{
	"page_count":     "num_pages",
	"average_rating": "rating_value",
	"ratings_count":  "rating_count",
	"price_amount":   "price_amount",
}

// issues collects the FieldErrors found while normalizing one record
type issues struct {
	source records.Source
	id     string
	errs   []error
}

func (is *issues) add(field string, kind Kind, value string) {
	is.errs = append(is.errs, &FieldError{
		Source:   string(is.source),
		RecordID: is.id,
		Field:    field,
		Kind:     kind,
		Value:    value,
	})
}

func (is *issues) date(field, raw string) string {
	v, ok := Date(raw)
	if !ok {
		is.add(field, KindDate, raw)
	}
	return v
}

func (is *issues) isbn13(raw string) string {
	v, ok := ISBN13(raw)
	if !ok {
		is.add("isbn13", KindISBN, raw)
	}
	return v
}

func (is *issues) isbn10(raw string) string {
	v, ok := ISBN10(raw)
	if !ok {
		is.add("isbn10", KindISBN, raw)
	}
	return v
}

func (is *issues) count(field string, n records.Number) *int64 {
	if !n.Present() {
		return nil
	}
	if !n.Valid {
		is.add(field, KindNumber, n.Raw)
		return nil
	}
	v, ok := Count(n.Value)
	if !ok {
		is.add(field, KindNumber, formatNumber(n.Value))
	}
	return v
}

func (is *issues) decimal(field string, n records.Number) *float64 {
	if !n.Present() {
		return nil
	}
	if !n.Valid {
		is.add(field, KindNumber, n.Raw)
		return nil
	}
	v, ok := Decimal(n.Value)
	if !ok {
		is.add(field, KindNumber, formatNumber(n.Value))
	}
	return v
}

// price combines an amount column with a currency column that may itself
// carry the amount ("$35.50").
func (is *issues) price(amount *float64, rawCurrency string) (*float64, string) {
	money, ok := Currency(rawCurrency)
	if !ok {
		is.add("price_currency", KindCurrency, rawCurrency)
		return amount, ""
	}
	if amount == nil {
		amount = money.Amount
	}
	return amount, money.Currency
}

// Goodreads normalizes a Goodreads record
func Goodreads(rec records.GoodreadsRecord) records.NormalizedRecord {
	is := &issues{source: records.SourceGoodreads, id: Text(rec.ID)}

	out := records.NormalizedRecord{
		Source:        records.SourceGoodreads,
		SourceID:      is.id,
		Title:         Text(rec.Title),
		Authors:       List(rec.Authors, AuthorDelimiters),
		Publisher:     Text(rec.Publisher),
		PubDate:       is.date("pub_date", rec.PubDate),
		Language:      strings.ToLower(Text(rec.Language)),
		Categories:    List(rec.Categories, CategoryDelimiters),
		NumPages:      is.count("num_pages", rec.NumPages),
		Format:        Text(rec.Format),
		Description:   Text(rec.DescriptionText()),
		RatingValue:   is.decimal("rating_value", rec.RatingValue),
		RatingCount:   is.count("rating_count", rec.RatingCount),
		ISBN13:        is.isbn13(rec.ISBN13),
		ISBN10:        is.isbn10(rec.ISBN10Text()),
		URL:           Text(rec.URL),
		IngestionDate: Text(rec.IngestionDate),
	}
	out.PriceAmount, out.PriceCurrency = is.price(is.decimal("price_amount", rec.PriceAmount), rec.PriceCurrency)

	finish(&out)
	out.Issues = is.errs
	return out
}

// Google normalizes a Google Books record
func Google(rec records.GoogleBooksRecord) records.NormalizedRecord {
	is := &issues{source: records.SourceGoogle, id: Text(rec.GBID)}

	out := records.NormalizedRecord{
		Source:        records.SourceGoogle,
		SourceID:      is.id,
		GoodreadsRef:  Text(rec.GoodreadsIDRef),
		Title:         Text(rec.Title),
		Authors:       List([]string{rec.Authors}, AuthorDelimiters),
		Publisher:     Text(rec.Publisher),
		PubDate:       is.date("pub_date", rec.PubDate),
		Language:      strings.ToLower(Text(rec.Language)),
		Categories:    List([]string{rec.Categories}, CategoryDelimiters),
		Description:   Text(rec.Description),
		ISBN13:        is.isbn13(rec.ISBN13),
		ISBN10:        is.isbn10(rec.ISBN10),
		URL:           Text(rec.URL),
		IngestionDate: Text(rec.IngestionDate),
	}
	if rec.PageCount != nil {
		out.NumPages = is.count("num_pages", records.Number{Value: float64(*rec.PageCount), Valid: true})
	}
	if rec.AverageRating != nil {
		out.RatingValue = is.decimal("rating_value", records.Number{Value: *rec.AverageRating, Valid: true})
	}
	if rec.RatingsCount != nil {
		out.RatingCount = is.count("rating_count", records.Number{Value: float64(*rec.RatingsCount), Valid: true})
	}
	for _, column := range slices.Sorted(maps.Keys(rec.Unparsed)) {
		is.add(googleNumberFields[column], KindNumber, rec.Unparsed[column])
	}
	var amount *float64
	if rec.PriceAmount != nil {
		amount = is.decimal("price_amount", records.Number{Value: *rec.PriceAmount, Valid: true})
	}
	out.PriceAmount, out.PriceCurrency = is.price(amount, rec.PriceCurrency)

	finish(&out)
	out.Issues = is.errs
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// finish derives the fields computed from other normalized fields
func finish(rec *records.NormalizedRecord) {
	rec.TitleNormalized = Key(rec.Title)
	if len(rec.Authors) > 0 {
		rec.FirstAuthor = rec.Authors[0]
	}
	rec.PubYear = Year(rec.PubDate)
}
