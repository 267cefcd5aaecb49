package googlebooks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/bookmerge/internal/normalize"
	"github.com/lehigh-university-libraries/bookmerge/internal/records"
	books "google.golang.org/api/books/v1"
)

// Options tunes the lookup
type Options struct {
	PageSize   int64         // results per request, the API caps this at 40
	MaxPages   int           // pages fetched per query
	MinScore   float64       // candidates scoring below are rejected
	Pause      time.Duration // wait between books and between pages
	RetryWait  time.Duration // base backoff after an HTTP 429
	MaxRetries int
}

// DefaultOptions returns the settings used when none are configured
func DefaultOptions() Options {
	return Options{
		PageSize:   40,
		MaxPages:   3,
		MinScore:   20,
		Pause:      500 * time.Millisecond,
		RetryWait:  2 * time.Second,
		MaxRetries: 5,
	}
}

// Enricher finds Google Books volumes for Goodreads records
type Enricher struct {
	searcher Searcher
	opts     Options
	now      func() time.Time
}

// NewEnricher creates an Enricher
func NewEnricher(searcher Searcher, opts Options) *Enricher {
	if opts.PageSize <= 0 || opts.PageSize > 40 {
		opts.PageSize = 40
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	return &Enricher{searcher: searcher, opts: opts, now: time.Now}
}

// Stats counts enrichment outcomes
type Stats struct {
	Skipped  int
	Found    int
	NotFound int
}

// Enrich looks up every record with an id not in known. Books without an
// acceptable candidate produce a NOT_FOUND placeholder so later runs skip
// them. On cancellation the rows gathered so far are returned with the
// context error.
func (e *Enricher) Enrich(ctx context.Context, recs []records.GoodreadsRecord, known map[string]bool) ([]records.GoogleBooksRecord, Stats, error) {
	var (
		out   []records.GoogleBooksRecord
		stats Stats
	)

	for i, rec := range recs {
		id := normalize.Text(rec.ID)
		// an id-less book has nothing to link a volume back to
		if id == "" || known[id] {
			stats.Skipped++
			continue
		}

		vol, score := e.Lookup(ctx, rec)
		if err := ctx.Err(); err != nil {
			return out, stats, err
		}

		if vol == nil {
			stats.NotFound++
			slog.Info("No Google Books match", "progress", fmt.Sprintf("%d/%d", i+1, len(recs)), "id", id, "title", rec.Title)
			out = append(out, records.GoogleBooksRecord{GBID: records.NotFoundID, GoodreadsIDRef: id, IngestionDate: e.timestamp()})
		} else {
			stats.Found++
			slog.Info("Google Books match", "progress", fmt.Sprintf("%d/%d", i+1, len(recs)), "id", id, "volume", vol.Id, "score", score)
			out = append(out, Extract(id, vol, e.now()))
		}
		known[id] = true

		if err := sleep(ctx, e.opts.Pause); err != nil {
			return out, stats, err
		}
	}

	return out, stats, nil
}

// Lookup runs the query strategies in order and returns the best candidate
// of the first query that yields one.
func (e *Enricher) Lookup(ctx context.Context, rec records.GoodreadsRecord) (*books.Volume, float64) {
	for _, q := range Queries(rec) {
		results := e.searchAll(ctx, q)
		if len(results) == 0 {
			continue
		}
		if vol, score := e.best(rec, results); vol != nil {
			return vol, score
		}
	}
	return nil, 0
}

func (e *Enricher) best(rec records.GoodreadsRecord, results []*books.Volume) (*books.Volume, float64) {
	var (
		best      *books.Volume
		bestScore float64
	)
	for _, vol := range results {
		score := Score(rec, vol)
		if score > bestScore {
			best, bestScore = vol, score
		}
	}
	if best == nil || bestScore < e.opts.MinScore {
		return nil, 0
	}
	return best, bestScore
}

// searchAll pages through a query until a short page, the page cap or an
// error. Errors end paging and keep what was gathered.
func (e *Enricher) searchAll(ctx context.Context, query string) []*books.Volume {
	var results []*books.Volume
	for page := 0; page < e.opts.MaxPages; page++ {
		start := int64(page) * e.opts.PageSize
		items, err := e.searchWithRetry(ctx, query, start)
		if err != nil {
			slog.Warn("Google Books query failed", "query", query, "start", start, "err", err)
			break
		}
		results = append(results, items...)
		if int64(len(items)) < e.opts.PageSize {
			break
		}
		if err := sleep(ctx, e.opts.Pause); err != nil {
			break
		}
	}
	return results
}

func (e *Enricher) searchWithRetry(ctx context.Context, query string, start int64) ([]*books.Volume, error) {
	for attempt := 0; ; attempt++ {
		items, err := e.searcher.Search(ctx, query, start, e.opts.PageSize)
		if err == nil || !IsRateLimited(err) || attempt >= e.opts.MaxRetries {
			return items, err
		}
		wait := e.opts.RetryWait * time.Duration(attempt+1)
		slog.Debug("Rate limited, backing off", "query", query, "attempt", attempt+1, "wait", wait)
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// Queries returns the search strategies for a record, strongest first
func Queries(rec records.GoodreadsRecord) []string {
	var queries []string
	if isbn, ok := normalize.ISBN13(rec.ISBN13); ok && isbn != "" {
		queries = append(queries, "isbn:"+isbn)
	}

	title := strings.ReplaceAll(normalize.Text(rec.Title), `"`, "")
	if title == "" {
		return queries
	}
	if author := firstAuthor(rec); author != "" {
		queries = append(queries, fmt.Sprintf(`intitle:"%s" inauthor:"%s"`, title, strings.ReplaceAll(author, `"`, "")))
	}
	return append(queries, fmt.Sprintf(`intitle:"%s"`, title))
}

// Score ranks a candidate volume against a Goodreads record: +100 for an
// exact ISBN-13, +80 for an exact ISBN-10, plus 50 x title similarity and
// 30 x first-author similarity.
func Score(rec records.GoodreadsRecord, vol *books.Volume) float64 {
	info := vol.VolumeInfo
	if info == nil {
		return 0
	}
	ids := identifiers(info)

	score := 0.0
	if isbn, _ := normalize.ISBN13(rec.ISBN13); isbn != "" && ids["ISBN_13"] == isbn {
		score += 100
	}
	if isbn, _ := normalize.ISBN10(rec.ISBN10Text()); isbn != "" && ids["ISBN_10"] == isbn {
		score += 80
	}
	score += Similarity(rec.Title, info.Title) * 50
	if len(info.Authors) > 0 {
		score += Similarity(firstAuthor(rec), info.Authors[0]) * 30
	}
	return score
}

// Extract converts a volume into a landing record linked to goodreadsID
func Extract(goodreadsID string, vol *books.Volume, now time.Time) records.GoogleBooksRecord {
	rec := records.GoogleBooksRecord{
		GBID:           vol.Id,
		GoodreadsIDRef: goodreadsID,
		IngestionDate:  now.UTC().Format(time.RFC3339),
	}

	if info := vol.VolumeInfo; info != nil {
		ids := identifiers(info)
		rec.Title = info.Title
		rec.Authors = strings.Join(info.Authors, " | ")
		rec.Publisher = info.Publisher
		rec.PubDate = info.PublishedDate
		rec.Language = info.Language
		rec.Categories = strings.Join(info.Categories, " | ")
		rec.ISBN13 = ids["ISBN_13"]
		rec.ISBN10 = ids["ISBN_10"]
		rec.Description = info.Description
		rec.URL = info.InfoLink
		if info.PageCount > 0 {
			rec.PageCount = ptr(info.PageCount)
		}
		if info.RatingsCount > 0 {
			rec.AverageRating = ptr(info.AverageRating)
			rec.RatingsCount = ptr(info.RatingsCount)
		}
	}

	if sale := vol.SaleInfo; sale != nil {
		switch {
		case sale.ListPrice != nil:
			rec.PriceAmount = ptr(sale.ListPrice.Amount)
			rec.PriceCurrency = sale.ListPrice.CurrencyCode
		case sale.RetailPrice != nil:
			rec.PriceAmount = ptr(sale.RetailPrice.Amount)
			rec.PriceCurrency = sale.RetailPrice.CurrencyCode
		}
	}
	return rec
}

func identifiers(info *books.VolumeVolumeInfo) map[string]string {
	ids := make(map[string]string, len(info.IndustryIdentifiers))
	for _, id := range info.IndustryIdentifiers {
		if id != nil {
			ids[id.Type] = normalize.CleanISBN(id.Identifier)
		}
	}
	return ids
}

func firstAuthor(rec records.GoodreadsRecord) string {
	authors := normalize.List(rec.Authors, normalize.AuthorDelimiters)
	if len(authors) == 0 {
		return ""
	}
	return authors[0]
}

func ptr[T any](v T) *T {
	return &v
}

func (e *Enricher) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
