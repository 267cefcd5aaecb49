package records

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// NotFoundID marks a Google landing row written for a Goodreads book the
// enrichment searched for and could not place. The row keeps the lookup
// idempotent and carries no book data.
const NotFoundID = "NOT_FOUND"

// LoadStats summarizes a landing-file read
type LoadStats struct {
	Lines   int `json:"lines" yaml:"lines"`
	Records int `json:"records" yaml:"records"`
	Corrupt int `json:"corrupt" yaml:"corrupt"`
}

// LoadGoodreads reads the Goodreads JSON-lines landing file. Corrupt lines are
// skipped and counted; records without an id are kept. A missing file yields
// no records.
func LoadGoodreads(path string) ([]GoodreadsRecord, LoadStats, error) {
	var stats LoadStats
	slog.Debug("Opening Goodreads JSONL file", "path", path)

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("Goodreads landing file not found", "path", path)
			return nil, stats, nil
		}
		return nil, stats, fmt.Errorf("failed to open goodreads file: %w", err)
	}
	defer file.Close()

	records, stats, err := ReadGoodreads(file)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, stats, nil
}

// ReadGoodreads decodes JSON lines from r
func ReadGoodreads(r io.Reader) ([]GoodreadsRecord, LoadStats, error) {
	var (
		stats   LoadStats
		records []GoodreadsRecord
	)

	scanner := bufio.NewScanner(r)
	const maxCapacity = 10 * 1024 * 1024 // 10MB per line
	scanner.Buffer(make([]byte, 0, 64*1024), maxCapacity)

	for scanner.Scan() {
		stats.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var record GoodreadsRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			stats.Corrupt++
			slog.Warn("Skipping corrupt Goodreads line", "line", stats.Lines, "err", err)
			continue
		}
		if strings.TrimSpace(record.ID) == "" {
			// still merged: canonical ids never depend on the source id
			slog.Warn("Goodreads record without id", "line", stats.Lines, "title", record.Title)
		}

		records = append(records, record)
		if stats.Lines%1000 == 0 {
			slog.Debug("Reading JSONL", "lines_read", stats.Lines)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("error reading jsonl: %w", err)
	}

	stats.Records = len(records)
	slog.Debug("Finished reading JSONL", "records", stats.Records, "lines", stats.Lines, "corrupt", stats.Corrupt)
	return records, stats, nil
}

// LoadGoogle reads the Google Books landing file, preferring the Parquet copy
// and falling back to the semicolon-delimited CSV. Neither existing yields no
// records.
func LoadGoogle(parquetPath, csvPath string) ([]GoogleBooksRecord, error) {
	if parquetPath != "" {
		if _, err := os.Stat(parquetPath); err == nil {
			return ReadParquet[GoogleBooksRecord](parquetPath)
		}
	}
	if csvPath != "" {
		if _, err := os.Stat(csvPath); err == nil {
			return LoadGoogleCSV(csvPath)
		}
	}
	slog.Warn("Google Books landing file not found", "parquet", parquetPath, "csv", csvPath)
	return nil, nil
}

// Found drops NOT_FOUND placeholder rows and rows carrying neither a volume
// id nor any book data. Rows with data but no volume id are kept.
func Found(rows []GoogleBooksRecord) []GoogleBooksRecord {
	out := make([]GoogleBooksRecord, 0, len(rows))
	for _, row := range rows {
		if row.GBID == NotFoundID || (row.GBID == "" && row.empty()) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// ReadParquet reads every row of a Parquet file into T
func ReadParquet[T any](path string) ([]T, error) {
	slog.Debug("Opening Parquet file", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet file opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[T](pf)
	defer reader.Close()

	var records []T
	batchNum := 0
	for {
		// Fresh batch each read: optional columns decode into pointers the
		// reader would otherwise reuse.
		rows := make([]T, 128)
		n, err := reader.Read(rows)
		if n > 0 {
			batchNum++
			records = append(records, rows[:n]...)
			slog.Debug("Read batch from Parquet", "batch", batchNum, "rows_in_batch", n, "total_rows_read", len(records))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	slog.Debug("Finished reading Parquet file", "total_records", len(records), "total_batches", batchNum)
	return records, nil
}

// LoadGoogleCSV reads a semicolon-delimited Google Books landing CSV
func LoadGoogleCSV(path string) ([]GoogleBooksRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer file.Close()

	records, err := ReadGoogleCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// ReadGoogleCSV decodes Google Books rows from r. Older enrichment files that
// stored the Goodreads id under gb_id and the volume id under google_id are
// accepted too.
func ReadGoogleCSV(r io.Reader) ([]GoogleBooksRecord, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	_, hasRef := cols["goodreads_id_ref"]
	_, hasVolumeID := cols["google_id"]
	legacy := hasVolumeID && !hasRef

	var records []GoogleBooksRecord
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		rec := GoogleBooksRecord{
			GBID:           get("gb_id"),
			GoodreadsIDRef: get("goodreads_id_ref"),
			Title:          get("title"),
			Authors:        get("authors"),
			Publisher:      get("publisher"),
			PubDate:        get("pub_date"),
			Language:       get("language"),
			Categories:     get("categories"),
			ISBN13:         get("isbn13"),
			ISBN10:         get("isbn10"),
			PriceCurrency:  get("price_currency"),
			Description:    get("description"),
			URL:            get("url"),
			IngestionDate:  get("ingestion_date"),
		}
		rec.PageCount = csvInt(&rec, "page_count", get("page_count"))
		rec.AverageRating = csvFloat(&rec, "average_rating", get("average_rating"))
		rec.RatingsCount = csvInt(&rec, "ratings_count", get("ratings_count"))
		rec.PriceAmount = csvFloat(&rec, "price_amount", get("price_amount"))
		if legacy {
			rec.GoodreadsIDRef = rec.GBID
			rec.GBID = get("google_id")
		}
		records = append(records, rec)
	}

	slog.Debug("Finished reading Google Books CSV", "records", len(records), "legacy_layout", legacy)
	return records, nil
}

func csvFloat(rec *GoogleBooksRecord, column, s string) *float64 {
	n := ParseNumber(s)
	if !n.Valid {
		if n.Raw != "" {
			rec.unparsed(column, n.Raw)
		}
		return nil
	}
	return &n.Value
}

// csvInt keeps whole numbers only. Fractions and values beyond int64 are
// left for the normalizer to report instead of being truncated.
func csvInt(rec *GoogleBooksRecord, column, s string) *int64 {
	n := ParseNumber(s)
	if !n.Valid {
		if n.Raw != "" {
			rec.unparsed(column, n.Raw)
		}
		return nil
	}
	if n.Value != math.Trunc(n.Value) || math.Abs(n.Value) >= math.MaxInt64 {
		rec.unparsed(column, strings.TrimSpace(s))
		return nil
	}
	v := int64(n.Value)
	return &v
}

func (r *GoogleBooksRecord) empty() bool {
	return r.Title == "" && r.Authors == "" && r.ISBN13 == "" && r.ISBN10 == ""
}

func (r *GoogleBooksRecord) unparsed(column, raw string) {
	if r.Unparsed == nil {
		r.Unparsed = make(map[string]string)
	}
	r.Unparsed[column] = raw
}
