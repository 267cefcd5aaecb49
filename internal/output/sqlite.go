package output

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/bookmerge/internal/records"
	_ "modernc.org/sqlite"
)

var columnTypes = map[string]string{
	"pub_year":               "INTEGER",
	"num_pages":              "INTEGER",
	"rating_count":           "INTEGER",
	"rating_value":           "REAL",
	"price_amount":           "REAL",
	"completeness_goodreads": "INTEGER",
	"completeness_google":    "INTEGER",
	"ambiguous":              "INTEGER",
	"retained":               "INTEGER",
}

// WriteSQLite recreates path with the dim_book and book_source_detail tables
func WriteSQLite(path string, books []records.CanonicalBook, provenance []records.ProvenanceRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	defer db.Close()

	if err := writeTable(db, "dim_book", records.CanonicalColumns, "canonical_id", books); err != nil {
		return err
	}
	if err := writeTable(db, "book_source_detail", records.ProvenanceColumns, "", provenance); err != nil {
		return err
	}

	for _, idx := range []string{
		`CREATE INDEX IF NOT EXISTS idx_dim_book_isbn13 ON dim_book(isbn13)`,
		`CREATE INDEX IF NOT EXISTS idx_dim_book_title ON dim_book(title_normalized)`,
		`CREATE INDEX IF NOT EXISTS idx_book_source_detail_canonical ON book_source_detail(canonical_id)`,
	} {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	slog.Info("Saved SQLite", "path", path, "dim_book", len(books), "book_source_detail", len(provenance))
	return db.Close()
}

func writeTable[T Row](db *sql.DB, table string, columns []string, primaryKey string, rows []T) error {
	defs := make([]string, len(columns))
	quoted := make([]string, len(columns))
	for i, c := range columns {
		t := columnTypes[c]
		if t == "" {
			t = "TEXT"
		}
		if c == primaryKey {
			t += " PRIMARY KEY"
		}
		defs[i] = fmt.Sprintf("%q %s", c, t)
		quoted[i] = fmt.Sprintf("%q", c)
	}

	if _, err := db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %q`, table)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table, err)
	}
	if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE %q (%s)`, table, strings.Join(defs, ","))); err != nil {
		return fmt.Errorf("failed to create %s: %w", table, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ph := strings.TrimRight(strings.Repeat("?,", len(columns)), ",")
	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`, table, strings.Join(quoted, ","), ph))
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(row.Values()...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table, err)
	}
	return nil
}
