// Package output persists reconciliation results: Parquet with an always
// written CSV fallback, an optional SQLite copy and the run quality reports.
package output

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

// Row is a record that can render itself as ordered cells, nil for null
type Row interface {
	Values() []any
}

// SaveTable writes rows as Parquet at parquetPath and as ';'-separated CSV at
// csvPath. A Parquet failure is logged and the CSV copy still written; only a
// CSV failure is returned. Empty tables are skipped.
func SaveTable[T Row](parquetPath, csvPath string, columns []string, rows []T) error {
	if len(rows) == 0 {
		slog.Warn("Skipping empty table", "parquet", parquetPath, "csv", csvPath)
		return nil
	}

	if parquetPath != "" {
		if err := writeParquet(parquetPath, rows); err != nil {
			slog.Warn("Parquet write failed, CSV fallback only", "path", parquetPath, "err", err)
		} else {
			slog.Info("Saved Parquet", "path", parquetPath, "rows", len(rows))
		}
	}

	if err := WriteCSV(csvPath, columns, rows); err != nil {
		return err
	}
	slog.Info("Saved CSV", "path", csvPath, "rows", len(rows))
	return nil
}

func writeParquet[T any](path string, rows []T) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("failed to write parquet: %w", err)
	}
	return nil
}

// WriteCSV writes rows with a header to path using ';' as separator
func WriteCSV[T Row](path string, columns []string, rows []T) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.Comma = ';'
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, v := range row.Values() {
			record[i] = cell(v)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return file.Close()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
