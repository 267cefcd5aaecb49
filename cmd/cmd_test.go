package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodreadsFixture = `{"id":"gr1","title":"Clean Code","authors":["Robert C. Martin"],"pub_date":"2008"}
{"id":"gr2","title":"Refactoring","authors":"Martin Fowler","isbn13":"9780201485677","price_currency":"€"}
not json
`

const googleFixture = "gb_id;goodreads_id_ref;title;authors;isbn13;price_amount;price_currency\n" +
	"gb1;;Clean Code;Robert C. Martin;9780132350884;35.50;$\n" +
	"NOT_FOUND;gr2;;;;;\n"

type fixture struct {
	dir       string
	goodreads string
	googleCSV string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:       dir,
		goodreads: filepath.Join(dir, "goodreads_books.json"),
		googleCSV: filepath.Join(dir, "googlebooks_books.csv"),
	}
	require.NoError(t, os.WriteFile(f.goodreads, []byte(goodreadsFixture), 0644))
	require.NoError(t, os.WriteFile(f.googleCSV, []byte(googleFixture), 0644))
	return f
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMergeCommand(t *testing.T) {
	f := newFixture(t)
	outDir := filepath.Join(f.dir, "standard")
	metrics := filepath.Join(f.dir, "docs", "quality_metrics.json")
	metricsYAML := filepath.Join(f.dir, "docs", "quality_metrics.yaml")
	db := filepath.Join(f.dir, "books.db")

	out, err := execute(t, "merge",
		"--goodreads", f.goodreads,
		"--google-parquet", filepath.Join(f.dir, "missing.parquet"),
		"--google-csv", f.googleCSV,
		"--output-dir", outDir,
		"--metrics", metrics,
		"--metrics-yaml", metricsYAML,
		"--sqlite", db,
		"--workers", "2",
		"--log-level", "error",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "BOOK RECONCILIATION SUMMARY")
	assert.Contains(t, out, "Canonical Rows: 2")

	for _, name := range []string{"dim_book.csv", "dim_book.parquet", "book_source_detail.csv", "book_source_detail.parquet"} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}
	assert.FileExists(t, db)
	assert.FileExists(t, metricsYAML)

	csv, err := os.ReadFile(filepath.Join(outDir, "dim_book.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	require.Len(t, lines, 3, "header plus two canonical books")
	assert.True(t, strings.HasPrefix(lines[0], "canonical_id;"))
	assert.Contains(t, string(csv), "9780132350884;")
	assert.Contains(t, string(csv), "9780201485677;")

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, json.Unmarshal(data, &report))
	assert.EqualValues(t, 2, report["rows_input_goodreads"])
	assert.EqualValues(t, 1, report["rows_input_google"])
	assert.EqualValues(t, 1, report["corrupt_input_lines"])
	assert.EqualValues(t, 2, report["rows_output"])
}

func TestMergeCommandRejectsBadPolicy(t *testing.T) {
	f := newFixture(t)

	_, err := execute(t, "merge",
		"--goodreads", f.goodreads,
		"--google-csv", f.googleCSV,
		"--output-dir", filepath.Join(f.dir, "standard"),
		"--ambiguity-policy", "ignore",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguity policy")
}

func TestEnrichCommandUpToDate(t *testing.T) {
	f := newFixture(t)
	// gr1 is the only book not yet looked up; mark it known too.
	extra := "NOT_FOUND;gr1;;;;;\n"
	fh, err := os.OpenFile(f.googleCSV, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = fh.WriteString(extra)
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	out, err := execute(t, "enrich",
		"--goodreads", f.goodreads,
		"--google-parquet", filepath.Join(f.dir, "missing.parquet"),
		"--google-csv", f.googleCSV,
		"--log-level", "error",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")
}

func TestInspectCommand(t *testing.T) {
	f := newFixture(t)

	out, err := execute(t, "inspect",
		"--goodreads", f.goodreads,
		"--source", "goodreads",
		"--limit", "1",
		"--log-level", "error",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "RECORD 1/1")
	assert.Contains(t, out, "Clean Code")
	assert.Contains(t, out, "heuristic:    clean code|robert c martin")

	out, err = execute(t, "inspect",
		"--google-parquet", filepath.Join(f.dir, "missing.parquet"),
		"--google-csv", f.googleCSV,
		"--source", "google",
		"--log-level", "error",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 1 google records")
	assert.Contains(t, out, "Canonical ID:   9780132350884")
}

func TestSetupLogger(t *testing.T) {
	assert.NoError(t, setupLogger("debug", "json"))
	assert.Error(t, setupLogger("loud", "text"))
	assert.Error(t, setupLogger("info", "xml"))
}
