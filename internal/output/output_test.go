package output

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/bookmerge/internal/pipeline"
	"github.com/lehigh-university-libraries/bookmerge/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleBooks() []records.CanonicalBook {
	pages := int64(464)
	amount := 35.5
	return []records.CanonicalBook{
		{
			CanonicalID:      "9780132350884",
			ISBN13:           "9780132350884",
			Title:            "Clean Code; 1st ed",
			TitleNormalized:  "clean code 1st ed",
			Authors:          "Robert C. Martin",
			FirstAuthor:      "Robert C. Martin",
			NumPages:         &pages,
			PriceAmount:      &amount,
			PriceCurrency:    "USD",
			SourcePreference: records.SourceGoogle,
		},
	}
}

func sampleProvenance() []records.ProvenanceRecord {
	return []records.ProvenanceRecord{
		{CanonicalID: "9780132350884", SourceGoodreadsID: "gr1", SourceGoogleID: "gb1", CompletenessGoodreads: 3, CompletenessGoogle: 5, ChosenSource: records.SourceGoogle, MatchTier: "heuristic", Conflicts: []string{"title"}, Retained: true},
	}
}

func TestSaveTable(t *testing.T) {
	dir := t.TempDir()
	parquetPath := filepath.Join(dir, "standard", "dim_book.parquet")
	csvPath := filepath.Join(dir, "standard", "dim_book.csv")

	require.NoError(t, SaveTable(parquetPath, csvPath, records.CanonicalColumns, sampleBooks()))

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(records.CanonicalColumns, ";"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], `9780132350884;9780132350884;;"Clean Code; 1st ed";`), lines[1])
	assert.Contains(t, lines[1], ";464;")
	assert.Contains(t, lines[1], ";35.5;USD;google;")

	got, err := records.ReadParquet[records.CanonicalBook](parquetPath)
	require.NoError(t, err)
	assert.Equal(t, sampleBooks(), got)
}

func TestSaveTableSkipsEmpty(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "empty.csv")
	require.NoError(t, SaveTable(filepath.Join(dir, "empty.parquet"), csvPath, records.CanonicalColumns, []records.CanonicalBook{}))
	_, err := os.Stat(csvPath)
	assert.True(t, os.IsNotExist(err))
}

func TestProvenanceParquetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	parquetPath := filepath.Join(dir, "book_source_detail.parquet")
	require.NoError(t, SaveTable(parquetPath, filepath.Join(dir, "book_source_detail.csv"), records.ProvenanceColumns, sampleProvenance()))

	got, err := records.ReadParquet[records.ProvenanceRecord](parquetPath)
	require.NoError(t, err)
	assert.Equal(t, sampleProvenance(), got)
}

func TestWriteSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.db")

	// twice, to show the file is recreated rather than appended to
	require.NoError(t, WriteSQLite(path, sampleBooks(), sampleProvenance()))
	require.NoError(t, WriteSQLite(path, sampleBooks(), sampleProvenance()))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM dim_book`).Scan(&count))
	assert.Equal(t, 1, count)

	var title string
	var pages int64
	var isbn10 sql.NullString
	require.NoError(t, db.QueryRow(`SELECT title, num_pages, isbn10 FROM dim_book WHERE canonical_id = ?`, "9780132350884").Scan(&title, &pages, &isbn10))
	assert.Equal(t, "Clean Code; 1st ed", title)
	assert.Equal(t, int64(464), pages)
	assert.False(t, isbn10.Valid)

	var tier, conflicts string
	require.NoError(t, db.QueryRow(`SELECT match_tier, conflicts FROM book_source_detail`).Scan(&tier, &conflicts))
	assert.Equal(t, "heuristic", tier)
	assert.Equal(t, "title", conflicts)

	_, err = db.Exec(`INSERT INTO dim_book (canonical_id, source_preference) VALUES ('9780132350884', 'google')`)
	assert.Error(t, err, "canonical_id is the primary key")
}

func TestSaveMetrics(t *testing.T) {
	dir := t.TempDir()
	m := &pipeline.Metrics{
		RunID:           "run-1",
		RowsOutput:      1,
		MatchesByTier:   map[string]int{"heuristic": 1},
		MalformedFields: map[string]int{"pub_date": 2},
	}

	jsonPath := filepath.Join(dir, "docs", "quality_metrics.json")
	require.NoError(t, SaveMetricsJSON(jsonPath, m))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, float64(1), decoded["rows_output"])

	yamlPath := filepath.Join(dir, "docs", "quality_metrics.yaml")
	require.NoError(t, SaveMetricsYAML(yamlPath, m))
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	var back pipeline.Metrics
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, m.MalformedFields, back.MalformedFields)
	assert.Equal(t, "run-1", back.RunID)
}
