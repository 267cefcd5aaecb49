package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trims and collapses", input: "  Clean \t  Code\n", want: "Clean Code"},
		{name: "nan is null", input: "NaN", want: ""},
		{name: "none is null", input: " None ", want: ""},
		{name: "float serialised id", input: "3735293.0", want: "3735293"},
		{name: "version strings untouched", input: "Web 2.0", want: "Web 2.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.input))
		})
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercases and strips punctuation", input: "Clean Code: A Handbook!", want: "clean code a handbook"},
		{name: "collapses whitespace", input: "  The   Hobbit ", want: "the hobbit"},
		{name: "keeps accents", input: "Cien años de soledad", want: "cien años de soledad"},
		{name: "decomposed accents compose", input: "Cafe\u0301", want: "caf\u00e9"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.input))
		})
	}
}

func TestList(t *testing.T) {
	got := List([]string{"Robert C. Martin", "", "Dean Wampler", "robert c. martin"}, AuthorDelimiters)
	assert.Equal(t, "Robert C. Martin|Dean Wampler", JoinList(got))

	tests := []struct {
		name   string
		input  []string
		delims string
		want   []string
	}{
		{name: "delimited string", input: []string{"Fiction | Classics|fiction"}, delims: CategoryDelimiters, want: []string{"Fiction", "Classics"}},
		{name: "semicolon authors", input: []string{"A. Author; B. Author"}, delims: AuthorDelimiters, want: []string{"A. Author", "B. Author"}},
		{name: "comma kept inside a name", input: []string{"Martin, Robert C."}, delims: AuthorDelimiters, want: []string{"Martin, Robert C."}},
		{name: "null elements dropped", input: []string{"nan", " ", "null"}, delims: AuthorDelimiters, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, List(tt.input, tt.delims))
		})
	}
}

func TestUnion(t *testing.T) {
	got := Union([]string{"Programming", "Software"}, []string{"software", "Computers"})
	assert.Equal(t, []string{"Programming", "Software", "Computers"}, got)
}

func TestCurrency(t *testing.T) {
	money, ok := Currency("$35.50")
	require.True(t, ok)
	require.NotNil(t, money.Amount)
	assert.InDelta(t, 35.50, *money.Amount, 1e-9)
	assert.Equal(t, "USD", money.Currency)

	tests := []struct {
		name       string
		input      string
		wantAmount *float64
		wantCode   string
		wantOK     bool
	}{
		{name: "euro suffix with comma", input: "35,50 €", wantAmount: ptr(35.5), wantCode: "EUR", wantOK: true},
		{name: "pound symbol", input: "£", wantCode: "GBP", wantOK: true},
		{name: "iso code", input: "usd", wantCode: "USD", wantOK: true},
		{name: "amount only", input: "12", wantAmount: ptr(12.0), wantOK: true},
		{name: "empty", input: "", wantOK: true},
		{name: "unknown symbol", input: "¤", wantOK: false},
		{name: "unknown code", input: "XYZ", wantOK: false},
		{name: "symbol both sides", input: "$12€", wantOK: false},
		{name: "thousands grouping with symbol", input: "$1,234.50", wantAmount: ptr(1234.5), wantCode: "USD", wantOK: true},
		{name: "thousands grouping with code", input: "1,234.50 USD", wantAmount: ptr(1234.5), wantCode: "USD", wantOK: true},
		{name: "european grouping", input: "1.234,50 €", wantAmount: ptr(1234.5), wantCode: "EUR", wantOK: true},
		{name: "repeated grouping", input: "$1,234,567", wantAmount: ptr(1234567.0), wantCode: "USD", wantOK: true},
		{name: "unknown code drops amount", input: "12 XYZ", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			money, ok := Currency(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCode, money.Currency)
			if tt.wantAmount == nil {
				assert.Nil(t, money.Amount)
			} else {
				require.NotNil(t, money.Amount)
				assert.InDelta(t, *tt.wantAmount, *money.Amount, 1e-9)
			}
		})
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{input: "2008", want: "2008", wantOK: true},
		{input: "2008-8", want: "2008-08", wantOK: true},
		{input: "2008-08-01", want: "2008-08-01", wantOK: true},
		{input: "2008-8-1", want: "2008-08-01", wantOK: true},
		{input: "", want: "", wantOK: true},
		{input: "2008-13", wantOK: false},
		{input: "2009-02-29", wantOK: false},
		{input: "August 2008", wantOK: false},
		{input: "08/01/2008", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := Date(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestYear(t *testing.T) {
	y := Year("2008-08-01")
	require.NotNil(t, y)
	assert.Equal(t, int64(2008), *y)
	assert.Nil(t, Year(""))
}

func TestISBN(t *testing.T) {
	got, ok := ISBN13("978-0-13-235088-4")
	assert.True(t, ok)
	assert.Equal(t, "9780132350884", got)

	got, ok = ISBN13("978013235088")
	assert.False(t, ok)
	assert.Empty(t, got)

	got, ok = ISBN10("0-8044-2957-x")
	assert.True(t, ok)
	assert.Equal(t, "080442957X", got)

	got, ok = ISBN10("08044X2957")
	assert.False(t, ok)
	assert.Empty(t, got)

	got, ok = ISBN10("")
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestCount(t *testing.T) {
	n, ok := Count(464)
	require.True(t, ok)
	assert.Equal(t, int64(464), *n)

	_, ok = Count(-1)
	assert.False(t, ok)

	_, ok = Count(12.5)
	assert.False(t, ok)
}

func ptr(v float64) *float64 {
	return &v
}
