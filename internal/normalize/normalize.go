// Package normalize canonicalizes scalar and multi-valued book fields.
// Every function is pure. Out-of-domain input yields a null value and ok=false
// so callers can tell malformed data apart from missing data.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespace    = regexp.MustCompile(`\s+`)
	floatID       = regexp.MustCompile(`^\d+\.0$`)
	datePattern   = regexp.MustCompile(`^(\d{4})(?:-(\d{1,2})(?:-(\d{1,2}))?)?$`)
	amountPattern = regexp.MustCompile(`-?\d+(?:[.,]\d+)*`)
)

// currencySymbols maps the symbols seen in scraped prices to ISO 4217 codes
var currencySymbols = map[string]string{
	"$":   "USD",
	"US$": "USD",
	"€":   "EUR",
	"£":   "GBP",
}

// Text trims and collapses whitespace. Null-equivalents become "".
func Text(s string) string {
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	switch strings.ToLower(s) {
	case "nan", "null", "none":
		return ""
	}
	if floatID.MatchString(s) {
		s = strings.TrimSuffix(s, ".0")
	}
	return s
}

// Key is the comparison form of a text value: NFC, lower-case, punctuation
// removed, whitespace collapsed. It is the title_normalized form and is also
// used for author and publisher identity components.
func Key(s string) string {
	s = Text(s)
	if s == "" {
		return ""
	}
	// a cases.Caser must not be shared between goroutines
	s = cases.Lower(language.Und).String(norm.NFC.String(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r), r == '_':
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, s)
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// List splits each item on any of delims, trims the parts, drops null
// elements and removes case-insensitive duplicates keeping first-seen casing.
func List(items []string, delims string) []string {
	var out []string
	seen := make(map[string]bool)
	fold := cases.Fold()
	for _, item := range items {
		parts := []string{item}
		if delims != "" {
			parts = strings.FieldsFunc(item, func(r rune) bool {
				return strings.ContainsRune(delims, r)
			})
		}
		for _, part := range parts {
			value := Text(part)
			if value == "" {
				continue
			}
			key := fold.String(value)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, value)
		}
	}
	return out
}

// Union appends the elements of b not already in a, under the same rules as List
func Union(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return List(merged, "")
}

// JoinList renders a list in its stored form
func JoinList(items []string) string {
	return strings.Join(items, "|")
}

// Money is a normalized price
type Money struct {
	Amount   *float64
	Currency string
}

// Currency parses a price or currency text such as "$35.50", "35,50 €",
// "$1,234.50", "EUR" or "£". Symbols and ISO 4217 codes are accepted. Any
// failure returns an empty Money and ok=false; no partial amount survives.
func Currency(raw string) (Money, bool) {
	s := Text(raw)
	if s == "" {
		return Money{}, true
	}

	var m Money
	code := s
	if loc := amountPattern.FindStringIndex(s); loc != nil {
		amount, ok := parseAmount(s[loc[0]:loc[1]])
		if !ok {
			return Money{}, false
		}
		m.Amount = &amount
		prefix := strings.TrimSpace(s[:loc[0]])
		suffix := strings.TrimSpace(s[loc[1]:])
		if prefix != "" && suffix != "" {
			return Money{}, false
		}
		code = prefix + suffix
	}
	if code == "" {
		return m, true
	}

	iso, ok := CurrencyCode(code)
	if !ok {
		return Money{}, false
	}
	m.Currency = iso
	return m, true
}

// parseAmount reads a number written with "." or "," separators. When both
// appear the last one is the decimal mark. A single kind repeated is grouping;
// a single occurrence is the decimal mark ("35,50").
func parseAmount(s string) (float64, bool) {
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	var decimal, group string
	switch {
	case dot >= 0 && comma >= 0:
		decimal, group = ".", ","
		if comma > dot {
			decimal, group = ",", "."
		}
	case strings.Count(s, ".") > 1:
		group = "."
	case strings.Count(s, ",") > 1:
		group = ","
	case comma >= 0:
		decimal = ","
	}

	if group != "" {
		s = strings.ReplaceAll(s, group, "")
	}
	if decimal == "," {
		s = strings.Replace(s, ",", ".", 1)
	}
	if strings.Count(s, ".") > 1 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CurrencyCode maps a currency symbol or code to its ISO 4217 form
func CurrencyCode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if iso, ok := currencySymbols[s]; ok {
		return iso, true
	}
	if len(s) != 3 {
		return "", false
	}
	unit, err := currency.ParseISO(strings.ToUpper(s))
	if err != nil {
		return "", false
	}
	return unit.String(), true
}

// Date accepts YYYY, YYYY-MM and YYYY-MM-DD (single-digit month and day are
// zero-padded) and rejects calendar-invalid values.
func Date(raw string) (string, bool) {
	s := Text(raw)
	if s == "" {
		return "", true
	}
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	year, _ := strconv.Atoi(m[1])
	if m[2] == "" {
		return m[1], true
	}
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return "", false
	}
	if m[3] == "" {
		return m[1] + "-" + pad2(month), true
	}
	day, _ := strconv.Atoi(m[3])
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if day < 1 || t.Day() != day {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

// Year returns the year of a normalized date, nil when absent
func Year(date string) *int64 {
	if len(date) < 4 {
		return nil
	}
	y, err := strconv.ParseInt(date[:4], 10, 64)
	if err != nil {
		return nil
	}
	return &y
}

// CleanISBN strips hyphens and spaces and upper-cases a trailing check X
func CleanISBN(isbn string) string {
	isbn = strings.NewReplacer("-", "", " ", "").Replace(Text(isbn))
	return strings.ToUpper(isbn)
}

// ISBN13 validates the shape of an ISBN-13
func ISBN13(raw string) (string, bool) {
	s := CleanISBN(raw)
	if s == "" {
		return "", true
	}
	if len(s) != 13 || !allDigits(s) {
		return "", false
	}
	return s, true
}

// ISBN10 validates the shape of an ISBN-10
func ISBN10(raw string) (string, bool) {
	s := CleanISBN(raw)
	if s == "" {
		return "", true
	}
	if len(s) != 10 || !allDigits(s[:9]) || !(allDigits(s[9:]) || s[9] == 'X') {
		return "", false
	}
	return s, true
}

// Count coerces a non-negative whole number
func Count(v float64) (*int64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v != math.Trunc(v) {
		return nil, false
	}
	n := int64(v)
	return &n, true
}

// Decimal coerces a finite number
func Decimal(v float64) (*float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	return &v, true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
