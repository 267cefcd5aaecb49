// Package identity assigns canonical ids and cross-source join keys.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/bookmerge/internal/normalize"
	"github.com/lehigh-university-libraries/bookmerge/internal/records"
)

const (
	separator   = "\x1f"
	placeholder = "\x00"
)

// ErrIdentityCollision is the sentinel matched by every CollisionError
var ErrIdentityCollision = errors.New("identity collision")

// Key holds the components a canonical id is computed from, already in
// comparison form.
type Key struct {
	ISBN13      string
	Title       string
	FirstAuthor string
	Publisher   string
	PubYear     *int64
}

// NewKey builds a Key from display values
func NewKey(isbn13, title, firstAuthor, publisher string, pubYear *int64) Key {
	return Key{
		ISBN13:      normalize.CleanISBN(isbn13),
		Title:       normalize.Key(title),
		FirstAuthor: normalize.Key(firstAuthor),
		Publisher:   normalize.Key(publisher),
		PubYear:     pubYear,
	}
}

// KeyOf returns the identity components of a normalized record
func KeyOf(rec *records.NormalizedRecord) Key {
	return NewKey(rec.ISBN13, rec.TitleNormalized, rec.FirstAuthor, rec.Publisher, rec.PubYear)
}

// KeyOfBook returns the identity components of a canonical row
func KeyOfBook(b *records.CanonicalBook) Key {
	return NewKey(b.ISBN13, b.TitleNormalized, b.FirstAuthor, b.Publisher, b.PubYear)
}

// Resolve returns the canonical id of a normalized record
func Resolve(rec *records.NormalizedRecord) string {
	return KeyOf(rec).ID()
}

// ID is the ISBN-13 when present, otherwise the SHA-1 hex digest of the
// title, first author, publisher and year. Missing components hash as a
// placeholder distinct from any text.
func (k Key) ID() string {
	if k.ISBN13 != "" {
		return k.ISBN13
	}
	sum := sha1.Sum([]byte(k.digestInput()))
	return hex.EncodeToString(sum[:])
}

// IsDigest reports whether ID falls back to the digest form
func (k Key) IsDigest() bool {
	return k.ISBN13 == ""
}

// Equal compares every component
func (k Key) Equal(o Key) bool {
	if k.ISBN13 != o.ISBN13 || k.Title != o.Title || k.FirstAuthor != o.FirstAuthor || k.Publisher != o.Publisher {
		return false
	}
	if k.PubYear == nil || o.PubYear == nil {
		return k.PubYear == nil && o.PubYear == nil
	}
	return *k.PubYear == *o.PubYear
}

func (k Key) String() string {
	if k.ISBN13 != "" {
		return "isbn13=" + k.ISBN13
	}
	year := "-"
	if k.PubYear != nil {
		year = strconv.FormatInt(*k.PubYear, 10)
	}
	return fmt.Sprintf("title=%q author=%q publisher=%q year=%s", k.Title, k.FirstAuthor, k.Publisher, year)
}

func (k Key) digestInput() string {
	year := ""
	if k.PubYear != nil {
		year = strconv.FormatInt(*k.PubYear, 10)
	}
	parts := []string{k.Title, k.FirstAuthor, k.Publisher, year}
	for i, p := range parts {
		if p == "" {
			parts[i] = placeholder
		}
	}
	return strings.Join(parts, separator)
}

// CollisionError reports two distinct identities sharing a canonical id
type CollisionError struct {
	ID     string
	First  Key
	Second Key
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("canonical id %s computed for distinct records (%s) and (%s)", e.ID, e.First, e.Second)
}

// Is reports whether target is ErrIdentityCollision
func (e *CollisionError) Is(target error) bool {
	return target == ErrIdentityCollision
}

// CheckCollision returns a CollisionError when keys sharing id differ. Keys
// resolved from an ISBN-13 only need to agree on it.
func CheckCollision(id string, keys []Key) error {
	if len(keys) < 2 {
		return nil
	}
	first := keys[0]
	for _, k := range keys[1:] {
		if first.IsDigest() && k.IsDigest() && first.Equal(k) {
			continue
		}
		if !first.IsDigest() && !k.IsDigest() && first.ISBN13 == k.ISBN13 {
			continue
		}
		return &CollisionError{ID: id, First: first, Second: k}
	}
	return nil
}
