package normalize

import (
	"errors"
	"fmt"
)

// ErrMalformedField is the sentinel matched by every FieldError
var ErrMalformedField = errors.New("malformed field")

// Kind is the declared semantic type a field failed to coerce into
type Kind string

const (
	KindText     Kind = "text"
	KindNumber   Kind = "number"
	KindCurrency Kind = "currency"
	KindDate     Kind = "date"
	KindISBN     Kind = "isbn"
)

// FieldError records a value that could not be normalized. The field is
// nulled and the record continues.
type FieldError struct {
	Source   string
	RecordID string
	Field    string
	Kind     Kind
	Value    string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("malformed %s in %s record %s: field %s value %q", e.Kind, e.Source, e.RecordID, e.Field, e.Value)
}

// Is reports whether target is ErrMalformedField
func (e *FieldError) Is(target error) bool {
	return target == ErrMalformedField
}
