package iff

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrEndOfScope is returned when the current form or chunk has no more children.
// It is not a failure: readers loop until they see it.
var ErrEndOfScope = errors.New("end of scope")

// StructuralError reports a malformed container: bad lengths, truncated data,
// reads past a scope end or scopes left open when finishing a document.
type StructuralError struct {
	Offset int
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("iff: structural error at 0x%x: %s", e.Offset, e.Reason)
}

// SchemaMismatchError is returned when an adapter requires a specific tag and
// the document has another one, or nothing at all.
type SchemaMismatchError struct {
	Expected Tag
	Actual   Tag
	Offset   int
}

func (e *SchemaMismatchError) Error() string {
	if e.Actual.IsZero() {
		return fmt.Sprintf("iff: expected %q at 0x%x, found end of scope", e.Expected.String(), e.Offset)
	}
	return fmt.Sprintf("iff: expected %q at 0x%x, found %q", e.Expected.String(), e.Offset, e.Actual.String())
}

// ResourceNotFoundError describes an external asset reference that could not be
// located. Callers keep the reference as is and carry on.
type ResourceNotFoundError struct {
	Path string
	Root string
}

func (e *ResourceNotFoundError) Error() string {
	if e.Root == "" {
		return fmt.Sprintf("resource %q not found", e.Path)
	}
	return fmt.Sprintf("resource %q not found under %q", e.Path, e.Root)
}

func Structuralf(offset int, format string, args ...interface{}) error {
	return &StructuralError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

func IsStructural(err error) bool {
	var e *StructuralError
	return errors.As(err, &e)
}

func IsSchemaMismatch(err error) bool {
	var e *SchemaMismatchError
	return errors.As(err, &e)
}
