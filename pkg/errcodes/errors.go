package errcodes

import (
	"fmt"
)

type Error struct {
	Message string
	Code    string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Code == err.Code
}

// ParseMismatch indicates a folder or file name that doesn't fit the naming
// convention. The file is skipped and reported, never fatal.
func ParseMismatch(name string) error {
	return &Error{
		fmt.Sprintf("%q doesn't match the expected naming convention.", name),
		"parse_mismatch",
	}
}

// CatalogUnavailable indicates the catalog couldn't be reached after all
// retries, or the request budget was exhausted mid-run.
func CatalogUnavailable(reason string) error {
	return &Error{
		"Comic Vine is unavailable: " + reason,
		"catalog_unavailable",
	}
}

// AmbiguousMatch indicates multiple candidates with no safe automatic choice.
func AmbiguousMatch(query string, count int) error {
	return &Error{
		fmt.Sprintf("%d candidates match %q; a selection is required.", count, query),
		"ambiguous_match",
	}
}

// DestinationConflict indicates two source files mapping to the same
// destination. Neither file is moved.
func DestinationConflict(dest string) error {
	return &Error{
		fmt.Sprintf("Multiple files map to %q.", dest),
		"destination_conflict",
	}
}

// ConversionFailure indicates a failed archive repack. The original file is
// left untouched.
func ConversionFailure(path string) error {
	return &Error{
		fmt.Sprintf("Failed to convert %q.", path),
		"conversion_failure",
	}
}

// NotFound returns an error indicating the given resource is missing.
func NotFound(resource string) error {
	return &Error{
		resource + " not found.",
		"not_found",
	}
}

func ValidationError(msg string) error {
	return &Error{
		msg,
		"validation_error",
	}
}
