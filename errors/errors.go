// Package errors defines the five-category error taxonomy used across the
// signature-localization pipeline.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies a pipeline failure for handling-strategy purposes.
type Category string

const (
	// CategoryUnsupportedFileType: the adapter cannot parse the input. Fatal
	// for the run.
	CategoryUnsupportedFileType Category = "unsupported_file_type"

	// CategoryOracleUnavailable: the oracle is unreachable or returned a
	// transport error. Fatal for the run; no partial Outcome is persisted.
	CategoryOracleUnavailable Category = "oracle_unavailable"

	// CategoryOracleInconsistent: the quick-check detected the file, but a
	// later call against the original bytes did not. The run is abandoned
	// as Unknown rather than emitting spurious matches.
	CategoryOracleInconsistent Category = "oracle_inconsistent"

	// CategoryResolutionFloor: a recursion would drop below the minimum
	// halvable chunk size. Not an error condition — callers should treat it
	// as a silent stop, but it is classified here for uniform logging.
	CategoryResolutionFloor Category = "resolution_floor"

	// CategoryModificationTooSmall: a verification modification window
	// exceeds the match size. Not fatal — the cell is recorded
	// NOT_SCANNED.
	CategoryModificationTooSmall Category = "modification_too_small"
)

// Fatal reports whether an error in this category should abort the current
// run rather than being absorbed into a degraded result.
func (c Category) Fatal() bool {
	switch c {
	case CategoryUnsupportedFileType, CategoryOracleUnavailable:
		return true
	default:
		return false
	}
}

// CategorizedError wraps an underlying error with its pipeline category.
type CategorizedError struct {
	Original error
	Category Category
	Message  string
}

func (ce *CategorizedError) Error() string {
	return fmt.Sprintf("[%s] %s", ce.Category, ce.Message)
}

func (ce *CategorizedError) Unwrap() error {
	return ce.Original
}

// New builds a CategorizedError wrapping err under the given category.
func New(category Category, err error) *CategorizedError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &CategorizedError{Original: err, Category: category, Message: msg}
}

// Newf builds a CategorizedError from a formatted message, with no
// underlying wrapped error.
func Newf(category Category, format string, args ...interface{}) *CategorizedError {
	return &CategorizedError{Category: category, Message: fmt.Sprintf(format, args...)}
}

// CategoryOf extracts the Category from err if it is (or wraps) a
// CategorizedError, returning ok=false otherwise.
func CategoryOf(err error) (Category, bool) {
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.Category, true
	}
	return "", false
}

var (
	ErrUnsupportedFileType = errors.New("adapter: unsupported file type")
	ErrOracleUnreachable   = errors.New("oracle: unreachable")
	ErrOracleInconsistent  = errors.New("oracle: inconsistent verdict on unmodified payload")
)
