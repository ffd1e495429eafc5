package models

import (
	"errors"
	"fmt"
)

var (
	// ErrParse marks a malformed filter expression.
	ErrParse = errors.New("filter parse error")
	// ErrResolution marks a missing entity or field.
	ErrResolution = errors.New("resolution error")
	// ErrAggregation marks a failed query against the data source.
	ErrAggregation = errors.New("aggregation error")
	// ErrValidation marks invalid input at the lifecycle layer.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an unknown block, menu or action id.
	ErrNotFound = errors.New("not found")
)

// ErrorKind returns the taxonomy label of err, used for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrResolution):
		return "resolution"
	case errors.Is(err, ErrAggregation):
		return "aggregation"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "internal"
}

// BlockError is a failure scoped to a single block.
type BlockError struct {
	BlockID int64
	Err     error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %d: %v", e.BlockID, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

// Validationf builds an ErrValidation with a message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Kind returns the taxonomy label of the wrapped error.
func (e *BlockError) Kind() string { return ErrorKind(e.Err) }
