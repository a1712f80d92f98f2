package timepivot

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat is returned when an interval expression does not match the
	// accepted grammar, e.g. "5x" or "5 days extra".
	ErrInvalidFormat = errors.New("invalid interval format")

	// ErrTypeMismatch is returned when a dynamically typed argument has a type the
	// operation does not accept.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnsupportedGranularity is returned when a bucket granularity has no mapped
	// truncation function for the target dialect.
	ErrUnsupportedGranularity = errors.New("unsupported granularity")
)

// QueryExecutionError wraps a failure reported by the query executor. The query text is
// preserved for diagnostics; the underlying error is reachable via errors.Unwrap.
type QueryExecutionError struct {
	Query string
	Err   error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}
