package timepivot

import "context"

// QueryExecutor runs SQL text against a backing engine. Execute returns the raw result
// rows; Exec is for statements that produce no result set (DDL, inserts). Implementations
// own the underlying connection and release it on Close.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, args ...interface{}) ([][]interface{}, error)
	Exec(ctx context.Context, query string, args ...interface{}) error
	Close() error
}
