package timepivot

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Connection to an analytics store, normally created through the factory functions in
// connectionFactory.go. It holds no state beyond the injected executor and schema.
type Connection struct {
	executor QueryExecutor
	dialect  Dialect
	schema   SchemaConfig
	trace    bool
}

// Dialect returns the SQL dialect this connection emits.
func (c *Connection) Dialect() Dialect {
	return c.dialect
}

// ExecuteSQL runs a query and returns the raw result rows. Executor failures are wrapped
// in a QueryExecutionError with the query text preserved; there is no retry.
func (c *Connection) ExecuteSQL(ctx context.Context, query string, args ...interface{}) ([][]interface{}, error) {
	if c.trace {
		log.Infof("Executing SQL query on %s: %s", c.dialect, query)
	}
	rows, err := c.executor.Execute(ctx, query, args...)
	if err != nil {
		log.Errorf("Caught exception to execute SQL query %s, Error: %v\n", query, err)
		return nil, &QueryExecutionError{Query: query, Err: err}
	}
	return rows, nil
}

// ExecuteSQLWithParams formats a query pattern containing '?' placeholders by inlining
// the given parameters as escaped SQL literals, then executes it. Prefer ExecuteSQL with
// bound arguments; this path exists for clauses drivers cannot bind (DDL, SETTINGS).
func (c *Connection) ExecuteSQLWithParams(ctx context.Context, queryPattern string, params []interface{}) ([][]interface{}, error) {
	query, err := fillQueryWithParameters(queryPattern, params)
	if err != nil {
		log.Errorf("Failed to format query pattern %s, Error: %v\n", queryPattern, err)
		return nil, err
	}
	return c.ExecuteSQL(ctx, query)
}

// ExecSQL runs a statement that returns no result set.
func (c *Connection) ExecSQL(ctx context.Context, query string, args ...interface{}) error {
	if c.trace {
		log.Infof("Executing SQL statement on %s: %s", c.dialect, query)
	}
	if err := c.executor.Exec(ctx, query, args...); err != nil {
		log.Errorf("Caught exception to execute SQL statement %s, Error: %v\n", query, err)
		return &QueryExecutionError{Query: query, Err: err}
	}
	return nil
}

// Close releases the underlying connection.
func (c *Connection) Close() error {
	return c.executor.Close()
}

func (c *Connection) OpenTrace() {
	c.trace = true
}

func (c *Connection) CloseTrace() {
	c.trace = false
}
