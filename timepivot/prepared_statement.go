package timepivot

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// PreparedStatement represents a query template with '?' bind variables that can be
// executed multiple times with different parameter values, similar to database/sql.Stmt.
// Parameters are inlined as escaped literals, so the statement works identically on both
// dialects.
type PreparedStatement interface {
	// Set sets the parameter at the given 1-based index.
	Set(parameterIndex int, value interface{}) error

	// Execute executes the prepared statement with the currently set parameters.
	Execute(ctx context.Context) ([][]interface{}, error)

	// ExecuteWithParams sets all parameters and executes in one call.
	ExecuteWithParams(ctx context.Context, params ...interface{}) ([][]interface{}, error)

	// GetQuery returns the original query template.
	GetQuery() string

	// GetParameterCount returns the number of parameters in the template.
	GetParameterCount() int

	// ClearParameters clears all currently set parameters.
	ClearParameters() error

	// Close closes the prepared statement.
	Close() error
}

type preparedStatement struct {
	connection    *Connection
	queryTemplate string
	paramCount    int
	parameters    []interface{}
	set           []bool
	mutex         sync.RWMutex
	closed        bool
}

// Prepare creates a PreparedStatement for the given query template. The template uses
// '?' as placeholders and must contain at least one.
func (c *Connection) Prepare(queryTemplate string) (PreparedStatement, error) {
	if queryTemplate == "" {
		return nil, fmt.Errorf("query template cannot be empty")
	}
	paramCount := strings.Count(queryTemplate, "?")
	if paramCount == 0 {
		return nil, fmt.Errorf("query template must contain at least one parameter placeholder (?)")
	}
	return &preparedStatement{
		connection:    c,
		queryTemplate: queryTemplate,
		paramCount:    paramCount,
		parameters:    make([]interface{}, paramCount),
		set:           make([]bool, paramCount),
	}, nil
}

func (ps *preparedStatement) Set(parameterIndex int, value interface{}) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if ps.closed {
		return fmt.Errorf("prepared statement is closed")
	}
	if parameterIndex < 1 || parameterIndex > ps.paramCount {
		return fmt.Errorf("parameter index %d is out of range [1, %d]", parameterIndex, ps.paramCount)
	}
	ps.parameters[parameterIndex-1] = value
	ps.set[parameterIndex-1] = true
	return nil
}

func (ps *preparedStatement) Execute(ctx context.Context) ([][]interface{}, error) {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	if ps.closed {
		return nil, fmt.Errorf("prepared statement is closed")
	}
	for i, isSet := range ps.set {
		if !isSet {
			return nil, fmt.Errorf("parameter at index %d is not set", i+1)
		}
	}
	return ps.connection.ExecuteSQLWithParams(ctx, ps.queryTemplate, ps.parameters)
}

func (ps *preparedStatement) ExecuteWithParams(ctx context.Context, params ...interface{}) ([][]interface{}, error) {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	if ps.closed {
		return nil, fmt.Errorf("prepared statement is closed")
	}
	if len(params) != ps.paramCount {
		return nil, fmt.Errorf("expected %d parameters, got %d", ps.paramCount, len(params))
	}
	return ps.connection.ExecuteSQLWithParams(ctx, ps.queryTemplate, params)
}

func (ps *preparedStatement) GetQuery() string {
	return ps.queryTemplate
}

func (ps *preparedStatement) GetParameterCount() int {
	return ps.paramCount
}

func (ps *preparedStatement) ClearParameters() error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if ps.closed {
		return fmt.Errorf("prepared statement is closed")
	}
	for i := range ps.parameters {
		ps.parameters[i] = nil
		ps.set[i] = false
	}
	return nil
}

func (ps *preparedStatement) Close() error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	ps.closed = true
	ps.parameters = nil
	ps.set = nil
	return nil
}
