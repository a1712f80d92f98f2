package timepivot

import (
	"fmt"
)

// NewFromClickHouse creates a new Connection backed by a ClickHouse cluster.
func NewFromClickHouse(config *ClickHouseConfig) (*Connection, error) {
	return NewWithConfig(&ClientConfig{ClickHouse: config})
}

// NewFromPostgres creates a new Connection backed by a PostgreSQL database.
func NewFromPostgres(config *PostgresConfig) (*Connection, error) {
	return NewWithConfig(&ClientConfig{Postgres: config})
}

// NewWithConfig creates a new Connection. Exactly one backend must be configured.
func NewWithConfig(config *ClientConfig) (*Connection, error) {
	if config.ClickHouse != nil && config.Postgres != nil {
		return nil, fmt.Errorf("please specify only one of ClickHouse or Postgres to connect")
	}
	if config.ClickHouse != nil {
		executor, err := newClickHouseExecutor(config.ClickHouse)
		if err != nil {
			return nil, err
		}
		return NewWithExecutor(executor, DialectClickHouse, config.Schema), nil
	}
	if config.Postgres != nil {
		executor, err := newPostgresExecutor(config.Postgres)
		if err != nil {
			return nil, err
		}
		return NewWithExecutor(executor, DialectPostgres, config.Schema), nil
	}
	return nil, fmt.Errorf("please specify at least one of ClickHouse or Postgres to connect")
}

// NewWithExecutor creates a Connection around an injected executor. This is the seam for
// tests and for callers that manage their own database handles.
func NewWithExecutor(executor QueryExecutor, dialect Dialect, schema SchemaConfig) *Connection {
	return &Connection{
		executor: executor,
		dialect:  dialect,
		schema:   schema.withDefaults(dialect),
	}
}
