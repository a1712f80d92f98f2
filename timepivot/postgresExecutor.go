package timepivot

import (
	"context"
	"database/sql"
	"fmt"

	// database/sql driver for PostgreSQL
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

// postgresExecutor is the QueryExecutor impl for PostgreSQL over database/sql.
type postgresExecutor struct {
	db *sql.DB
}

func newPostgresExecutor(config *PostgresConfig) (*postgresExecutor, error) {
	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		config.Host, config.Port, config.Database, config.Username, config.Password, sslMode,
	)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	log.Infof("Connected to PostgreSQL at %s:%d", config.Host, config.Port)
	return &postgresExecutor{db: db}, nil
}

// NewPostgresExecutor wraps an existing database/sql handle.
func NewPostgresExecutor(db *sql.DB) QueryExecutor {
	return &postgresExecutor{db: db}
}

func (e *postgresExecutor) Execute(ctx context.Context, query string, args ...interface{}) ([][]interface{}, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out [][]interface{}
	for rows.Next() {
		scanTargets := make([]interface{}, len(columns))
		for i := range scanTargets {
			scanTargets[i] = new(interface{})
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}
		row := make([]interface{}, len(columns))
		for i, target := range scanTargets {
			value := *(target.(*interface{}))
			// lib/pq hands text and jsonb values back as []byte
			if b, ok := value.([]byte); ok {
				value = string(b)
			}
			row[i] = value
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (e *postgresExecutor) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := e.db.ExecContext(ctx, query, args...)
	return err
}

func (e *postgresExecutor) Close() error {
	return e.db.Close()
}
