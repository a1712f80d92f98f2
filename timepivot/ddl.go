package timepivot

import (
	"context"
	"fmt"
	"strings"
)

// ColumnDef is one column in a CREATE TABLE statement. Definitions are ordered, so the
// emitted SQL is deterministic.
type ColumnDef struct {
	Name string
	Type string
}

// CreateTableOptions carries the per-dialect table clauses. ClickHouse uses Engine,
// PartitionBy, OrderBy and TTL; Postgres uses PrimaryKey and Indexes. Fields for the
// other dialect are ignored.
type CreateTableOptions struct {
	// Engine defaults to MergeTree().
	Engine      string
	PartitionBy string
	// OrderBy defaults to tuple() when empty.
	OrderBy []string
	TTL     string

	PrimaryKey []string
	Indexes    []string
}

// CreateTableIfNotExists creates a table with the given ordered column definitions.
// database qualifies the table name on ClickHouse and is ignored on Postgres.
func (c *Connection) CreateTableIfNotExists(ctx context.Context, database, table string, columns []ColumnDef, opts *CreateTableOptions) error {
	if opts == nil {
		opts = &CreateTableOptions{}
	}
	colDefs := make([]string, len(columns))
	for i, col := range columns {
		colDefs[i] = col.Name + " " + col.Type
	}

	if c.dialect == DialectPostgres {
		pkClause := ""
		if len(opts.PrimaryKey) > 0 {
			pkClause = fmt.Sprintf(", PRIMARY KEY (%s)", strings.Join(opts.PrimaryKey, ", "))
		}
		query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s%s)", table, strings.Join(colDefs, ", "), pkClause)
		if err := c.ExecSQL(ctx, query); err != nil {
			return err
		}
		for _, indexColumn := range opts.Indexes {
			indexName := fmt.Sprintf("%s_%s_idx", table, indexColumn)
			indexQuery := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, table, indexColumn)
			if err := c.ExecSQL(ctx, indexQuery); err != nil {
				return err
			}
		}
		return nil
	}

	engine := opts.Engine
	if engine == "" {
		engine = "MergeTree()"
	}
	clauses := []string{fmt.Sprintf("ENGINE = %s", engine)}
	if opts.PartitionBy != "" {
		clauses = append(clauses, fmt.Sprintf("PARTITION BY %s", opts.PartitionBy))
	}
	if len(opts.OrderBy) > 0 {
		clauses = append(clauses, fmt.Sprintf("ORDER BY (%s)", strings.Join(opts.OrderBy, ", ")))
	} else {
		clauses = append(clauses, "ORDER BY tuple()")
	}
	if opts.TTL != "" {
		clauses = append(clauses, fmt.Sprintf("TTL %s", opts.TTL))
	}
	name := table
	if database != "" {
		name = database + "." + table
	}
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) %s", name, strings.Join(colDefs, ", "), strings.Join(clauses, " "))
	return c.ExecSQL(ctx, query)
}

// DropTableIfExists drops a table.
func (c *Connection) DropTableIfExists(ctx context.Context, table string) error {
	return c.ExecSQL(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
}

// ListTables returns the table names visible to the connection. database narrows the
// listing on ClickHouse and is ignored on Postgres, which lists the public schema.
func (c *Connection) ListTables(ctx context.Context, database string) ([]string, error) {
	var query string
	if c.dialect == DialectPostgres {
		query = "SELECT table_name FROM information_schema.tables WHERE table_schema = 'public'"
	} else if database != "" {
		query = fmt.Sprintf("SHOW TABLES FROM %s", database)
	} else {
		query = "SHOW TABLES"
	}
	rows, err := c.ExecuteSQL(ctx, query)
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) < 1 {
			continue
		}
		tables = append(tables, decodeText(row[0]))
	}
	return tables, nil
}
