package timepivot

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

const defaultBatchSize = 1000

// InsertRow inserts a single row. Columns are emitted in sorted order so repeated
// inserts of the same row shape produce identical SQL; values are bound, not inlined.
func (c *Connection) InsertRow(ctx context.Context, table string, row map[string]interface{}) error {
	if len(row) == 0 {
		return nil
	}
	columns := sortedColumns(row)
	args := make([]interface{}, 0, len(columns))
	marks := make([]string, 0, len(columns))
	for _, col := range columns {
		args = append(args, c.encodeValue(row[col]))
		marks = append(marks, placeholder(c.dialect, len(args)))
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(marks, ", "),
	)
	return c.ExecSQL(ctx, query, args...)
}

// InsertBatch inserts rows in chunks of batchSize (default 1000) using multi-row VALUES
// statements. Column order comes from the first row; rows missing a column insert NULL.
// A failure mid-batch leaves earlier chunks committed; there is no compensation.
func (c *Connection) InsertBatch(ctx context.Context, table string, rows []map[string]interface{}, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	columns := sortedColumns(rows[0])

	for batchStart := 0; batchStart < len(rows); batchStart += batchSize {
		batchEnd := batchStart + batchSize
		if batchEnd > len(rows) {
			batchEnd = len(rows)
		}
		batch := rows[batchStart:batchEnd]

		args := make([]interface{}, 0, len(batch)*len(columns))
		tuples := make([]string, 0, len(batch))
		for _, row := range batch {
			marks := make([]string, 0, len(columns))
			for _, col := range columns {
				args = append(args, c.encodeValue(row[col]))
				marks = append(marks, placeholder(c.dialect, len(args)))
			}
			tuples = append(tuples, "("+strings.Join(marks, ", ")+")")
		}
		query := fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES %s",
			table, strings.Join(columns, ", "), strings.Join(tuples, ", "),
		)
		if err := c.ExecSQL(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func sortedColumns(row map[string]interface{}) []string {
	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

// encodeValue converts a value into what the dialect's driver can bind. ClickHouse binds
// maps and slices natively (Map and Array columns) but stores bools as UInt8; Postgres
// stores structured values as JSON text.
func (c *Connection) encodeValue(value interface{}) interface{} {
	if value == nil {
		return nil
	}
	if c.dialect == DialectClickHouse {
		if b, ok := value.(bool); ok {
			if b {
				return uint8(1)
			}
			return uint8(0)
		}
		return value
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		if _, ok := value.([]byte); ok {
			return value
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return value
		}
		return string(encoded)
	default:
		return value
	}
}
