package timepivot

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertRowSortedColumns(t *testing.T) {
	executor := &fakeExecutor{}
	conn := newTestConnection(DialectClickHouse, executor)

	err := conn.InsertRow(context.Background(), "events", map[string]interface{}{
		"location_id": int64(7),
		"created_at":  time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		"categories":  []string{"catA"},
	})
	require.Nil(t, err)
	require.Equal(t, 1, len(executor.statements))

	assert.Equal(t, "INSERT INTO events (categories, created_at, location_id) VALUES (?, ?, ?)", executor.statements[0])
	assert.Equal(t, 3, len(executor.stmtArgs[0]))
	// ClickHouse binds arrays natively
	assert.Equal(t, []string{"catA"}, executor.stmtArgs[0][0])
}

func TestInsertRowPostgresPlaceholdersAndJSON(t *testing.T) {
	executor := &fakeExecutor{}
	conn := newTestConnection(DialectPostgres, executor)

	err := conn.InsertRow(context.Background(), "events", map[string]interface{}{
		"categories":  []string{"catA", "catB"},
		"location_id": int64(7),
	})
	require.Nil(t, err)

	assert.Equal(t, "INSERT INTO events (categories, location_id) VALUES ($1, $2)", executor.statements[0])
	assert.Equal(t, `["catA","catB"]`, executor.stmtArgs[0][0])
	assert.Equal(t, int64(7), executor.stmtArgs[0][1])
}

func TestInsertRowEmptyIsNoop(t *testing.T) {
	executor := &fakeExecutor{}
	conn := newTestConnection(DialectClickHouse, executor)
	assert.Nil(t, conn.InsertRow(context.Background(), "events", nil))
	assert.Equal(t, 0, len(executor.statements))
}

func TestInsertBatchChunks(t *testing.T) {
	executor := &fakeExecutor{}
	conn := newTestConnection(DialectClickHouse, executor)

	rows := make([]map[string]interface{}, 5)
	for i := range rows {
		rows[i] = map[string]interface{}{"a": i, "b": fmt.Sprintf("v%d", i)}
	}
	err := conn.InsertBatch(context.Background(), "events", rows, 2)
	require.Nil(t, err)
	require.Equal(t, 3, len(executor.statements))

	assert.Equal(t, "INSERT INTO events (a, b) VALUES (?, ?), (?, ?)", executor.statements[0])
	assert.Equal(t, "INSERT INTO events (a, b) VALUES (?, ?)", executor.statements[2])
	assert.Equal(t, []interface{}{0, "v0", 1, "v1"}, executor.stmtArgs[0])
	assert.Equal(t, []interface{}{4, "v4"}, executor.stmtArgs[2])
}

func TestInsertBatchPostgresPlaceholderNumbering(t *testing.T) {
	executor := &fakeExecutor{}
	conn := newTestConnection(DialectPostgres, executor)

	rows := []map[string]interface{}{
		{"a": 1, "b": "x"},
		{"a": 2, "b": "y"},
	}
	err := conn.InsertBatch(context.Background(), "events", rows, 0)
	require.Nil(t, err)
	assert.Equal(t, "INSERT INTO events (a, b) VALUES ($1, $2), ($3, $4)", executor.statements[0])
}

func TestInsertBatchStopsOnError(t *testing.T) {
	executor := &fakeExecutor{execErr: errors.New("table is read only")}
	conn := newTestConnection(DialectClickHouse, executor)

	rows := []map[string]interface{}{{"a": 1}, {"a": 2}, {"a": 3}}
	err := conn.InsertBatch(context.Background(), "events", rows, 1)
	assert.NotNil(t, err)
	assert.Equal(t, 1, len(executor.statements))
}

func TestEncodeValue(t *testing.T) {
	ch := newTestConnection(DialectClickHouse, &fakeExecutor{})
	pg := newTestConnection(DialectPostgres, &fakeExecutor{})

	assert.Equal(t, uint8(1), ch.encodeValue(true))
	assert.Equal(t, uint8(0), ch.encodeValue(false))
	assert.Equal(t, map[string][]string{"c1": {"c1_a"}}, ch.encodeValue(map[string][]string{"c1": {"c1_a"}}))

	assert.Equal(t, `{"c1":["c1_a"]}`, pg.encodeValue(map[string][]string{"c1": {"c1_a"}}))
	assert.Equal(t, []byte{0x01}, pg.encodeValue([]byte{0x01}))
	assert.Equal(t, true, pg.encodeValue(true))
	assert.Nil(t, ch.encodeValue(nil))
}
