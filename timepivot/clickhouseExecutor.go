package timepivot

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	log "github.com/sirupsen/logrus"
)

// clickhouseExecutor is the QueryExecutor impl for ClickHouse over the native protocol.
type clickhouseExecutor struct {
	conn driver.Conn
}

func newClickHouseExecutor(config *ClickHouseConfig) (*clickhouseExecutor, error) {
	options := &clickhouse.Options{
		Addr: config.Addr,
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
	}
	switch strings.ToUpper(config.Compression) {
	case "", "NONE":
	case "LZ4":
		options.Compression = &clickhouse.Compression{Method: clickhouse.CompressionLZ4}
	case "ZSTD":
		options.Compression = &clickhouse.Compression{Method: clickhouse.CompressionZSTD}
	default:
		return nil, fmt.Errorf("unsupported clickhouse compression method: %s", config.Compression)
	}
	if config.DialTimeout != 0 {
		options.DialTimeout = config.DialTimeout
	}
	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, err
	}
	log.Infof("Connected to ClickHouse at %s", strings.Join(config.Addr, ","))
	return &clickhouseExecutor{conn: conn}, nil
}

// NewClickHouseExecutor wraps an existing native ClickHouse connection.
func NewClickHouseExecutor(conn driver.Conn) QueryExecutor {
	return &clickhouseExecutor{conn: conn}
}

func (e *clickhouseExecutor) Execute(ctx context.Context, query string, args ...interface{}) ([][]interface{}, error) {
	rows, err := e.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columnTypes := rows.ColumnTypes()
	var out [][]interface{}
	for rows.Next() {
		scanTargets := make([]interface{}, len(columnTypes))
		for i, ct := range columnTypes {
			scanTargets[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}
		row := make([]interface{}, len(scanTargets))
		for i, target := range scanTargets {
			row[i] = reflect.ValueOf(target).Elem().Interface()
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (e *clickhouseExecutor) Exec(ctx context.Context, query string, args ...interface{}) error {
	return e.conn.Exec(ctx, query, args...)
}

func (e *clickhouseExecutor) Close() error {
	return e.conn.Close()
}
