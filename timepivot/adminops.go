package timepivot

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// AggregateQuery describes a generic grouped aggregation. Aggregates maps output alias
// to SQL expression; aliases are emitted in sorted order.
type AggregateQuery struct {
	Table      string
	GroupBy    []string
	Aggregates map[string]string
	Where      []string
	Having     []string
	OrderBy    []string
	Limit      int
	// Settings emits a ClickHouse SETTINGS clause; rejected on Postgres.
	Settings map[string]interface{}
}

// Aggregate composes and runs a grouped aggregation query, returning the raw rows.
func (c *Connection) Aggregate(ctx context.Context, q AggregateQuery) ([][]interface{}, error) {
	if len(q.Settings) > 0 && c.dialect != DialectClickHouse {
		return nil, fmt.Errorf("SETTINGS clause is not supported on %s", c.dialect)
	}
	aliases := make([]string, 0, len(q.Aggregates))
	for alias := range q.Aggregates {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	selectParts := append([]string{}, q.GroupBy...)
	for _, alias := range aliases {
		selectParts = append(selectParts, fmt.Sprintf("%s AS %s", q.Aggregates[alias], alias))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectParts, ", "), q.Table)
	query += whereClause(q.Where) + groupByClause(q.GroupBy) + havingClause(q.Having) + orderByClause(q.OrderBy)
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	query += settingsClause(q.Settings)
	return c.ExecuteSQL(ctx, query)
}

var clickhouseBucketFuncs = map[string]string{
	"minute": "toStartOfMinute",
	"hour":   "toStartOfHour",
	"day":    "toStartOfDay",
	"week":   "toStartOfWeek",
	"month":  "toStartOfMonth",
}

var postgresBucketUnits = map[string]bool{
	"minute": true,
	"hour":   true,
	"day":    true,
	"week":   true,
	"month":  true,
}

// TimeBucket runs a calendar-bucketed aggregation using the dialect's named truncation
// functions. Unlike the pivot path this supports calendar units (week, month) but no
// multipliers. valueExprs maps output alias to SQL expression, emitted in sorted order.
func (c *Connection) TimeBucket(ctx context.Context, table, timestampColumn, granularity string, valueExprs map[string]string, where []string, orderByBucket bool, limit int) ([][]interface{}, error) {
	var bucket string
	if c.dialect == DialectPostgres {
		if !postgresBucketUnits[granularity] {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedGranularity, granularity)
		}
		bucket = fmt.Sprintf("date_trunc('%s', %s) AS bucket", granularity, timestampColumn)
	} else {
		fn, ok := clickhouseBucketFuncs[granularity]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedGranularity, granularity)
		}
		bucket = fmt.Sprintf("%s(%s) AS bucket", fn, timestampColumn)
	}

	aliases := make([]string, 0, len(valueExprs))
	for alias := range valueExprs {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	metrics := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		metrics = append(metrics, fmt.Sprintf("%s AS %s", valueExprs[alias], alias))
	}

	query := fmt.Sprintf("SELECT %s, %s FROM %s", bucket, strings.Join(metrics, ", "), table)
	query += whereClause(where) + " GROUP BY bucket"
	if orderByBucket {
		query += " ORDER BY bucket"
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return c.ExecuteSQL(ctx, query)
}
