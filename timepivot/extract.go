package timepivot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlatCountRow is one (time bucket, dimension value(s), count) tuple returned by a
// dimension query, before pivoting.
type FlatCountRow struct {
	Bucket      time.Time
	Category    string
	Subcategory string
	Location    int64
	HasLocation bool
	Count       int64
}

// bucketExpr returns the SQL expression truncating column down to the start of its
// bucket. ClickHouse uses toStartOfInterval; Postgres uses epoch-aligned truncation so
// both dialects bucket against the same UTC-epoch anchor.
func bucketExpr(dialect Dialect, column string, bucket Interval) (string, error) {
	switch bucket.Unit {
	case Minute, Hour, Day:
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedGranularity, bucket.Unit)
	}
	if dialect == DialectPostgres {
		step := bucket.Seconds()
		return fmt.Sprintf("to_timestamp(floor(extract(epoch from %s) / %d) * %d)", column, step, step), nil
	}
	return fmt.Sprintf("toStartOfInterval(%s, INTERVAL %d %s)", column, bucket.Value, bucket.Unit), nil
}

// categoryExpr returns the set-returning expression producing one category value per
// source tag, for each of the column shapes.
func categoryExpr(dialect Dialect, column string, shape ColumnShape) (string, error) {
	if dialect == DialectPostgres {
		switch shape {
		case ShapeFlatArray:
			return fmt.Sprintf("jsonb_array_elements_text(%s::jsonb)", column), nil
		case ShapeJSONObject:
			return fmt.Sprintf("jsonb_object_keys(%s::jsonb)", column), nil
		default:
			return "", fmt.Errorf("column shape %s is not supported on postgres", shape)
		}
	}
	switch shape {
	case ShapeFlatArray:
		return fmt.Sprintf("arrayJoin(%s)", column), nil
	case ShapeNativeMap:
		return fmt.Sprintf("arrayJoin(mapKeys(%s))", column), nil
	case ShapeJSONObject:
		return fmt.Sprintf("arrayJoin(JSONExtractKeys(%s))", column), nil
	default:
		return "", fmt.Errorf("unknown column shape %s", shape)
	}
}

// windowFilters builds the WHERE conditions restricting rows to the half-open window
// plus the optional location equality filter. Zero window bounds are skipped, which the
// unbucketed count helpers rely on. Values are bound, not inlined.
func (c *Connection) windowFilters(window TimeWindow, locationID *int64) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}
	next := func() string { return placeholder(c.dialect, len(args)) }
	if !window.Start.IsZero() {
		args = append(args, window.Start)
		conditions = append(conditions, fmt.Sprintf("%s >= %s", c.schema.TimestampColumn, next()))
	}
	if !window.End.IsZero() {
		args = append(args, window.End)
		conditions = append(conditions, fmt.Sprintf("%s < %s", c.schema.TimestampColumn, next()))
	}
	if locationID != nil {
		args = append(args, *locationID)
		conditions = append(conditions, fmt.Sprintf("%s = %s", c.schema.LocationColumn, next()))
	}
	return conditions, args
}

func (c *Connection) countFunc() string {
	if c.dialect == DialectPostgres {
		return "count(*)"
	}
	return "count()"
}

// extractCategoryCounts issues one grouped-and-bucketed query counting individual
// category tags and decodes the result into flat rows.
func (c *Connection) extractCategoryCounts(ctx context.Context, table, column string, shape ColumnShape, window TimeWindow, bucket Interval, locationID *int64, byLocation bool) ([]FlatCountRow, error) {
	bucketSQL, err := bucketExpr(c.dialect, c.schema.TimestampColumn, bucket)
	if err != nil {
		return nil, err
	}
	categorySQL, err := categoryExpr(c.dialect, column, shape)
	if err != nil {
		return nil, err
	}
	conditions, args := c.windowFilters(window, locationID)

	locSelect, locGroup := "", ""
	if byLocation {
		locSelect = fmt.Sprintf(", %s AS loc", c.schema.LocationColumn)
		locGroup = ", loc"
	}

	var query string
	if c.dialect == DialectPostgres {
		// Set-returning functions live in a subquery so the outer grouping stays plain.
		query = fmt.Sprintf(
			"SELECT time_group%s, category, %s AS cnt FROM (SELECT %s AS time_group%s, %s AS category FROM %s%s) src GROUP BY time_group%s, category ORDER BY time_group, category",
			locGroup, c.countFunc(), bucketSQL, locSelect, categorySQL, table, whereClause(conditions), locGroup,
		)
	} else {
		query = fmt.Sprintf(
			"SELECT %s AS time_group%s, %s AS category, %s AS cnt FROM %s%s GROUP BY time_group%s, category ORDER BY time_group, category",
			bucketSQL, locSelect, categorySQL, c.countFunc(), table, whereClause(conditions), locGroup,
		)
	}

	rows, err := c.ExecuteSQL(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return decodeCategoryRows(rows, byLocation)
}

// extractSubcategoryCounts issues one query exploding every (category, subcategory)
// pair from a map-shaped column and decodes the result into flat rows.
func (c *Connection) extractSubcategoryCounts(ctx context.Context, table, column string, shape ColumnShape, window TimeWindow, bucket Interval, locationID *int64, byLocation bool) ([]FlatCountRow, error) {
	bucketSQL, err := bucketExpr(c.dialect, c.schema.TimestampColumn, bucket)
	if err != nil {
		return nil, err
	}
	conditions, args := c.windowFilters(window, locationID)

	var query string
	switch {
	case c.dialect == DialectPostgres && shape == ShapeJSONObject:
		query = c.postgresSubcategoryQuery(table, column, bucketSQL, conditions, byLocation)
	case c.dialect == DialectClickHouse && shape == ShapeNativeMap:
		query = c.clickhouseMapSubcategoryQuery(table, column, bucketSQL, conditions, byLocation)
	case c.dialect == DialectClickHouse && shape == ShapeJSONObject:
		query = c.clickhouseJSONSubcategoryQuery(table, column, bucketSQL, conditions, byLocation)
	default:
		return nil, fmt.Errorf("column shape %s cannot produce (category, subcategory) pairs on %s", shape, c.dialect)
	}

	rows, err := c.ExecuteSQL(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if c.dialect == DialectPostgres {
		return decodeSubcategoryColumns(rows, byLocation)
	}
	return decodeSubcategoryPairs(rows, byLocation)
}

// clickhouseMapSubcategoryQuery explodes a Map(String, Array(String)) column. Map keys
// and their value arrays are unrolled in two nested arrayJoin passes, then counted per
// (bucket, tuple) group.
func (c *Connection) clickhouseMapSubcategoryQuery(table, column, bucketSQL string, conditions []string, byLocation bool) string {
	locInner, locMid, locSelect, locGroup := "", "", "", ""
	if byLocation {
		locInner = fmt.Sprintf(", %s AS loc", c.schema.LocationColumn)
		locMid = ", loc"
		locSelect = ", loc"
		locGroup = ", loc"
	}
	ts := c.schema.TimestampColumn
	return fmt.Sprintf(
		"SELECT %s AS time_group%s, (k, toString(subcat)) AS kv_pair, %s AS cnt "+
			"FROM (SELECT %s%s, k, arrayJoin(%s[k]) AS subcat "+
			"FROM (SELECT %s%s, arrayJoin(mapKeys(%s)) AS k, %s FROM %s%s)) "+
			"GROUP BY time_group%s, kv_pair ORDER BY time_group, kv_pair",
		bucketSQL, locSelect, c.countFunc(),
		ts, locMid, column,
		ts, locInner, column, column, table, whereClause(conditions),
		locGroup,
	)
}

// clickhouseJSONSubcategoryQuery explodes a JSON-object-in-string column. Array values
// contribute their elements, object values contribute their keys, scalar values fall
// back to a (key, key) pair.
func (c *Connection) clickhouseJSONSubcategoryQuery(table, column, bucketSQL string, conditions []string, byLocation bool) string {
	locSelect, locGroup := "", ""
	if byLocation {
		locSelect = fmt.Sprintf(", %s AS loc", c.schema.LocationColumn)
		locGroup = ", loc"
	}
	pairExpr := fmt.Sprintf(
		"arrayJoin(arrayFlatten(arrayMap(key -> "+
			"CASE "+
			"WHEN JSONType(JSONExtractRaw(%[1]s, key)) = 'Array' THEN arrayMap(x -> (key, x), JSONExtractArrayRaw(%[1]s, key)) "+
			"WHEN JSONType(JSONExtractRaw(%[1]s, key)) = 'Object' THEN arrayMap(x -> (key, x), JSONExtractKeys(JSONExtractRaw(%[1]s, key))) "+
			"ELSE [(key, key)] "+
			"END, JSONExtractKeys(%[1]s))))",
		column,
	)
	return fmt.Sprintf(
		"SELECT %s AS time_group%s, %s AS kv_pair, %s AS cnt FROM %s%s GROUP BY time_group%s, kv_pair ORDER BY time_group, kv_pair",
		bucketSQL, locSelect, pairExpr, c.countFunc(), table, whereClause(conditions), locGroup,
	)
}

// postgresSubcategoryQuery explodes a jsonb object column with jsonb_each plus lateral
// joins: array values yield their elements, object values their keys, scalars the key
// itself. Empty arrays and empty objects leave the lateral side NULL through the LEFT
// JOIN; those pairs are filtered out so they contribute nothing, matching the empty
// arrayMap result on the other dialect.
func (c *Connection) postgresSubcategoryQuery(table, column, bucketSQL string, conditions []string, byLocation bool) string {
	locSelect, locGroup := "", ""
	if byLocation {
		locSelect = fmt.Sprintf(", %s AS loc", c.schema.LocationColumn)
		locGroup = ", loc"
	}
	return fmt.Sprintf(
		"SELECT time_group%[1]s, category, subcategory, %[2]s AS cnt FROM ("+
			"SELECT %[3]s AS time_group%[4]s, kv.key AS category, "+
			"CASE jsonb_typeof(kv.value) WHEN 'array' THEN arr.value WHEN 'object' THEN obj.key ELSE kv.key END AS subcategory "+
			"FROM %[5]s "+
			"CROSS JOIN LATERAL jsonb_each(%[6]s::jsonb) AS kv "+
			"LEFT JOIN LATERAL jsonb_array_elements_text(CASE WHEN jsonb_typeof(kv.value) = 'array' THEN kv.value ELSE '[]'::jsonb END) AS arr(value) ON true "+
			"LEFT JOIN LATERAL jsonb_object_keys(CASE WHEN jsonb_typeof(kv.value) = 'object' THEN kv.value ELSE '{}'::jsonb END) AS obj(key) ON true"+
			"%[7]s) pairs "+
			"WHERE subcategory IS NOT NULL "+
			"GROUP BY time_group%[1]s, category, subcategory ORDER BY time_group, category, subcategory",
		locGroup, c.countFunc(), bucketSQL, locSelect, table, column, whereClause(conditions),
	)
}

// extractRowCounts counts all source rows per bucket, with no dimension column.
func (c *Connection) extractRowCounts(ctx context.Context, table string, window TimeWindow, bucket Interval, locationID *int64, byLocation bool) ([]FlatCountRow, error) {
	bucketSQL, err := bucketExpr(c.dialect, c.schema.TimestampColumn, bucket)
	if err != nil {
		return nil, err
	}
	conditions, args := c.windowFilters(window, locationID)
	locSelect, locGroup := "", ""
	if byLocation {
		locSelect = fmt.Sprintf(", %s AS loc", c.schema.LocationColumn)
		locGroup = ", loc"
	}
	query := fmt.Sprintf(
		"SELECT %s AS time_group%s, %s AS cnt FROM %s%s GROUP BY time_group%s ORDER BY time_group",
		bucketSQL, locSelect, c.countFunc(), table, whereClause(conditions), locGroup,
	)
	rows, err := c.ExecuteSQL(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]FlatCountRow, 0, len(rows))
	for _, row := range rows {
		flat, rest, err := decodeBucketAndLocation(row, byLocation)
		if err != nil {
			return nil, err
		}
		if len(rest) != 1 {
			return nil, fmt.Errorf("unexpected row-count result width %d", len(row))
		}
		count, err := decodeCount(rest[0])
		if err != nil {
			return nil, err
		}
		flat.Category = "all"
		flat.Count = count
		out = append(out, flat)
	}
	return out, nil
}

// --- result decoding ---

func decodeCategoryRows(rows [][]interface{}, byLocation bool) ([]FlatCountRow, error) {
	out := make([]FlatCountRow, 0, len(rows))
	for _, row := range rows {
		flat, rest, err := decodeBucketAndLocation(row, byLocation)
		if err != nil {
			return nil, err
		}
		if len(rest) != 2 {
			return nil, fmt.Errorf("unexpected category result width %d", len(row))
		}
		count, err := decodeCount(rest[1])
		if err != nil {
			return nil, err
		}
		flat.Category = decodeText(rest[0])
		flat.Count = count
		out = append(out, flat)
	}
	return out, nil
}

// decodeSubcategoryPairs handles the ClickHouse layout where category and subcategory
// arrive packed as one tuple value.
func decodeSubcategoryPairs(rows [][]interface{}, byLocation bool) ([]FlatCountRow, error) {
	out := make([]FlatCountRow, 0, len(rows))
	for _, row := range rows {
		flat, rest, err := decodeBucketAndLocation(row, byLocation)
		if err != nil {
			return nil, err
		}
		if len(rest) != 2 {
			return nil, fmt.Errorf("unexpected subcategory result width %d", len(row))
		}
		category, subcategory, err := decodeKVPair(rest[0])
		if err != nil {
			return nil, err
		}
		count, err := decodeCount(rest[1])
		if err != nil {
			return nil, err
		}
		flat.Category = category
		flat.Subcategory = subcategory
		flat.Count = count
		out = append(out, flat)
	}
	return out, nil
}

// decodeSubcategoryColumns handles the Postgres layout where category and subcategory
// are separate result columns.
func decodeSubcategoryColumns(rows [][]interface{}, byLocation bool) ([]FlatCountRow, error) {
	out := make([]FlatCountRow, 0, len(rows))
	for _, row := range rows {
		flat, rest, err := decodeBucketAndLocation(row, byLocation)
		if err != nil {
			return nil, err
		}
		if len(rest) != 3 {
			return nil, fmt.Errorf("unexpected subcategory result width %d", len(row))
		}
		count, err := decodeCount(rest[2])
		if err != nil {
			return nil, err
		}
		flat.Category = decodeText(rest[0])
		flat.Subcategory = decodeText(rest[1])
		flat.Count = count
		out = append(out, flat)
	}
	return out, nil
}

func decodeBucketAndLocation(row []interface{}, byLocation bool) (FlatCountRow, []interface{}, error) {
	if len(row) < 1 {
		return FlatCountRow{}, nil, fmt.Errorf("empty result row")
	}
	bucket, err := decodeBucketTime(row[0])
	if err != nil {
		return FlatCountRow{}, nil, err
	}
	flat := FlatCountRow{Bucket: bucket}
	rest := row[1:]
	if byLocation {
		if len(rest) < 1 {
			return FlatCountRow{}, nil, fmt.Errorf("result row missing location column")
		}
		location, err := decodeCount(rest[0])
		if err != nil {
			return FlatCountRow{}, nil, fmt.Errorf("bad location value: %v", err)
		}
		flat.Location = location
		flat.HasLocation = true
		rest = rest[1:]
	}
	return flat, rest, nil
}

func decodeBucketTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("nil time bucket")
		}
		return v.UTC(), nil
	case string:
		for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse time bucket %q", v)
	default:
		return time.Time{}, fmt.Errorf("cannot decode time bucket from %T", value)
	}
}

func decodeCount(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case uint64:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	default:
		return 0, fmt.Errorf("cannot decode count from %T", value)
	}
}

func decodeText(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", value)
	}
}

// decodeKVPair unpacks a composite (category, subcategory) value emitted as a single
// structured field by the SQL layer.
func decodeKVPair(value interface{}) (string, string, error) {
	switch v := value.(type) {
	case []interface{}:
		if len(v) != 2 {
			return "", "", fmt.Errorf("kv pair has %d elements, want 2", len(v))
		}
		return trimJSONQuotes(decodeText(v[0])), trimJSONQuotes(decodeText(v[1])), nil
	case []string:
		if len(v) != 2 {
			return "", "", fmt.Errorf("kv pair has %d elements, want 2", len(v))
		}
		return trimJSONQuotes(v[0]), trimJSONQuotes(v[1]), nil
	case [2]string:
		return trimJSONQuotes(v[0]), trimJSONQuotes(v[1]), nil
	default:
		return "", "", fmt.Errorf("cannot decode kv pair from %T", value)
	}
}

// trimJSONQuotes strips the quoting JSONExtractArrayRaw leaves on string elements, so
// the JSON-string column shape yields the same values as the native map shape.
func trimJSONQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		if unquoted, err := strconv.Unquote(s); err == nil {
			return unquoted
		}
	}
	return s
}
