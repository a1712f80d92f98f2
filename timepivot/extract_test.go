package timepivot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWindow = TimeWindow{
	Start: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC),
}

func TestBucketExpr(t *testing.T) {
	expr, err := bucketExpr(DialectClickHouse, "created_at", Interval{4, Hour})
	assert.Nil(t, err)
	assert.Equal(t, "toStartOfInterval(created_at, INTERVAL 4 HOUR)", expr)

	expr, err = bucketExpr(DialectPostgres, "created_at", Interval{1, Day})
	assert.Nil(t, err)
	assert.Equal(t, "to_timestamp(floor(extract(epoch from created_at) / 86400) * 86400)", expr)

	_, err = bucketExpr(DialectClickHouse, "created_at", Interval{1, IntervalUnit(42)})
	assert.True(t, errors.Is(err, ErrUnsupportedGranularity))
}

func TestCategoryExpr(t *testing.T) {
	tests := []struct {
		dialect Dialect
		shape   ColumnShape
		want    string
	}{
		{DialectClickHouse, ShapeFlatArray, "arrayJoin(tags)"},
		{DialectClickHouse, ShapeNativeMap, "arrayJoin(mapKeys(tags))"},
		{DialectClickHouse, ShapeJSONObject, "arrayJoin(JSONExtractKeys(tags))"},
		{DialectPostgres, ShapeFlatArray, "jsonb_array_elements_text(tags::jsonb)"},
		{DialectPostgres, ShapeJSONObject, "jsonb_object_keys(tags::jsonb)"},
	}
	for _, tt := range tests {
		got, err := categoryExpr(tt.dialect, "tags", tt.shape)
		assert.Nil(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := categoryExpr(DialectPostgres, "tags", ShapeNativeMap)
	assert.NotNil(t, err)
}

func TestExtractCategoryCountsClickHouseSQL(t *testing.T) {
	executor := &fakeExecutor{}
	conn := newTestConnection(DialectClickHouse, executor)

	_, err := conn.extractCategoryCounts(context.Background(), "events", "categories", ShapeFlatArray, testWindow, Interval{1, Day}, nil, false)
	require.Nil(t, err)
	require.Equal(t, 1, len(executor.queries))

	query := executor.queries[0]
	assert.Contains(t, query, "toStartOfInterval(created_at, INTERVAL 1 DAY) AS time_group")
	assert.Contains(t, query, "arrayJoin(categories) AS category")
	assert.Contains(t, query, "count() AS cnt")
	assert.Contains(t, query, "created_at >= ?")
	assert.Contains(t, query, "created_at < ?")
	assert.Contains(t, query, "GROUP BY time_group, category")
	assert.Contains(t, query, "ORDER BY time_group, category")

	// half-open window: start and end are bound in order
	assert.Equal(t, []interface{}{testWindow.Start, testWindow.End}, executor.queryArgs[0])
}

func TestExtractCategoryCountsPostgresSQL(t *testing.T) {
	executor := &fakeExecutor{}
	conn := newTestConnection(DialectPostgres, executor)

	locationID := int64(7)
	_, err := conn.extractCategoryCounts(context.Background(), "events", "categories", ShapeFlatArray, testWindow, Interval{1, Hour}, &locationID, false)
	require.Nil(t, err)

	query := executor.queries[0]
	assert.Contains(t, query, "to_timestamp(floor(extract(epoch from created_at) / 3600) * 3600) AS time_group")
	assert.Contains(t, query, "jsonb_array_elements_text(categories::jsonb) AS category")
	assert.Contains(t, query, "count(*) AS cnt")
	assert.Contains(t, query, "created_at >= $1")
	assert.Contains(t, query, "created_at < $2")
	assert.Contains(t, query, "location_id = $3")
	assert.Equal(t, []interface{}{testWindow.Start, testWindow.End, locationID}, executor.queryArgs[0])
}

func TestExtractCategoryCountsLocationFilterClickHouse(t *testing.T) {
	executor := &fakeExecutor{}
	conn := newTestConnection(DialectClickHouse, executor)

	locationID := int64(7)
	_, err := conn.extractCategoryCounts(context.Background(), "events", "categories", ShapeFlatArray, testWindow, Interval{1, Day}, &locationID, false)
	require.Nil(t, err)
	assert.Contains(t, executor.queries[0], "location_id = ?")
	assert.Equal(t, []interface{}{testWindow.Start, testWindow.End, locationID}, executor.queryArgs[0])
}

func TestExtractCategoryCountsByLocationGroups(t *testing.T) {
	executor := &fakeExecutor{}
	conn := newTestConnection(DialectClickHouse, executor)

	_, err := conn.extractCategoryCounts(context.Background(), "events", "categories", ShapeFlatArray, testWindow, Interval{1, Day}, nil, true)
	require.Nil(t, err)
	query := executor.queries[0]
	assert.Contains(t, query, "location_id AS loc")
	assert.Contains(t, query, "GROUP BY time_group, loc, category")
}

func TestExtractCategoryCountsDecodesRows(t *testing.T) {
	t1 := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	executor := &fakeExecutor{rows: [][]interface{}{
		{t1, "catA", uint64(3)},
		{t1, "catB", uint64(2)},
	}}
	conn := newTestConnection(DialectClickHouse, executor)

	rows, err := conn.extractCategoryCounts(context.Background(), "events", "categories", ShapeFlatArray, testWindow, Interval{1, Day}, nil, false)
	require.Nil(t, err)
	assert.Equal(t, []FlatCountRow{
		{Bucket: t1, Category: "catA", Count: 3},
		{Bucket: t1, Category: "catB", Count: 2},
	}, rows)
}

func TestExtractSubcategoryCountsClickHouseMapSQL(t *testing.T) {
	executor := &fakeExecutor{}
	conn := newTestConnection(DialectClickHouse, executor)

	_, err := conn.extractSubcategoryCounts(context.Background(), "events", "category_subcategory_dict", ShapeNativeMap, testWindow, Interval{1, Day}, nil, false)
	require.Nil(t, err)

	query := executor.queries[0]
	assert.Contains(t, query, "(k, toString(subcat)) AS kv_pair")
	assert.Contains(t, query, "arrayJoin(mapKeys(category_subcategory_dict)) AS k")
	assert.Contains(t, query, "arrayJoin(category_subcategory_dict[k]) AS subcat")
	assert.Contains(t, query, "GROUP BY time_group, kv_pair")
}

func TestExtractSubcategoryCountsClickHouseJSONSQL(t *testing.T) {
	executor := &fakeExecutor{}
	conn := newTestConnection(DialectClickHouse, executor)

	_, err := conn.extractSubcategoryCounts(context.Background(), "events", "category", ShapeJSONObject, testWindow, Interval{1, Day}, nil, false)
	require.Nil(t, err)

	query := executor.queries[0]
	assert.Contains(t, query, "JSONExtractKeys(category)")
	assert.Contains(t, query, "JSONType(JSONExtractRaw(category, key)) = 'Array'")
	assert.Contains(t, query, "JSONType(JSONExtractRaw(category, key)) = 'Object'")
	assert.Contains(t, query, "ELSE [(key, key)]")
	assert.Contains(t, query, "arrayFlatten")
}

func TestExtractSubcategoryCountsPostgresSQL(t *testing.T) {
	executor := &fakeExecutor{}
	conn := newTestConnection(DialectPostgres, executor)

	_, err := conn.extractSubcategoryCounts(context.Background(), "events", "category", ShapeJSONObject, testWindow, Interval{1, Day}, nil, false)
	require.Nil(t, err)

	query := executor.queries[0]
	assert.Contains(t, query, "jsonb_each(category::jsonb)")
	assert.Contains(t, query, "jsonb_array_elements_text")
	assert.Contains(t, query, "jsonb_object_keys")
	assert.Contains(t, query, "CASE jsonb_typeof(kv.value) WHEN 'array' THEN arr.value WHEN 'object' THEN obj.key ELSE kv.key END")
	assert.Contains(t, query, "GROUP BY time_group, category, subcategory")
}

// An empty array or empty object value yields zero rows from the lateral, which the LEFT
// JOIN turns into a NULL subcategory; those pairs must be dropped before grouping so the
// jsonb shape counts the same pairs as the map shape.
func TestExtractSubcategoryCountsPostgresFiltersEmptyValues(t *testing.T) {
	executor := &fakeExecutor{}
	conn := newTestConnection(DialectPostgres, executor)

	_, err := conn.extractSubcategoryCounts(context.Background(), "events", "category", ShapeJSONObject, testWindow, Interval{1, Day}, nil, false)
	require.Nil(t, err)
	assert.Contains(t, executor.queries[0], ") pairs WHERE subcategory IS NOT NULL GROUP BY time_group, category, subcategory")
}

func TestExtractSubcategoryCountsRejectsFlatArray(t *testing.T) {
	conn := newTestConnection(DialectClickHouse, &fakeExecutor{})
	_, err := conn.extractSubcategoryCounts(context.Background(), "events", "c", ShapeFlatArray, testWindow, Interval{1, Day}, nil, false)
	assert.NotNil(t, err)
}

func TestExtractSubcategoryCountsDecodesTuples(t *testing.T) {
	t1 := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	executor := &fakeExecutor{rows: [][]interface{}{
		{t1, []interface{}{"c1", "c1_a"}, uint64(1)},
		{t1, []interface{}{"c1", `"c1_b"`}, uint64(1)}, // raw JSON quoting from JSONExtractArrayRaw
		{t1, []interface{}{"c2", "c2_a"}, uint64(1)},
	}}
	conn := newTestConnection(DialectClickHouse, executor)

	rows, err := conn.extractSubcategoryCounts(context.Background(), "events", "m", ShapeNativeMap, testWindow, Interval{1, Day}, nil, false)
	require.Nil(t, err)
	assert.Equal(t, []FlatCountRow{
		{Bucket: t1, Category: "c1", Subcategory: "c1_a", Count: 1},
		{Bucket: t1, Category: "c1", Subcategory: "c1_b", Count: 1},
		{Bucket: t1, Category: "c2", Subcategory: "c2_a", Count: 1},
	}, rows)
}

func TestExtractSubcategoryCountsDecodesPostgresColumns(t *testing.T) {
	t1 := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	executor := &fakeExecutor{rows: [][]interface{}{
		{t1, "c1", "c1_a", int64(2)},
	}}
	conn := newTestConnection(DialectPostgres, executor)

	rows, err := conn.extractSubcategoryCounts(context.Background(), "events", "category", ShapeJSONObject, testWindow, Interval{1, Day}, nil, false)
	require.Nil(t, err)
	assert.Equal(t, []FlatCountRow{
		{Bucket: t1, Category: "c1", Subcategory: "c1_a", Count: 2},
	}, rows)
}

func TestExtractRowCountsSQLAndDecode(t *testing.T) {
	t1 := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	executor := &fakeExecutor{rows: [][]interface{}{
		{t1, uint64(120)},
	}}
	conn := newTestConnection(DialectClickHouse, executor)

	rows, err := conn.extractRowCounts(context.Background(), "events", testWindow, Interval{1, Hour}, nil, false)
	require.Nil(t, err)

	query := executor.queries[0]
	assert.Contains(t, query, "count() AS cnt")
	assert.Contains(t, query, "GROUP BY time_group")
	assert.NotContains(t, query, "category")
	assert.Equal(t, []FlatCountRow{{Bucket: t1, Category: "all", Count: 120}}, rows)
}

func TestExtractRowCountsByLocationDecodesLocation(t *testing.T) {
	t1 := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	executor := &fakeExecutor{rows: [][]interface{}{
		{t1, int64(7), uint64(5)},
		{t1, int64(9), uint64(3)},
	}}
	conn := newTestConnection(DialectClickHouse, executor)

	rows, err := conn.extractRowCounts(context.Background(), "events", testWindow, Interval{1, Day}, nil, true)
	require.Nil(t, err)
	assert.Equal(t, []FlatCountRow{
		{Bucket: t1, Category: "all", Location: 7, HasLocation: true, Count: 5},
		{Bucket: t1, Category: "all", Location: 9, HasLocation: true, Count: 3},
	}, rows)
}

func TestExtractPropagatesExecutorFailure(t *testing.T) {
	executor := &fakeExecutor{err: errors.New("no such column: categories")}
	conn := newTestConnection(DialectClickHouse, executor)

	_, err := conn.extractCategoryCounts(context.Background(), "events", "categories", ShapeFlatArray, testWindow, Interval{1, Day}, nil, false)
	var queryErr *QueryExecutionError
	assert.True(t, errors.As(err, &queryErr))
	assert.Contains(t, queryErr.Err.Error(), "no such column")
}

func TestDecodeBucketTimeFromString(t *testing.T) {
	got, err := decodeBucketTime("2025-11-01 00:00:00")
	assert.Nil(t, err)
	assert.Equal(t, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = decodeBucketTime(42)
	assert.NotNil(t, err)
}

func TestDecodeBucketTimeFromPointer(t *testing.T) {
	want := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	got, err := decodeBucketTime(&want)
	assert.Nil(t, err)
	assert.Equal(t, want, got)

	_, err = decodeBucketTime((*time.Time)(nil))
	assert.NotNil(t, err)
}

func TestTrimJSONQuotes(t *testing.T) {
	assert.Equal(t, "c1_a", trimJSONQuotes(`"c1_a"`))
	assert.Equal(t, "plain", trimJSONQuotes("plain"))
	assert.Equal(t, `"unbalanced`, trimJSONQuotes(`"unbalanced`))
}
