package timepivot

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AggregateOptions carries the optional knobs for CountsPerTimestep.
type AggregateOptions struct {
	// LocationID restricts every dimension to rows with this location identifier.
	LocationID *int64
	// EndTime overrides the window end; defaults to the current time.
	EndTime *time.Time
}

// Dimension alias resolution is a flat exact-string match; any unlisted name is treated
// as a pass-through flat-array column.
var dimensionAliases = map[string]string{
	"category":      "categories",
	"categories":    "categories",
	"subcategory":   "subcategories",
	"subcategories": "subcategories",
	"all":           "all",
}

// CountsPerTimestep aggregates every requested dimension over one shared time window
// and returns a pivot table per dimension, keyed by the name the caller asked for.
//
// since accepts an interval string like "100m", "4h" or "10d", an int meaning days
// back, or an explicit time.Time start. freq is the bucket granularity, parsed with the
// same interval grammar. A dimension with no matching rows maps to a nil pivot.
//
// Dimensions are independent; a failing dimension is skipped and reported in the joined
// error while the remaining dimensions are still returned.
func (c *Connection) CountsPerTimestep(ctx context.Context, table string, dimensions []string, since interface{}, freq string, opts *AggregateOptions) (map[string]*PivotTable, error) {
	if opts == nil {
		opts = &AggregateOptions{}
	}
	return c.countsPerTimestep(ctx, table, dimensions, since, freq, opts.LocationID, opts.EndTime, false)
}

// CountsPerTimestepAllLocations is the all-locations variant: every dimension is
// additionally grouped by the location column, so each pivot row carries a leading
// location component. There is no single-location filter; all locations come back at
// once.
func (c *Connection) CountsPerTimestepAllLocations(ctx context.Context, table string, dimensions []string, since interface{}, freq string, end *time.Time) (map[string]*PivotTable, error) {
	return c.countsPerTimestep(ctx, table, dimensions, since, freq, nil, end, true)
}

func (c *Connection) countsPerTimestep(ctx context.Context, table string, dimensions []string, since interface{}, freq string, locationID *int64, end *time.Time, byLocation bool) (map[string]*PivotTable, error) {
	result := make(map[string]*PivotTable, len(dimensions))
	if len(dimensions) == 0 {
		return result, nil
	}
	bucket, err := ParseInterval(freq)
	if err != nil {
		return nil, err
	}
	window, err := ResolveWindow(since, end)
	if err != nil {
		return nil, err
	}

	var dimensionErrs []error
	for _, requested := range dimensions {
		resolved, ok := dimensionAliases[requested]
		if !ok {
			resolved = requested
		}

		var rows []FlatCountRow
		var extractErr error
		withSubcategory := false
		switch resolved {
		case "categories":
			rows, extractErr = c.extractCategoryCounts(ctx, table, c.schema.CategoriesColumn, c.schema.CategoriesShape, window, bucket, locationID, byLocation)
		case "subcategories":
			withSubcategory = true
			rows, extractErr = c.extractSubcategoryCounts(ctx, table, c.schema.SubcategoriesColumn, c.schema.subcategoriesShape(), window, bucket, locationID, byLocation)
		case "all":
			rows, extractErr = c.extractRowCounts(ctx, table, window, bucket, locationID, byLocation)
		default:
			rows, extractErr = c.extractCategoryCounts(ctx, table, resolved, ShapeFlatArray, window, bucket, locationID, byLocation)
		}
		if extractErr != nil {
			dimensionErrs = append(dimensionErrs, fmt.Errorf("dimension %q: %w", requested, extractErr))
			continue
		}
		result[requested] = buildPivot(rows, withSubcategory)
	}
	return result, errors.Join(dimensionErrs...)
}

// CategoryCountsPivot aggregates one flat-array column into a category-by-bucket pivot.
func (c *Connection) CategoryCountsPivot(ctx context.Context, table, column string, window TimeWindow, freq string, locationID *int64) (*PivotTable, error) {
	bucket, err := ParseInterval(freq)
	if err != nil {
		return nil, err
	}
	rows, err := c.extractCategoryCounts(ctx, table, column, ShapeFlatArray, window, bucket, locationID, false)
	if err != nil {
		return nil, err
	}
	return buildPivot(rows, false), nil
}

// SubcategoryCountsPivot aggregates a map-shaped column into a
// (category, subcategory)-by-bucket pivot.
func (c *Connection) SubcategoryCountsPivot(ctx context.Context, table, column string, shape ColumnShape, window TimeWindow, freq string, locationID *int64) (*PivotTable, error) {
	bucket, err := ParseInterval(freq)
	if err != nil {
		return nil, err
	}
	rows, err := c.extractSubcategoryCounts(ctx, table, column, shape, window, bucket, locationID, false)
	if err != nil {
		return nil, err
	}
	return buildPivot(rows, true), nil
}

// RowCountsPerTimestep returns the raw per-bucket row counts, unpivoted.
func (c *Connection) RowCountsPerTimestep(ctx context.Context, table string, window TimeWindow, freq string, locationID *int64) ([]FlatCountRow, error) {
	bucket, err := ParseInterval(freq)
	if err != nil {
		return nil, err
	}
	return c.extractRowCounts(ctx, table, window, bucket, locationID, false)
}

// CategoryCount is one (category, count) total.
type CategoryCount struct {
	Category string
	Count    int64
}

// SubcategoryCount is one (category, subcategory, count) total.
type SubcategoryCount struct {
	Category    string
	Subcategory string
	Count       int64
}

// CategoryCounts returns the total count per category tag, ordered by count descending.
// Zero window bounds are treated as unbounded.
func (c *Connection) CategoryCounts(ctx context.Context, table, column string, window TimeWindow, locationID *int64) ([]CategoryCount, error) {
	categorySQL, err := categoryExpr(c.dialect, column, ShapeFlatArray)
	if err != nil {
		return nil, err
	}
	conditions, args := c.windowFilters(window, locationID)
	var query string
	if c.dialect == DialectPostgres {
		query = fmt.Sprintf(
			"SELECT category, %s AS cnt FROM (SELECT %s AS category FROM %s%s) src GROUP BY category ORDER BY cnt DESC",
			c.countFunc(), categorySQL, table, whereClause(conditions),
		)
	} else {
		query = fmt.Sprintf(
			"SELECT %s AS category, %s AS cnt FROM %s%s GROUP BY category ORDER BY cnt DESC",
			categorySQL, c.countFunc(), table, whereClause(conditions),
		)
	}
	rows, err := c.ExecuteSQL(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryCount, 0, len(rows))
	for _, row := range rows {
		if len(row) != 2 {
			return nil, fmt.Errorf("unexpected category count result width %d", len(row))
		}
		count, err := decodeCount(row[1])
		if err != nil {
			return nil, err
		}
		out = append(out, CategoryCount{Category: decodeText(row[0]), Count: count})
	}
	return out, nil
}

// SubcategoryCounts returns the total count per (category, subcategory) pair from a
// native map column, ordered by count descending.
func (c *Connection) SubcategoryCounts(ctx context.Context, table, column string, window TimeWindow, locationID *int64) ([]SubcategoryCount, error) {
	if c.dialect != DialectClickHouse {
		return nil, fmt.Errorf("subcategory totals require a native map column, which %s does not support", c.dialect)
	}
	conditions, args := c.windowFilters(window, locationID)
	query := fmt.Sprintf(
		"SELECT k AS category, subcat AS subcategory, %s AS cnt "+
			"FROM (SELECT arrayJoin(mapKeys(%s)) AS k, arrayJoin(%s[k]) AS subcat FROM %s%s) "+
			"GROUP BY category, subcategory ORDER BY cnt DESC",
		c.countFunc(), column, column, table, whereClause(conditions),
	)
	rows, err := c.ExecuteSQL(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]SubcategoryCount, 0, len(rows))
	for _, row := range rows {
		if len(row) != 3 {
			return nil, fmt.Errorf("unexpected subcategory count result width %d", len(row))
		}
		count, err := decodeCount(row[2])
		if err != nil {
			return nil, err
		}
		out = append(out, SubcategoryCount{
			Category:    decodeText(row[0]),
			Subcategory: decodeText(row[1]),
			Count:       count,
		})
	}
	return out, nil
}
