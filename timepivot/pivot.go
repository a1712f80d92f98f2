package timepivot

import (
	"sort"
	"time"
)

// RowKey identifies one pivot row: a category, optionally a subcategory, and optionally
// a leading location when the all-locations variant grouped by it.
type RowKey struct {
	Location    int64
	HasLocation bool
	Category    string
	Subcategory string
}

// PivotTable is a 2-D pivot: rows are dimension values, columns are the ascending
// distinct time buckets observed in the source rows, cells are summed counts with
// zero-fill for combinations that never appeared. Only buckets that produced at least
// one row anywhere in the result set become columns; the table is not reindexed over
// every possible bucket in the window.
//
// An aggregation with no matching rows is represented by a nil *PivotTable, not by a
// table with zero rows, so callers can distinguish "no data" from "data elsewhere".
type PivotTable struct {
	columns []time.Time
	// columnIndex is keyed by UnixNano so lookups match the instant regardless of the
	// Location the caller's bucket value carries.
	columnIndex    map[int64]int
	keys           []RowKey
	cells          map[RowKey][]int64
	hasSubcategory bool
	hasLocation    bool
}

// buildPivot reshapes flat count rows into a pivot table. Returns nil for empty input.
func buildPivot(rows []FlatCountRow, withSubcategory bool) *PivotTable {
	if len(rows) == 0 {
		return nil
	}

	bucketSet := make(map[int64]time.Time)
	for _, row := range rows {
		bucketSet[row.Bucket.UnixNano()] = row.Bucket
	}
	columns := make([]time.Time, 0, len(bucketSet))
	for _, bucket := range bucketSet {
		columns = append(columns, bucket)
	}
	sort.Slice(columns, func(i, j int) bool { return columns[i].Before(columns[j]) })
	columnIndex := make(map[int64]int, len(columns))
	for i, bucket := range columns {
		columnIndex[bucket.UnixNano()] = i
	}

	table := &PivotTable{
		columns:        columns,
		columnIndex:    columnIndex,
		cells:          make(map[RowKey][]int64),
		hasSubcategory: withSubcategory,
		hasLocation:    rows[0].HasLocation,
	}
	for _, row := range rows {
		key := RowKey{Category: row.Category}
		if withSubcategory {
			key.Subcategory = row.Subcategory
		}
		if row.HasLocation {
			key.Location = row.Location
			key.HasLocation = true
		}
		cells, ok := table.cells[key]
		if !ok {
			cells = make([]int64, len(columns))
			table.cells[key] = cells
			table.keys = append(table.keys, key)
		}
		cells[columnIndex[row.Bucket.UnixNano()]] += row.Count
	}
	sort.Slice(table.keys, func(i, j int) bool {
		a, b := table.keys[i], table.keys[j]
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Subcategory < b.Subcategory
	})
	return table
}

// IsEmpty reports whether the pivot carries no data. Safe on a nil receiver.
func (p *PivotTable) IsEmpty() bool {
	return p == nil || len(p.keys) == 0
}

// RowCount returns how many dimension-value rows the pivot has.
func (p *PivotTable) RowCount() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// ColumnCount returns how many time-bucket columns the pivot has.
func (p *PivotTable) ColumnCount() int {
	if p == nil {
		return 0
	}
	return len(p.columns)
}

// Columns returns the bucket timestamps in ascending order.
func (p *PivotTable) Columns() []time.Time {
	if p == nil {
		return nil
	}
	out := make([]time.Time, len(p.columns))
	copy(out, p.columns)
	return out
}

// Keys returns the row keys in table order.
func (p *PivotTable) Keys() []RowKey {
	if p == nil {
		return nil
	}
	out := make([]RowKey, len(p.keys))
	copy(out, p.keys)
	return out
}

// GetRowKey returns the row key at rowIndex.
func (p *PivotTable) GetRowKey(rowIndex int) RowKey {
	return p.keys[rowIndex]
}

// GetColumn returns the bucket timestamp at columnIndex.
func (p *PivotTable) GetColumn(columnIndex int) time.Time {
	return p.columns[columnIndex]
}

// Get returns the cell count at (rowIndex, columnIndex).
func (p *PivotTable) Get(rowIndex int, columnIndex int) int64 {
	return p.cells[p.keys[rowIndex]][columnIndex]
}

// Value returns the count for a row key and bucket, or 0 when either is absent. The
// bucket is matched by instant, so any Location representing the same moment works.
func (p *PivotTable) Value(key RowKey, bucket time.Time) int64 {
	if p == nil {
		return 0
	}
	cells, ok := p.cells[key]
	if !ok {
		return 0
	}
	idx, ok := p.columnIndex[bucket.UnixNano()]
	if !ok {
		return 0
	}
	return cells[idx]
}

// Total returns the sum of every cell in the table.
func (p *PivotTable) Total() int64 {
	if p == nil {
		return 0
	}
	var total int64
	for _, cells := range p.cells {
		for _, count := range cells {
			total += count
		}
	}
	return total
}

// RowTotal returns the sum of one row's cells, or 0 for an unknown key.
func (p *PivotTable) RowTotal(key RowKey) int64 {
	if p == nil {
		return 0
	}
	var total int64
	for _, count := range p.cells[key] {
		total += count
	}
	return total
}

// HasSubcategory reports whether row keys carry a subcategory component.
func (p *PivotTable) HasSubcategory() bool {
	return p != nil && p.hasSubcategory
}

// HasLocation reports whether row keys carry a leading location component.
func (p *PivotTable) HasLocation() bool {
	return p != nil && p.hasLocation
}
