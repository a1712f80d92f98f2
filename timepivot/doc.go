// Package timepivot is a thin analytics-query layer over ClickHouse and PostgreSQL.
//
// It composes SQL for table creation, row and batch insertion, and time-bucketed
// aggregation, runs it over an injected connection, and reshapes the flat
// (bucket, dimension, count) result rows into pivot tables: dimension values as rows,
// ascending time buckets as columns, zero-filled cells.
//
// The package does not plan queries, store data or retry failures; it only builds SQL
// in the configured dialect and dispatches it through a QueryExecutor.
package timepivot
