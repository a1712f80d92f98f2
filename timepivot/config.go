package timepivot

import (
	"fmt"
	"time"
)

// Dialect selects which engine the emitted SQL targets.
type Dialect int

const (
	DialectClickHouse Dialect = iota
	DialectPostgres
)

func (d Dialect) String() string {
	switch d {
	case DialectClickHouse:
		return "clickhouse"
	case DialectPostgres:
		return "postgres"
	}
	return fmt.Sprintf("Dialect(%d)", int(d))
}

// ColumnShape describes how a semi-structured dimension column is stored. The three
// shapes are schema-evolution variants of the same logical data and must aggregate to
// the same counts.
type ColumnShape int

const (
	// ShapeFlatArray is an array of scalar tags, e.g. Array(String).
	ShapeFlatArray ColumnShape = iota
	// ShapeNativeMap is a native map from category to subcategory list,
	// e.g. Map(String, Array(String)). ClickHouse only.
	ShapeNativeMap
	// ShapeJSONObject is a JSON object serialized into a string (or jsonb) column whose
	// values are arrays, nested objects (keys are the subcategories) or scalars.
	ShapeJSONObject
)

func (s ColumnShape) String() string {
	switch s {
	case ShapeFlatArray:
		return "flat-array"
	case ShapeNativeMap:
		return "native-map"
	case ShapeJSONObject:
		return "json-object"
	}
	return fmt.Sprintf("ColumnShape(%d)", int(s))
}

// ClientConfig configs to create a timepivot Connection. Exactly one backend must be set.
type ClientConfig struct {
	// ClickHouse backend configuration
	ClickHouse *ClickHouseConfig
	// Postgres backend configuration
	Postgres *PostgresConfig
	// Schema describes the table columns aggregations run against; zero values fall
	// back to per-dialect defaults.
	Schema SchemaConfig
}

// ClickHouseConfig describes how to connect to a ClickHouse cluster over the native
// protocol.
type ClickHouseConfig struct {
	Addr     []string
	Database string
	Username string
	Password string
	// Compression controls response compression. Supported values: LZ4, ZSTD, NONE.
	Compression string
	DialTimeout time.Duration
}

// PostgresConfig describes how to connect to a PostgreSQL database.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	// SSLMode defaults to "disable".
	SSLMode string
}

// SchemaConfig maps the logical dimensions to concrete columns. It is configuration
// supplied by the caller, never derived from the data.
type SchemaConfig struct {
	// TimestampColumn is the row timestamp used for windowing and bucketing.
	// Defaults to "created_at".
	TimestampColumn string
	// LocationColumn is the optional location identifier column. Defaults to "location_id".
	LocationColumn string
	// CategoriesColumn backs the "categories" dimension. Defaults to "categories".
	CategoriesColumn string
	// CategoriesShape defaults to ShapeFlatArray.
	CategoriesShape ColumnShape
	// SubcategoriesColumn backs the "subcategories" dimension.
	// Defaults to "category_subcategory_dict".
	SubcategoriesColumn string
	// SubcategoriesShape defaults to ShapeNativeMap on ClickHouse and ShapeJSONObject
	// on Postgres.
	SubcategoriesShape *ColumnShape
}

func (s SchemaConfig) withDefaults(dialect Dialect) SchemaConfig {
	if s.TimestampColumn == "" {
		s.TimestampColumn = "created_at"
	}
	if s.LocationColumn == "" {
		s.LocationColumn = "location_id"
	}
	if s.CategoriesColumn == "" {
		s.CategoriesColumn = "categories"
	}
	if s.SubcategoriesColumn == "" {
		s.SubcategoriesColumn = "category_subcategory_dict"
	}
	if s.SubcategoriesShape == nil {
		shape := ShapeNativeMap
		if dialect == DialectPostgres {
			shape = ShapeJSONObject
		}
		s.SubcategoriesShape = &shape
	}
	return s
}

func (s SchemaConfig) subcategoriesShape() ColumnShape {
	if s.SubcategoriesShape == nil {
		return ShapeNativeMap
	}
	return *s.SubcategoriesShape
}
