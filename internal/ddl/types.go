package ddl

import "taxietl/internal/records"

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., INT, DATETIME2, DOUBLE PRECISION)
//   - Nullable: whether NULL is allowed
//   - Default: raw default expression, emitted verbatim
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
	Default  string
}

// TableDef holds the table name (FQN) and an ordered list of columns. The FQN
// is expected in dotted form (e.g., "dbo.yellow_tripdata") and is quoted per
// segment by dialect renderers.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// TypeMapper maps a record kind onto a dialect's column type.
type TypeMapper func(records.Kind) string

// Quoter quotes one identifier segment.
type Quoter func(string) string
