// Package ddl defines a small, dialect-neutral model for CREATE TABLE
// statements and derives it from a record schema.
//
// Backend packages (internal/storage/*/ddl) supply a TypeMapper and a Quoter
// and wrap ColumnList with their own CREATE syntax:
//
//	td, _ := ddl.FromSchema("dbo.yellow_tripdata", schema, nil, MapType)
//	cols, _ := ddl.ColumnList(td, quoteIdent)
//
// Defaults are raw SQL; the caller is responsible for dialect correctness.
package ddl

import (
	"fmt"
	"strings"

	"taxietl/internal/records"
)

// FromSchema builds a TableDef for table from s. When columns is non-empty it
// selects and orders the output; every name must exist in s.
func FromSchema(table string, s records.Schema, columns []string, mapType TypeMapper) (TableDef, error) {
	if strings.TrimSpace(table) == "" {
		return TableDef{}, fmt.Errorf("ddl: missing table")
	}
	if mapType == nil {
		return TableDef{}, fmt.Errorf("ddl: nil type mapper")
	}
	fields := []records.Field(s)
	if len(columns) > 0 {
		fields = make([]records.Field, 0, len(columns))
		var missing []string
		for _, c := range columns {
			f, ok := s.Field(c)
			if !ok {
				missing = append(missing, c)
				continue
			}
			fields = append(fields, f)
		}
		if len(missing) > 0 {
			return TableDef{}, fmt.Errorf("ddl: columns not in schema: %s", strings.Join(missing, ", "))
		}
	}

	td := TableDef{FQN: table, Columns: make([]ColumnDef, 0, len(fields))}
	for _, f := range fields {
		td.Columns = append(td.Columns, ColumnDef{
			Name:     f.Name,
			SQLType:  mapType(f.Kind),
			Nullable: f.Nullable,
		})
	}
	return td, nil
}

// ColumnList validates t and renders one definition per column:
//
//	<quoted name> <SQLType> [NOT NULL] [DEFAULT <Default>]
func ColumnList(t TableDef, quote Quoter) ([]string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return nil, fmt.Errorf("table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return nil, fmt.Errorf("column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())
	}
	return cols, nil
}

// QuoteFQN quotes each dot-separated segment of fqn, skipping empty ones.
func QuoteFQN(fqn string, quote Quoter) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, quote(p))
	}
	return strings.Join(out, ".")
}
