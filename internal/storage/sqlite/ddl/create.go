package ddl

import (
	"fmt"
	"strings"

	gddl "taxietl/internal/ddl"
	"taxietl/internal/records"
)

// BuildCreateTableSQL returns a SQLite CREATE TABLE statement:
//
//	CREATE TABLE IF NOT EXISTS "table" (
//	  "col1" TYPE [NOT NULL] [DEFAULT expr],
//	  "col2" TYPE
//	);
//
// Dotted names such as "main.trips" are quoted per segment.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	cols, err := gddl.ColumnList(t, QuoteIdent)
	if err != nil {
		return "", fmt.Errorf("sqlite ddl: %w", err)
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		QuoteFQN(t.FQN),
		strings.Join(cols, ",\n  "),
	), nil
}

// Render builds the CREATE TABLE statement for table from a record schema.
func Render(table string, s records.Schema, columns []string) (string, error) {
	td, err := gddl.FromSchema(table, s, columns, MapType)
	if err != nil {
		return "", fmt.Errorf("sqlite ddl: %w", err)
	}
	return BuildCreateTableSQL(td)
}

// QuoteIdent double-quotes an identifier, doubling embedded quotes.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteFQN quotes each segment of a dotted table name.
func QuoteFQN(fqn string) string { return gddl.QuoteFQN(fqn, QuoteIdent) }
