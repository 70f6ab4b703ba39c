package ddl

import (
	"fmt"
	"strings"

	gddl "taxietl/internal/ddl"
	"taxietl/internal/records"
)

// BuildCreateTableSQL builds a deterministic Postgres statement:
//
//	CREATE TABLE IF NOT EXISTS "schema"."table" (
//	  "col" TYPE [NOT NULL] [DEFAULT expr],
//	  ...
//	);
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	cols, err := gddl.ColumnList(t, QuoteIdent)
	if err != nil {
		return "", fmt.Errorf("postgres ddl: %w", err)
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
		return "", fmt.Errorf("postgres ddl: %w", err)
	}
	return BuildCreateTableSQL(td)
}

// QuoteIdent safely quotes a single identifier segment.
func QuoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// QuoteFQN quotes "public.trips" as "public"."trips".
func QuoteFQN(fqn string) string { return gddl.QuoteFQN(fqn, QuoteIdent) }
