package ddl

import (
	"fmt"
	"strings"

	gddl "taxietl/internal/ddl"
	"taxietl/internal/records"
)

// BuildCreateTableSQL returns a T-SQL script that creates the table unless
// it exists. T-SQL has no CREATE TABLE IF NOT EXISTS, so the statement is
// wrapped in an OBJECT_ID guard:
//
//	IF OBJECT_ID(N'[schema].[table]', N'U') IS NULL
//	BEGIN
//	  CREATE TABLE [schema].[table] (
//	    [col1] TYPE [NOT NULL] [DEFAULT expr],
//	    [col2] TYPE
//	  );
//	END;
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return build(t, "mssql ddl", "")
}

// BuildSynapseCreateTableSQL is BuildCreateTableSQL for a dedicated SQL pool.
// Tables are round-robin distributed clustered columnstores, which suits a
// full-reload fact table with no natural distribution key.
func BuildSynapseCreateTableSQL(t gddl.TableDef) (string, error) {
	return build(t, "synapse ddl", "\n  WITH (DISTRIBUTION = ROUND_ROBIN, CLUSTERED COLUMNSTORE INDEX)")
}

func build(t gddl.TableDef, prefix, with string) (string, error) {
	cols, err := gddl.ColumnList(t, QuoteIdent)
	if err != nil {
		return "", fmt.Errorf("%s: %w", prefix, err)
	}
	fqn := QuoteFQN(t.FQN)
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  CREATE TABLE %s (\n    %s\n  )%s;\nEND;",
		strings.ReplaceAll(fqn, "'", "''"),
		fqn,
		strings.Join(cols, ",\n    "),
		with,
	), nil
}

// Render builds the SQL Server script for table from a record schema.
func Render(table string, s records.Schema, columns []string) (string, error) {
	td, err := gddl.FromSchema(table, s, columns, MapType)
	if err != nil {
		return "", fmt.Errorf("mssql ddl: %w", err)
	}
	return BuildCreateTableSQL(td)
}

// RenderSynapse builds the dedicated SQL pool script for table.
func RenderSynapse(table string, s records.Schema, columns []string) (string, error) {
	td, err := gddl.FromSchema(table, s, columns, MapSynapseType)
	if err != nil {
		return "", fmt.Errorf("synapse ddl: %w", err)
	}
	return BuildSynapseCreateTableSQL(td)
}

// QuoteIdent quotes a single identifier segment for SQL Server using
// bracket syntax, escaping any closing brackets.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func QuoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

// QuoteFQN quotes a possibly schema-qualified table name, e.g.:
//
//	"dbo.Users"   -> [dbo].[Users]
//	"Users"       -> [Users]
//	"a.b.c"       -> [a].[b].[c]
func QuoteFQN(fqn string) string { return gddl.QuoteFQN(fqn, QuoteIdent) }
