package ddl

import (
	"strings"
	"testing"

	gddl "taxietl/internal/ddl"
	"taxietl/internal/records"
)

// TestQuoteIdent verifies Postgres identifier quoting and escaping.
func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "name", want: `"name"`},
		{name: "empty", in: "", want: `""`},
		{name: "with double quote", in: `weird"name`, want: `"weird""name"`},
		{name: "multiple quotes", in: `"a""b"`, want: `"""a""""b"""`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := QuoteIdent(tt.in); got != tt.want {
				t.Fatalf("QuoteIdent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	got, err := BuildCreateTableSQL(gddl.TableDef{
		FQN: "public.yellow_tripdata",
		Columns: []gddl.ColumnDef{
			{Name: "vendor_id", SQLType: "INTEGER", Nullable: true},
			{Name: "passenger_count", SQLType: "INTEGER"},
		},
	})
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := "CREATE TABLE IF NOT EXISTS \"public\".\"yellow_tripdata\" (\n" +
		"  \"vendor_id\" INTEGER,\n" +
		"  \"passenger_count\" INTEGER NOT NULL\n" +
		");"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}

	if _, err := BuildCreateTableSQL(gddl.TableDef{}); err == nil || !strings.Contains(err.Error(), "postgres ddl: table FQN must not be empty") {
		t.Fatalf("empty FQN error = %v", err)
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	s := records.Schema{
		{Name: "pickup_datetime", Kind: records.KindTimestamp, Nullable: true},
		{Name: "airport_fee", Kind: records.KindFloat64, Nullable: true},
	}
	got, err := Render("public.trips", s, []string{"airport_fee"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, `"airport_fee" DOUBLE PRECISION`) || strings.Contains(got, "pickup_datetime") {
		t.Fatalf("Render output:\n%s", got)
	}
}
