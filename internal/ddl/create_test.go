package ddl

import (
	"reflect"
	"strconv"
	"strings"
	"testing"

	"taxietl/internal/records"
)

func plainQuote(s string) string { return s }

func bracket(s string) string { return "[" + s + "]" }

func kindName(k records.Kind) string { return strings.ToUpper(string(k)) }

// TestColumnList verifies column rendering and the validation errors shared
// by every dialect builder.
func TestColumnList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		want        []string
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			def:         TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{FQN: "dbo.t"},
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: " ", SQLType: "INT"}}},
			errContains: "column with empty name",
		},
		{
			name:        "column with empty type returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			errContains: "missing SQLType",
		},
		{
			name: "nullable and not null",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "vendor_id", SQLType: "INT", Nullable: true},
				{Name: "passenger_count", SQLType: "INT"},
			}},
			want: []string{"[vendor_id] INT", "[passenger_count] INT NOT NULL"},
		},
		{
			name: "default is trimmed and emitted raw",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: " loaded_at ", SQLType: " DATETIME2 ", Default: "  SYSUTCDATETIME()  "},
			}},
			want: []string{"[loaded_at] DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ColumnList(tt.def, bracket)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("ColumnList() error = %v, want substring %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("ColumnList() unexpected error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ColumnList() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromSchema(t *testing.T) {
	t.Parallel()

	s := records.Schema{
		{Name: "vendor_id", Kind: records.KindInt32, Nullable: true},
		{Name: "pickup_datetime", Kind: records.KindTimestamp, Nullable: true},
		{Name: "passenger_count", Kind: records.KindInt32},
	}

	td, err := FromSchema("dbo.yellow_tripdata", s, nil, kindName)
	if err != nil {
		t.Fatalf("FromSchema: %v", err)
	}
	want := []ColumnDef{
		{Name: "vendor_id", SQLType: "INT32", Nullable: true},
		{Name: "pickup_datetime", SQLType: "TIMESTAMP", Nullable: true},
		{Name: "passenger_count", SQLType: "INT32"},
	}
	if td.FQN != "dbo.yellow_tripdata" || !reflect.DeepEqual(td.Columns, want) {
		t.Fatalf("FromSchema = %+v, want columns %+v", td, want)
	}

	td, err = FromSchema("t", s, []string{"passenger_count", "vendor_id"}, kindName)
	if err != nil {
		t.Fatalf("FromSchema with columns: %v", err)
	}
	if got := []string{td.Columns[0].Name, td.Columns[1].Name}; !reflect.DeepEqual(got, []string{"passenger_count", "vendor_id"}) {
		t.Fatalf("column order = %v", got)
	}

	if _, err := FromSchema("t", s, []string{"fare"}, kindName); err == nil || !strings.Contains(err.Error(), "columns not in schema: fare") {
		t.Fatalf("unknown column error = %v", err)
	}
	if _, err := FromSchema(" ", s, nil, kindName); err == nil {
		t.Fatalf("empty table accepted")
	}
}

func TestQuoteFQN(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"dbo.yellow_tripdata": "[dbo].[yellow_tripdata]",
		"yellow_tripdata":     "[yellow_tripdata]",
		"a..b":                "[a].[b]",
	}
	for in, want := range cases {
		if got := QuoteFQN(in, bracket); got != want {
			t.Errorf("QuoteFQN(%q) = %q, want %q", in, got, want)
		}
	}
	if got := QuoteFQN(" x . y ", plainQuote); got != "x.y" {
		t.Errorf("QuoteFQN trims segments, got %q", got)
	}
}

var benchmarkSink []string

// BenchmarkColumnList_Wide measures a 64 column table.
func BenchmarkColumnList_Wide(b *testing.B) {
	cols := make([]ColumnDef, 0, 64)
	for i := 0; i < 64; i++ {
		cols = append(cols, ColumnDef{Name: "col_" + strconv.Itoa(i), SQLType: "FLOAT", Nullable: i%3 != 0})
	}
	def := TableDef{FQN: "wide", Columns: cols}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		out, err := ColumnList(def, bracket)
		if err != nil {
			b.Fatal(err)
		}
		benchmarkSink = out
	}
}
