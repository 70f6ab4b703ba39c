package ddl

import (
	"testing"

	"taxietl/internal/records"
)

func TestMapType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind    records.Kind
		want    string
		synapse string
	}{
		{records.KindBool, "BIT", "BIT"},
		{records.KindInt32, "INT", "INT"},
		{records.KindInt64, "BIGINT", "BIGINT"},
		{records.KindFloat32, "REAL", "REAL"},
		{records.KindFloat64, "FLOAT", "FLOAT"},
		{records.KindString, "NVARCHAR(MAX)", "NVARCHAR(4000)"},
		{records.KindBytes, "VARBINARY(MAX)", "VARBINARY(8000)"},
		{records.KindTimestamp, "DATETIME2", "DATETIME2"},
		{records.KindDate, "DATE", "DATE"},
		{"", "NVARCHAR(MAX)", "NVARCHAR(4000)"},
	}
	for _, tt := range tests {
		if got := MapType(tt.kind); got != tt.want {
			t.Errorf("MapType(%q) = %q, want %q", tt.kind, got, tt.want)
		}
		if got := MapSynapseType(tt.kind); got != tt.synapse {
			t.Errorf("MapSynapseType(%q) = %q, want %q", tt.kind, got, tt.synapse)
		}
	}
}

func BenchmarkMapType(b *testing.B) {
	kinds := []records.Kind{records.KindInt32, records.KindFloat64, records.KindString, records.KindTimestamp}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = MapType(kinds[i%len(kinds)])
	}
}
