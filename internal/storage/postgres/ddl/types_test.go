package ddl

import (
	"testing"

	"taxietl/internal/records"
)

func TestMapType(t *testing.T) {
	t.Parallel()

	tests := map[records.Kind]string{
		records.KindBool:      "BOOLEAN",
		records.KindInt32:     "INTEGER",
		records.KindInt64:     "BIGINT",
		records.KindFloat32:   "REAL",
		records.KindFloat64:   "DOUBLE PRECISION",
		records.KindString:    "TEXT",
		records.KindBytes:     "BYTEA",
		records.KindTimestamp: "TIMESTAMPTZ",
		records.KindDate:      "DATE",
		"":                    "TEXT",
	}
	for k, want := range tests {
		if got := MapType(k); got != want {
			t.Errorf("MapType(%q) = %q, want %q", k, got, want)
		}
	}
}
