// Package ddl contains SQLite-specific helpers for generating DDL.
package ddl

import "taxietl/internal/records"

// MapType maps a record kind onto a SQLite column type.
//
// SQLite is dynamically typed, so this picks canonical affinities:
//   - integers and booleans -> INTEGER (booleans as 0/1)
//   - floats               -> REAL
//   - timestamps and dates -> TEXT (the driver writes ISO-8601 strings)
//   - bytes                -> BLOB
//   - everything else      -> TEXT
func MapType(k records.Kind) string {
	switch k {
	case records.KindInt32, records.KindInt64, records.KindBool:
		return "INTEGER"
	case records.KindFloat32, records.KindFloat64:
		return "REAL"
	case records.KindBytes:
		return "BLOB"
	default:
		return "TEXT"
	}
}
