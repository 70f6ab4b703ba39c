// Package ddl contains Postgres-specific helpers for generating DDL.
package ddl

import "taxietl/internal/records"

// MapType maps a record kind onto a Postgres column type.
//
//	bool      -> BOOLEAN
//	int32     -> INTEGER
//	int64     -> BIGINT
//	float32   -> REAL
//	float64   -> DOUBLE PRECISION
//	bytes     -> BYTEA
//	timestamp -> TIMESTAMPTZ
//	date      -> DATE
//	others    -> TEXT
func MapType(k records.Kind) string {
	switch k {
	case records.KindBool:
		return "BOOLEAN"
	case records.KindInt32:
		return "INTEGER"
	case records.KindInt64:
		return "BIGINT"
	case records.KindFloat32:
		return "REAL"
	case records.KindFloat64:
		return "DOUBLE PRECISION"
	case records.KindBytes:
		return "BYTEA"
	case records.KindTimestamp:
		return "TIMESTAMPTZ"
	case records.KindDate:
		return "DATE"
	default:
		return "TEXT"
	}
}
