// Package ddl contains SQL Server and Azure Synapse helpers for generating
// DDL from a record schema.
package ddl

import "taxietl/internal/records"

// MapType maps a record kind onto a SQL Server column type.
//
//	bool      -> BIT
//	int32     -> INT
//	int64     -> BIGINT
//	float32   -> REAL
//	float64   -> FLOAT
//	bytes     -> VARBINARY(MAX)
//	timestamp -> DATETIME2
//	date      -> DATE
//	others    -> NVARCHAR(MAX)
func MapType(k records.Kind) string {
	switch k {
	case records.KindBytes:
		return "VARBINARY(MAX)"
	case records.KindString:
		return "NVARCHAR(MAX)"
	}
	return mapCommon(k, "NVARCHAR(MAX)")
}

// MapSynapseType is MapType for dedicated SQL pools, where clustered
// columnstore tables cannot hold MAX types.
func MapSynapseType(k records.Kind) string {
	switch k {
	case records.KindBytes:
		return "VARBINARY(8000)"
	case records.KindString:
		return "NVARCHAR(4000)"
	}
	return mapCommon(k, "NVARCHAR(4000)")
}

func mapCommon(k records.Kind, fallback string) string {
	switch k {
	case records.KindBool:
		return "BIT"
	case records.KindInt32:
		return "INT"
	case records.KindInt64:
		return "BIGINT"
	case records.KindFloat32:
		return "REAL"
	case records.KindFloat64:
		return "FLOAT"
	case records.KindTimestamp:
		return "DATETIME2"
	case records.KindDate:
		return "DATE"
	default:
		return fallback
	}
}
