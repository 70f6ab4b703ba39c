package datasource

import (
	"fmt"
	"strings"
)

// PartitionPath builds the conventional monthly object path
//
//	<dataset>/<yyyy>/<mm>/<prefix>_<yyyy>-<mm>.<ext>
//
// e.g. yellow/2025/01/yellow_tripdata_2025-01.parquet. An empty prefix means
// "<dataset>_tripdata"; an empty ext means "parquet".
func PartitionPath(dataset, prefix string, year, month int, ext string) (string, error) {
	dataset = strings.Trim(dataset, "/ ")
	if dataset == "" {
		return "", fmt.Errorf("datasource: partition dataset is empty")
	}
	if month < 1 || month > 12 {
		return "", fmt.Errorf("datasource: partition month %d out of range", month)
	}
	if year < 1 || year > 9999 {
		return "", fmt.Errorf("datasource: partition year %d out of range", year)
	}
	if prefix == "" {
		prefix = dataset + "_tripdata"
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "parquet"
	}
	return fmt.Sprintf("%s/%04d/%02d/%s_%04d-%02d.%s", dataset, year, month, prefix, year, month, ext), nil
}
