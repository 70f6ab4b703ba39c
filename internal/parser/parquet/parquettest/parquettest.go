// Package parquettest writes small yellow-taxi Parquet fixtures for tests.
package parquettest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	pq "github.com/parquet-go/parquet-go"
)

// YellowTrip mirrors the column layout of the TLC yellow trip record files
// (2025 vintage). Field order is the file's column order.
type YellowTrip struct {
	VendorID             *int32    `parquet:"VendorID,optional"`
	PickupDatetime       time.Time `parquet:"tpep_pickup_datetime,optional,timestamp(microsecond)"`
	DropoffDatetime      time.Time `parquet:"tpep_dropoff_datetime,optional,timestamp(microsecond)"`
	PassengerCount       *int64    `parquet:"passenger_count,optional"`
	TripDistance         *float64  `parquet:"trip_distance,optional"`
	RatecodeID           *int64    `parquet:"RatecodeID,optional"`
	StoreAndFwdFlag      *string   `parquet:"store_and_fwd_flag,optional"`
	PULocationID         *int32    `parquet:"PULocationID,optional"`
	DOLocationID         *int32    `parquet:"DOLocationID,optional"`
	PaymentType          *int64    `parquet:"payment_type,optional"`
	FareAmount           *float64  `parquet:"fare_amount,optional"`
	Extra                *float64  `parquet:"extra,optional"`
	MtaTax               *float64  `parquet:"mta_tax,optional"`
	TipAmount            *float64  `parquet:"tip_amount,optional"`
	TollsAmount          *float64  `parquet:"tolls_amount,optional"`
	ImprovementSurcharge *float64  `parquet:"improvement_surcharge,optional"`
	TotalAmount          *float64  `parquet:"total_amount,optional"`
	CongestionSurcharge  *float64  `parquet:"congestion_surcharge,optional"`
	AirportFee           *float64  `parquet:"Airport_fee,optional"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Trip returns a fully populated row. i varies the values.
func Trip(i int) YellowTrip {
	pickup := time.Date(2025, 1, 1, 0, 18, 38, 0, time.UTC).Add(time.Duration(i) * time.Minute)
	return YellowTrip{
		VendorID:             Ptr(int32(1 + i%2)),
		PickupDatetime:       pickup,
		DropoffDatetime:      pickup.Add(12 * time.Minute),
		PassengerCount:       Ptr(int64(1 + i%4)),
		TripDistance:         Ptr(1.6 + float64(i)/10),
		RatecodeID:           Ptr(int64(1)),
		StoreAndFwdFlag:      Ptr("N"),
		PULocationID:         Ptr(int32(229)),
		DOLocationID:         Ptr(int32(237)),
		PaymentType:          Ptr(int64(1)),
		FareAmount:           Ptr(10.0 + float64(i)),
		Extra:                Ptr(3.5),
		MtaTax:               Ptr(0.5),
		TipAmount:            Ptr(3.0),
		TollsAmount:          Ptr(0.0),
		ImprovementSurcharge: Ptr(1.0),
		TotalAmount:          Ptr(18.0 + float64(i)),
		CongestionSurcharge:  Ptr(2.5),
		AirportFee:           Ptr(0.0),
	}
}

// Trips returns n rows from Trip. Every fifth row has a null
// passenger_count, as in real files where the meter did not record it.
func Trips(n int) []YellowTrip {
	out := make([]YellowTrip, n)
	for i := range out {
		out[i] = Trip(i)
		if i%5 == 4 {
			out[i].PassengerCount = nil
			out[i].RatecodeID = nil
		}
	}
	return out
}

// Write writes rows to dir/name with the given row group size and returns
// the path. dir is created if needed.
func Write[T any](t testing.TB, dir, name string, rows []T, rowGroupSize int) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create fixture dir: %v", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	opts := []pq.WriterOption{pq.CreatedBy("parquettest", "1", "")}
	if rowGroupSize > 0 {
		opts = append(opts, pq.MaxRowsPerRowGroup(int64(rowGroupSize)))
	}
	w := pq.NewGenericWriter[T](f, opts...)
	if _, err := w.Write(rows); err != nil {
		t.Fatalf("write fixture rows: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close fixture writer: %v", err)
	}
	return path
}

// WriteYellow writes n rows from Trips to dir/yellow_tripdata_2025-01.parquet.
func WriteYellow(t testing.TB, dir string, n, rowGroupSize int) string {
	t.Helper()
	return Write(t, dir, "yellow_tripdata_2025-01.parquet", Trips(n), rowGroupSize)
}
