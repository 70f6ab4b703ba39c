// Package normalize renames, casts and fills the columns of a record set
// according to a declarative mapping.
//
// A Mapping is a list of Column tuples {Source, Target, Cast, Fill}. Applying
// it is a pure function RecordSet -> RecordSet: for every mapped column the
// value is renamed (positionally), then cast, then filled. Rows are never
// added, dropped or reordered.
//
// The default mapping, YellowTripdata, is the TLC yellow taxi layout: 19
// renames, six integer casts and a zero fill for passenger_count. No other
// column is null-filled.
package normalize

import (
	"fmt"
	"strings"

	"taxietl/internal/records"
)

// Column maps one source column to its output.
type Column struct {
	// Source is the input column name.
	Source string
	// Target is the output column name.
	Target string
	// Cast is the output kind for coerced columns. Empty keeps the input
	// kind; the only supported cast is records.KindInt32.
	Cast records.Kind
	// Fill replaces nulls after the cast. nil means no fill.
	Fill any
}

// Mapping is an ordered list of column rules. Output order follows the input
// schema, not the mapping.
type Mapping []Column

// PresetYellowTripdata names the default mapping.
const PresetYellowTripdata = "yellow_tripdata"

// YellowTripdata returns the mapping for TLC yellow taxi trip records.
func YellowTripdata() Mapping {
	return Mapping{
		{Source: "VendorID", Target: "vendor_id", Cast: records.KindInt32},
		{Source: "tpep_pickup_datetime", Target: "pickup_datetime"},
		{Source: "tpep_dropoff_datetime", Target: "dropoff_datetime"},
		{Source: "passenger_count", Target: "passenger_count", Cast: records.KindInt32, Fill: int32(0)},
		{Source: "trip_distance", Target: "trip_distance"},
		{Source: "RatecodeID", Target: "rate_code_id", Cast: records.KindInt32},
		{Source: "store_and_fwd_flag", Target: "store_and_fwd_flag"},
		{Source: "PULocationID", Target: "pu_location_id", Cast: records.KindInt32},
		{Source: "DOLocationID", Target: "do_location_id", Cast: records.KindInt32},
		{Source: "payment_type", Target: "payment_type", Cast: records.KindInt32},
		{Source: "fare_amount", Target: "fare_amount"},
		{Source: "extra", Target: "extra"},
		{Source: "mta_tax", Target: "mta_tax"},
		{Source: "tip_amount", Target: "tip_amount"},
		{Source: "tolls_amount", Target: "tolls_amount"},
		{Source: "improvement_surcharge", Target: "improvement_surcharge"},
		{Source: "total_amount", Target: "total_amount"},
		{Source: "congestion_surcharge", Target: "congestion_surcharge"},
		{Source: "Airport_fee", Target: "airport_fee"},
	}
}

// Sources returns the source names in mapping order.
func (m Mapping) Sources() []string {
	out := make([]string, len(m))
	for i, c := range m {
		out[i] = c.Source
	}
	return out
}

// Targets returns the target names in mapping order.
func (m Mapping) Targets() []string {
	out := make([]string, len(m))
	for i, c := range m {
		out[i] = c.Target
	}
	return out
}

// Casts returns the targets that are coerced, in mapping order.
func (m Mapping) Casts() []string {
	var out []string
	for _, c := range m {
		if c.Cast != "" {
			out = append(out, c.Target)
		}
	}
	return out
}

// Validate checks the mapping on its own, without an input schema: names are
// non-empty, sources and targets are unique, casts are supported and fill
// values are numbers.
func (m Mapping) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("normalize: mapping is empty")
	}
	var problems []string
	sources := make(map[string]bool, len(m))
	targets := make(map[string]bool, len(m))
	for i, c := range m {
		if strings.TrimSpace(c.Source) == "" {
			problems = append(problems, fmt.Sprintf("column %d: empty source", i))
		}
		if strings.TrimSpace(c.Target) == "" {
			problems = append(problems, fmt.Sprintf("column %d: empty target", i))
		}
		if sources[c.Source] {
			problems = append(problems, fmt.Sprintf("source %q mapped twice", c.Source))
		}
		if targets[c.Target] {
			problems = append(problems, fmt.Sprintf("target %q used twice", c.Target))
		}
		sources[c.Source], targets[c.Target] = true, true

		switch c.Cast {
		case "", records.KindInt32:
		default:
			problems = append(problems, fmt.Sprintf("%s: unsupported cast %q", c.Target, c.Cast))
		}
		if c.Fill != nil && !isNumber(c.Fill) {
			problems = append(problems, fmt.Sprintf("%s: fill %#v is not a number", c.Target, c.Fill))
		}
		if c.Cast == records.KindInt32 && c.Fill != nil {
			if _, ok := ToInt32(c.Fill); !ok {
				problems = append(problems, fmt.Sprintf("%s: fill %#v does not fit int32", c.Target, c.Fill))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("normalize: invalid mapping: %s", strings.Join(problems, "; "))
	}
	return nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32, float32, float64:
		return true
	}
	return false
}
