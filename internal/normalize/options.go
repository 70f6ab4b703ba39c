package normalize

import (
	"fmt"
	"sort"

	"taxietl/internal/config"
	"taxietl/internal/records"
)

// FromOptions builds a mapping from the options of a "normalize" transform:
//
//	{
//	  "preset": "yellow_tripdata",          // or "none"
//	  "rename": {"Airport_fee": "airport_fee_usd"},
//	  "cast_int": ["trip_distance"],       // post-rename names
//	  "fill": {"trip_distance": 0},        // post-rename names
//	  "case_insensitive": false,
//	  "drop_unmapped": false
//	}
//
// rename overrides the target of a preset source or adds a new entry. New
// entries are appended in source-name order.
func FromOptions(o config.Options) (Mapping, Options, error) {
	var m Mapping
	switch preset := o.String("preset", PresetYellowTripdata); preset {
	case PresetYellowTripdata:
		m = YellowTripdata()
	case "none":
	default:
		return nil, Options{}, fmt.Errorf("normalize: unknown preset %q", preset)
	}

	if o.Has("rename") && o.Map("rename") == nil {
		return nil, Options{}, fmt.Errorf("normalize: rename must be an object of strings")
	}
	rename := o.StringMap("rename")
	srcs := make([]string, 0, len(rename))
	for s := range rename {
		srcs = append(srcs, s)
	}
	sort.Strings(srcs)
	for _, src := range srcs {
		if i := indexSource(m, src); i >= 0 {
			m[i].Target = rename[src]
			continue
		}
		m = append(m, Column{Source: src, Target: rename[src]})
	}

	if o.Has("cast_int") && o.StringSlice("cast_int") == nil {
		return nil, Options{}, fmt.Errorf("normalize: cast_int must be an array of column names")
	}
	for _, name := range o.StringSlice("cast_int") {
		i := indexTarget(m, name)
		if i < 0 {
			return nil, Options{}, fmt.Errorf("normalize: cast_int: %q is not a mapped column", name)
		}
		m[i].Cast = records.KindInt32
	}

	fill := o.Map("fill")
	cols := make([]string, 0, len(fill))
	for c := range fill {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, name := range cols {
		i := indexTarget(m, name)
		if i < 0 {
			return nil, Options{}, fmt.Errorf("normalize: fill: %q is not a mapped column", name)
		}
		if !isNumber(fill[name]) {
			return nil, Options{}, fmt.Errorf("normalize: fill: %s must be a number", name)
		}
		m[i].Fill = fill[name]
	}

	opts := Options{
		CaseInsensitive: o.Bool("case_insensitive", false),
		DropUnmapped:    o.Bool("drop_unmapped", false),
	}
	if err := m.Validate(); err != nil {
		return nil, Options{}, err
	}
	return m, opts, nil
}

func indexSource(m Mapping, name string) int {
	for i, c := range m {
		if c.Source == name {
			return i
		}
	}
	return -1
}

func indexTarget(m Mapping, name string) int {
	for i, c := range m {
		if c.Target == name {
			return i
		}
	}
	return -1
}
