package normalize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"taxietl/internal/etlerr"
	"taxietl/internal/records"
)

// MaxSamples bounds the coercion failures kept in Stats.
const MaxSamples = 10

// Options control how a mapping is resolved against an input schema.
type Options struct {
	// CaseInsensitive matches source names with strings.EqualFold when no
	// exact match exists.
	CaseInsensitive bool
	// DropUnmapped removes input columns not named by the mapping. By
	// default they pass through unchanged, in place.
	DropUnmapped bool
}

// Stats counts what Apply did to a batch.
type Stats struct {
	Rows          int64
	CoercionNulls map[string]int64
	Filled        map[string]int64
	// Samples holds up to MaxSamples coercion failures, first seen first.
	Samples []etlerr.CoercionNull
}

// Merge adds o into s.
func (s *Stats) Merge(o Stats) {
	s.Rows += o.Rows
	s.CoercionNulls = mergeCounts(s.CoercionNulls, o.CoercionNulls)
	s.Filled = mergeCounts(s.Filled, o.Filled)
	for _, c := range o.Samples {
		if len(s.Samples) >= MaxSamples {
			break
		}
		s.Samples = append(s.Samples, c)
	}
}

// TotalCoercionNulls sums CoercionNulls over all columns.
func (s Stats) TotalCoercionNulls() int64 { return sum(s.CoercionNulls) }

// TotalFilled sums Filled over all columns.
func (s Stats) TotalFilled() int64 { return sum(s.Filled) }

func mergeCounts(dst, src map[string]int64) map[string]int64 {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]int64, len(src))
	}
	for k, v := range src {
		dst[k] += v
	}
	return dst
}

func sum(m map[string]int64) int64 {
	var n int64
	for _, v := range m {
		n += v
	}
	return n
}

// step produces one output column from one input column.
type step struct {
	src  int
	name string
	cast bool
	fill any
}

// Plan is a mapping resolved against a concrete input schema. A Plan is
// immutable and safe for concurrent use.
type Plan struct {
	in          records.Schema
	out         records.Schema
	steps       []step
	passthrough []string
	dropped     []string
}

// Compile resolves m against in. Every source must exist in in; all missing
// names are reported together as a *etlerr.SchemaMismatchError. Output names
// that collide (a rename target equal to a passthrough column) are reported
// as duplicates.
func Compile(in records.Schema, m Mapping, opts Options) (*Plan, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	// input position -> mapping entry
	bySrc := make(map[int]Column, len(m))
	var missing, ambiguous []string
	for _, c := range m {
		idx, n := resolve(in, c.Source, opts.CaseInsensitive)
		switch {
		case n == 0:
			missing = append(missing, c.Source)
		case n > 1:
			ambiguous = append(ambiguous, c.Source)
		default:
			if prev, ok := bySrc[idx]; ok {
				ambiguous = append(ambiguous, prev.Source+"/"+c.Source)
				continue
			}
			bySrc[idx] = c
		}
	}
	if len(missing) > 0 || len(ambiguous) > 0 {
		return nil, fmt.Errorf("normalize: %w", &etlerr.SchemaMismatchError{Missing: missing, Duplicate: ambiguous})
	}

	p := &Plan{in: in}
	seen := make(map[string]int, len(in))
	var dup []string
	for i, f := range in {
		c, mapped := bySrc[i]
		if !mapped {
			if opts.DropUnmapped {
				p.dropped = append(p.dropped, f.Name)
				continue
			}
			p.passthrough = append(p.passthrough, f.Name)
			c = Column{Source: f.Name, Target: f.Name}
		}

		out := records.Field{Name: c.Target, Kind: f.Kind, Nullable: f.Nullable}
		s := step{src: i, name: c.Target}
		if c.Cast != "" {
			out.Kind, s.cast = c.Cast, true
		}
		if c.Fill != nil {
			v, err := convertFill(c.Fill, out.Kind)
			if err != nil {
				return nil, fmt.Errorf("normalize: fill %s: %w", c.Target, err)
			}
			s.fill, out.Nullable = v, false
		}

		if seen[c.Target]++; seen[c.Target] == 2 {
			dup = append(dup, c.Target)
		}
		p.out = append(p.out, out)
		p.steps = append(p.steps, s)
	}
	if len(dup) > 0 {
		return nil, fmt.Errorf("normalize: %w", &etlerr.SchemaMismatchError{Duplicate: dup})
	}
	return p, nil
}

// resolve finds name in s. An exact match wins; otherwise, when fold is set,
// a unique case-insensitive match is used. n is the number of candidates.
func resolve(s records.Schema, name string, fold bool) (idx, n int) {
	if i := s.Index(name); i >= 0 {
		return i, 1
	}
	if !fold {
		return -1, 0
	}
	idx = -1
	for i, f := range s {
		if strings.EqualFold(f.Name, name) {
			idx, n = i, n+1
		}
	}
	return idx, n
}

// convertFill converts a numeric fill value to the Go type of kind.
func convertFill(v any, kind records.Kind) (any, error) {
	f, ok := asFloat(v)
	if !ok {
		return nil, fmt.Errorf("%#v is not a number", v)
	}
	switch kind {
	case records.KindInt32:
		if n, ok := ToInt32(v); ok {
			return n, nil
		}
	case records.KindInt64:
		if f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64 {
			return int64(f), nil
		}
	case records.KindFloat64:
		return f, nil
	case records.KindFloat32:
		if math.Abs(f) <= math.MaxFloat32 {
			return float32(f), nil
		}
	default:
		return nil, fmt.Errorf("cannot fill a %s column", kind)
	}
	return nil, fmt.Errorf("%v does not fit %s", v, kind)
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// Input returns the schema the plan was compiled for.
func (p *Plan) Input() records.Schema { return p.in }

// Schema returns the output schema: input order, renamed, cast columns as
// int32 and filled columns non-nullable.
func (p *Plan) Schema() records.Schema { return p.out }

// Passthrough lists input columns not named by the mapping and kept as-is.
func (p *Plan) Passthrough() []string { return p.passthrough }

// Dropped lists input columns removed because of Options.DropUnmapped.
func (p *Plan) Dropped() []string { return p.dropped }

// Apply normalizes rs and returns a new RecordSet; rs is not modified. The
// batch schema must carry the same column names as the compiled input.
func (p *Plan) Apply(rs records.RecordSet) (records.RecordSet, Stats, error) {
	if !rs.Schema.SameNames(p.in) {
		return records.RecordSet{}, Stats{}, fmt.Errorf("normalize: batch: %w", p.mismatch(rs.Schema))
	}

	st := Stats{Rows: int64(len(rs.Rows))}
	out := records.RecordSet{Schema: p.out, Rows: make([][]any, len(rs.Rows))}
	for r, row := range rs.Rows {
		if len(row) != len(p.in) {
			return records.RecordSet{}, Stats{}, fmt.Errorf("normalize: row %d has %d values, schema has %d columns", r, len(row), len(p.in))
		}
		dst := make([]any, len(p.steps))
		for j, s := range p.steps {
			v := row[s.src]
			if s.cast && v != nil {
				n, ok := ToInt32(v)
				if ok {
					v = n
				} else {
					st.coercionNull(s.name, r, v)
					v = nil
				}
			}
			if v == nil && s.fill != nil {
				v = s.fill
				st.filled(s.name)
			}
			dst[j] = v
		}
		out.Rows[r] = dst
	}
	return out, st, nil
}

func (st *Stats) coercionNull(col string, row int, v any) {
	if st.CoercionNulls == nil {
		st.CoercionNulls = map[string]int64{}
	}
	st.CoercionNulls[col]++
	if len(st.Samples) < MaxSamples {
		st.Samples = append(st.Samples, etlerr.CoercionNull{Column: col, Row: row, Value: v})
	}
}

func (st *Stats) filled(col string) {
	if st.Filled == nil {
		st.Filled = map[string]int64{}
	}
	st.Filled[col]++
}

func (p *Plan) mismatch(got records.Schema) error {
	have := make(map[string]bool, len(got))
	for _, f := range got {
		have[f.Name] = true
	}
	e := &etlerr.SchemaMismatchError{}
	for _, f := range p.in {
		if !have[f.Name] {
			e.Missing = append(e.Missing, f.Name)
		}
	}
	if len(e.Missing) == 0 {
		// same set, different order or extra columns
		var extra []string
		want := make(map[string]bool, len(p.in))
		for _, f := range p.in {
			want[f.Name] = true
		}
		for _, f := range got {
			if !want[f.Name] {
				extra = append(extra, f.Name)
			}
		}
		sort.Strings(extra)
		e.Unsupported = extra
	}
	return e
}

// Normalize compiles m against rs.Schema and applies it.
func Normalize(rs records.RecordSet, m Mapping, opts Options) (records.RecordSet, Stats, error) {
	p, err := Compile(rs.Schema, m, opts)
	if err != nil {
		return records.RecordSet{}, Stats{}, err
	}
	return p.Apply(rs)
}
