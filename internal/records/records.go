// Package records defines the in-memory tabular model passed between the
// reader, the normalizer and the writer.
//
// A RecordSet is an ordered list of rows, each row positionally aligned with
// the RecordSet's Schema. Values use a small set of Go types (see Kind); nil
// is the only representation of null.
package records

import (
	"fmt"
	"time"
)

// Kind is the logical type of a column.
type Kind string

const (
	KindBool      Kind = "bool"
	KindInt32     Kind = "int32"
	KindInt64     Kind = "int64"
	KindFloat32   Kind = "float32"
	KindFloat64   Kind = "float64"
	KindString    Kind = "string"
	KindBytes     Kind = "bytes"
	KindTimestamp Kind = "timestamp"
	KindDate      Kind = "date"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindBool, KindInt32, KindInt64, KindFloat32, KindFloat64,
		KindString, KindBytes, KindTimestamp, KindDate:
		return true
	}
	return false
}

// Accepts reports whether v is a legal non-null value for k.
func (k Kind) Accepts(v any) bool {
	switch v.(type) {
	case bool:
		return k == KindBool
	case int32:
		return k == KindInt32
	case int64:
		return k == KindInt64
	case float32:
		return k == KindFloat32
	case float64:
		return k == KindFloat64
	case string:
		return k == KindString
	case []byte:
		return k == KindBytes
	case time.Time:
		return k == KindTimestamp || k == KindDate
	}
	return false
}

// Field describes one column.
type Field struct {
	Name     string
	Kind     Kind
	Nullable bool
}

func (f Field) String() string {
	if f.Nullable {
		return fmt.Sprintf("%s %s", f.Name, f.Kind)
	}
	return fmt.Sprintf("%s %s not null", f.Name, f.Kind)
}

// Schema is the ordered list of columns of a RecordSet.
type Schema []Field

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Name
	}
	return out
}

// Index returns the position of the column called name, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Field returns the column called name.
func (s Schema) Field(name string) (Field, bool) {
	if i := s.Index(name); i >= 0 {
		return s[i], true
	}
	return Field{}, false
}

// SameNames reports whether both schemas list the same names in the same
// order. Kinds are not compared.
func (s Schema) SameNames(o Schema) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i].Name != o[i].Name {
			return false
		}
	}
	return true
}

// RecordSet is an ordered collection of rows sharing one schema.
type RecordSet struct {
	Schema Schema
	Rows   [][]any
}

// Len returns the number of rows.
func (rs RecordSet) Len() int { return len(rs.Rows) }

// Column returns a copy of the values of the named column, in row order.
func (rs RecordSet) Column(name string) ([]any, error) {
	i := rs.Schema.Index(name)
	if i < 0 {
		return nil, fmt.Errorf("records: no column %q", name)
	}
	out := make([]any, len(rs.Rows))
	for r, row := range rs.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// Record returns row r as a name -> value map. It is meant for tests and
// diagnostics; the pipeline itself stays positional.
func (rs RecordSet) Record(r int) map[string]any {
	row := rs.Rows[r]
	out := make(map[string]any, len(rs.Schema))
	for i, f := range rs.Schema {
		out[f.Name] = row[i]
	}
	return out
}

// Check verifies every row has one value per column and every non-null value
// matches its column kind.
func (rs RecordSet) Check() error {
	for r, row := range rs.Rows {
		if len(row) != len(rs.Schema) {
			return fmt.Errorf("records: row %d has %d values, schema has %d columns", r, len(row), len(rs.Schema))
		}
		for i, v := range row {
			if v == nil {
				continue
			}
			if !rs.Schema[i].Kind.Accepts(v) {
				return fmt.Errorf("records: row %d column %s: %T is not %s", r, rs.Schema[i].Name, v, rs.Schema[i].Kind)
			}
		}
	}
	return nil
}
