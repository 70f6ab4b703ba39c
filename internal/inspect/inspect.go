// Package inspect describes an input file against a column mapping without
// loading it: the input schema, which columns the mapping renames, casts or
// fills, what passes through, what is missing, and the schema and DDL the
// load would produce. Only the file footer is needed.
package inspect

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"taxietl/internal/etlerr"
	"taxietl/internal/normalize"
	"taxietl/internal/records"
	"taxietl/internal/storage"
)

// Column roles in a Report.
const (
	RoleMapped      = "mapped"
	RolePassthrough = "passthrough"
	RoleDropped     = "dropped"
)

// Options selects normalization behaviour and, optionally, the dialect and
// table to render DDL for.
type Options struct {
	Normalize normalize.Options
	// Kind is a registered storage kind; empty skips DDL.
	Kind  string
	Table string
}

// Column describes one input or output column.
type Column struct {
	Name     string       `json:"name"`
	Kind     records.Kind `json:"kind"`
	Nullable bool         `json:"nullable"`
	Role     string       `json:"role,omitempty"`
	Target   string       `json:"target,omitempty"`
	Cast     records.Kind `json:"cast,omitempty"`
	Fill     any          `json:"fill,omitempty"`
}

// FileInfo is footer metadata of the described file.
type FileInfo struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Rows      int64  `json:"rows"`
	RowGroups int    `json:"row_groups"`
	CreatedBy string `json:"created_by,omitempty"`
}

// Report is the result of Describe.
type Report struct {
	File     *FileInfo `json:"file,omitempty"`
	Input    []Column  `json:"input"`
	Missing  []string  `json:"missing,omitempty"`
	Output   []Column  `json:"output,omitempty"`
	DDL      string    `json:"ddl,omitempty"`
	Problems []string  `json:"problems,omitempty"`
}

// OK reports whether the file can be loaded with the mapping as given.
func (r Report) OK() bool { return len(r.Problems) == 0 }

// Describe compiles m against in and reports the result. It never fails:
// anything that would stop a load is listed in Problems.
func Describe(in records.Schema, m normalize.Mapping, opts Options) Report {
	rep := Report{Input: make([]Column, 0, len(in))}

	bySource := make(map[string]normalize.Column, len(m))
	for _, c := range m {
		bySource[c.Source] = c
	}
	lookup := func(name string) (normalize.Column, bool) {
		if c, ok := bySource[name]; ok {
			return c, true
		}
		if opts.Normalize.CaseInsensitive {
			for _, c := range m {
				if strings.EqualFold(c.Source, name) {
					return c, true
				}
			}
		}
		return normalize.Column{}, false
	}

	for _, f := range in {
		col := Column{Name: f.Name, Kind: f.Kind, Nullable: f.Nullable}
		if mc, ok := lookup(f.Name); ok {
			col.Role, col.Target, col.Cast, col.Fill = RoleMapped, mc.Target, mc.Cast, mc.Fill
		} else if opts.Normalize.DropUnmapped {
			col.Role = RoleDropped
		} else {
			col.Role = RolePassthrough
		}
		rep.Input = append(rep.Input, col)
	}

	plan, err := normalize.Compile(in, m, opts.Normalize)
	if err != nil {
		var sm *etlerr.SchemaMismatchError
		if errors.As(err, &sm) {
			rep.Missing = append(rep.Missing, sm.Missing...)
		}
		rep.Problems = append(rep.Problems, err.Error())
		return rep
	}

	out := plan.Schema()
	rep.Output = make([]Column, len(out))
	for i, f := range out {
		rep.Output[i] = Column{Name: f.Name, Kind: f.Kind, Nullable: f.Nullable}
	}

	if opts.Kind != "" {
		ddl, err := storage.CreateTableSQL(opts.Kind, opts.Table, out, nil)
		if err != nil {
			rep.Problems = append(rep.Problems, fmt.Sprintf("ddl: %v", err))
		} else {
			rep.DDL = ddl
		}
	}
	return rep
}

// WriteText renders r as an indented tree, input first, then output.
func (r Report) WriteText(w io.Writer) error {
	var sb strings.Builder
	if f := r.File; f != nil {
		fmt.Fprintf(&sb, "file: %s size=%d rows=%d row_groups=%d", f.Path, f.Size, f.Rows, f.RowGroups)
		if f.CreatedBy != "" {
			fmt.Fprintf(&sb, " created_by=%q", f.CreatedBy)
		}
		sb.WriteString("\n\n")
	}

	sb.WriteString("input\n")
	for _, c := range r.Input {
		fmt.Fprintf(&sb, " |-- %s: %s (nullable = %t)", c.Name, c.Kind, c.Nullable)
		switch c.Role {
		case RoleMapped:
			fmt.Fprintf(&sb, " -> %s", c.Target)
			if c.Cast != "" {
				fmt.Fprintf(&sb, " cast=%s", c.Cast)
			}
			if c.Fill != nil {
				fmt.Fprintf(&sb, " fill=%v", c.Fill)
			}
		case RolePassthrough, RoleDropped:
			fmt.Fprintf(&sb, " [%s]", c.Role)
		}
		sb.WriteByte('\n')
	}

	if len(r.Missing) > 0 {
		fmt.Fprintf(&sb, "\nmissing: %s\n", strings.Join(r.Missing, ", "))
	}

	if len(r.Output) > 0 {
		sb.WriteString("\noutput\n")
		for _, c := range r.Output {
			fmt.Fprintf(&sb, " |-- %s: %s (nullable = %t)\n", c.Name, c.Kind, c.Nullable)
		}
	}
	if r.DDL != "" {
		sb.WriteString("\n")
		sb.WriteString(r.DDL)
		sb.WriteString("\n")
	}
	for _, p := range r.Problems {
		fmt.Fprintf(&sb, "\nproblem: %s\n", p)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
