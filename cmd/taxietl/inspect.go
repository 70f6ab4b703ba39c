package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"taxietl/internal/config"
	"taxietl/internal/etlerr"
	"taxietl/internal/inspect"
	"taxietl/internal/normalize"
	"taxietl/internal/parser/parquet"
)

func newInspectCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the source schema, the normalized schema and the table DDL without loading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, sec, err := loadPipeline(o, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			rep, err := describeSource(ctx, p, sec)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if o.jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rep); err != nil {
					return err
				}
			} else if err := rep.WriteText(out); err != nil {
				return err
			}

			if !rep.OK() {
				return fmt.Errorf("inspect: %d problem(s): %w", len(rep.Problems), etlerr.ErrSchemaMismatch)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&o.jsonOut, "json", false, "print the report as JSON")
	return cmd
}

// describeSource reads only the footer of the configured object and reports
// it against the configured mapping and storage dialect.
func describeSource(ctx context.Context, p config.Pipeline, sec config.Secrets) (inspect.Report, error) {
	obj, err := openSourceFn(ctx, p, sec)
	if err != nil {
		return inspect.Report{}, fmt.Errorf("source open: %w", err)
	}
	defer obj.Close()

	pf, err := parquet.Open(obj, obj.Size(), parquet.Options{})
	if err != nil {
		return inspect.Report{}, fmt.Errorf("read %s: %w", obj.Name(), err)
	}

	m, nopts, err := normalize.FromOptions(p.Normalize())
	if err != nil {
		return inspect.Report{}, err
	}
	rep := inspect.Describe(pf.Schema(), m, inspect.Options{
		Normalize: nopts,
		Kind:      p.Storage.Kind,
		Table:     p.Storage.DB.Table,
	})
	rep.File = &inspect.FileInfo{
		Path:      obj.Name(),
		Size:      obj.Size(),
		Rows:      pf.NumRows(),
		RowGroups: pf.NumRowGroups(),
		CreatedBy: pf.CreatedBy(),
	}
	return rep, nil
}
