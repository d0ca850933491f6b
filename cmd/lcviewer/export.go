package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/lcviewer/internal/export"
	"github.com/banshee-data/lcviewer/internal/fsutil"
)

type exportOptions struct {
	commonOptions
	ObjectID int64
	Out      string
	// Rows restricts the export to these light-curve indices.
	Rows []int
}

func parseRows(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var rows []int
	for _, part := range strings.Split(s, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid row %q", part)
		}
		rows = append(rows, i)
	}
	return rows, nil
}

func parseExportFlags(args []string) (*exportOptions, error) {
	opts := &exportOptions{}
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	opts.register(fs)
	fs.Int64Var(&opts.ObjectID, "object", 0, "Object id to export (default: the -dev object)")
	fs.StringVar(&opts.Out, "out", "", "Output directory (required)")
	rows := fs.String("rows", "", "Comma separated row indices (default: all rows)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if opts.Rows, err = parseRows(*rows); err != nil {
		return nil, err
	}
	if opts.Out == "" {
		return nil, errors.New("-out is required")
	}
	if opts.ObjectID == 0 && !opts.Dev {
		return nil, errors.New("-object is required without -dev")
	}
	return opts, nil
}

func runExport(opts *exportOptions, out io.Writer) error {
	ctx := context.Background()
	a, err := newApp(ctx, opts.commonOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	id := opts.ObjectID
	if id == 0 {
		id = a.devObject
	}
	d, err := a.dashboard(ctx, id)
	if err != nil {
		return err
	}

	m, err := export.Export(ctx, d, fsutil.OSFileSystem{}, export.Options{Dir: opts.Out, Indices: opts.Rows})
	if err != nil {
		return err
	}
	skipped := 0
	for _, row := range m.Rows {
		if row.Error != "" {
			skipped++
		}
	}
	fmt.Fprintf(out, "exported %d rows of object %d to %s (%d without cutout)\n", len(m.Rows), m.ObjectID, opts.Out, skipped)
	return nil
}
