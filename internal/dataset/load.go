package dataset

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Format is a tabular file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// FormatOf infers the format from the location's extension; anything not
// recognised is read as CSV.
func FormatOf(location string) Format {
	p := location
	if scheme(location) != "" {
		if u, err := url.Parse(location); err == nil {
			p = u.Path
		}
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".xlsx":
		return FormatXLSX
	case ".tsv":
		return FormatTSV
	default:
		return FormatCSV
	}
}

// Load opens location and reads it as a table.
func Load(ctx context.Context, location string, opts Options) (*Table, error) {
	format := FormatOf(location)

	var (
		t   *Table
		err error
	)
	if format == FormatXLSX && scheme(location) == "" {
		t, err = ReadXLSX(location, opts.Sheet)
	} else {
		t, err = loadStream(ctx, location, format, opts)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: load %s", location)
	}

	zap.L().Info("dataset: loaded",
		zap.String("location", location),
		zap.String("format", string(format)),
		zap.Int("columns", len(t.Header)),
		zap.Int("rows", len(t.Rows)),
	)
	return t, nil
}

func loadStream(ctx context.Context, location string, format Format, opts Options) (*Table, error) {
	rc, err := Open(ctx, location, opts)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	switch format {
	case FormatXLSX:
		return readXLSXFrom(rc, opts.Sheet)
	case FormatTSV:
		return ReadCSV(ctx, rc, CSVOptions{Delimiter: '\t'})
	default:
		return ReadCSV(ctx, rc, CSVOptions{})
	}
}
