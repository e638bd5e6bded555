// Package dataset opens historical training tables from local files, HTTP(S)
// or FTP and turns their rows into raw records for the training pipeline.
package dataset

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Options configures dataset loading and remote sources.
type Options struct {
	Timeout       time.Duration
	MaxRetries    int
	UserAgent     string
	RatePerSecond float64
	Burst         int

	// Sheet names the worksheet to read from XLSX datasets; empty means the
	// first sheet.
	Sheet string

	// retryBase is the first backoff delay; tests shrink it.
	retryBase time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.UserAgent == "" {
		o.UserAgent = "forecast-cli/1.0"
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 5
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.retryBase == 0 {
		o.retryBase = time.Second
	}
	return o
}

// Source opens a dataset location for reading.
type Source interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// Open resolves location by scheme: a plain path or file:// URL is read from
// disk, http(s):// goes through the retrying HTTP source and ftp:// through
// an anonymous FTP session. The caller closes the returned reader.
func Open(ctx context.Context, location string, opts Options) (io.ReadCloser, error) {
	src, err := sourceFor(location, opts)
	if err != nil {
		return nil, err
	}
	return src.Open(ctx, location)
}

func sourceFor(location string, opts Options) (Source, error) {
	switch scheme(location) {
	case "", "file":
		return fileSource{}, nil
	case "http", "https":
		return NewHTTPSource(opts), nil
	case "ftp":
		return NewFTPSource(opts), nil
	default:
		return nil, eris.Errorf("dataset: unsupported location %q", location)
	}
}

// scheme returns the lower-cased URL scheme, or "" for plain paths.
func scheme(location string) string {
	i := strings.Index(location, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(location[:i])
}

type fileSource struct{}

func (fileSource) Open(_ context.Context, location string) (io.ReadCloser, error) {
	path := location
	if scheme(location) == "file" {
		u, err := url.Parse(location)
		if err != nil {
			return nil, eris.Wrap(err, "dataset: parse file url")
		}
		path = u.Path
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	return f, nil
}
