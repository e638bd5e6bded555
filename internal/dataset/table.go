package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/demand-forecast/internal/features"
)

// Table is a header plus string rows, as read from CSV or XLSX.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the named column.
func (t *Table) Column(name string) (int, bool) {
	for i, h := range t.Header {
		if h == name {
			return i, true
		}
	}
	return 0, false
}

// Records converts each row to a raw record keyed by column name. Cells that
// parse as finite numbers become float64, other cells stay strings, and empty
// cells are left out so they read as missing fields.
func (t *Table) Records() []features.RawRecord {
	out := make([]features.RawRecord, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(features.RawRecord, len(t.Header))
		for j, name := range t.Header {
			if j >= len(row) {
				break
			}
			if v, ok := cellValue(row[j]); ok {
				rec[name] = v
			}
		}
		out[i] = rec
	}
	return out
}

func cellValue(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f, true
	}
	return s, true
}

// normalizeHeader trims header names, drops a UTF-8 BOM and rejects
// duplicate or empty column names.
func (t *Table) normalizeHeader() error {
	seen := make(map[string]bool, len(t.Header))
	for i, h := range t.Header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if h == "" {
			return eris.Errorf("dataset: column %d has no name", i+1)
		}
		if seen[h] {
			return eris.Errorf("dataset: duplicate column %q", h)
		}
		seen[h] = true
		t.Header[i] = h
	}
	return nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
