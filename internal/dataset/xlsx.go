package dataset

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX reads one sheet of an XLSX workbook as a table. An empty sheet
// name selects the first sheet.
func ReadXLSX(path, sheet string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	s, err := getSheet(f, sheet)
	if err != nil {
		return nil, err
	}

	var t *Table
	for _, row := range s.Rows {
		cells := rowToStrings(row, f.Date1904)
		if t == nil {
			t = &Table{Header: cells}
			continue
		}
		if isBlank(cells) {
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	if t == nil {
		return nil, eris.Errorf("xlsx: sheet %q is empty", s.Name)
	}
	if err := t.normalizeHeader(); err != nil {
		return nil, err
	}
	return t, nil
}

// readXLSXFrom spools r to a temp file, since tealeg/xlsx needs a path.
func readXLSXFrom(r io.Reader, sheet string) (*Table, error) {
	tmp, err := os.CreateTemp("", "dataset-*.xlsx")
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return nil, eris.Wrap(err, "xlsx: spool download")
	}
	if err := tmp.Close(); err != nil {
		return nil, eris.Wrap(err, "xlsx: close temp file")
	}
	return ReadXLSX(tmpPath, sheet)
}

// WriteXLSX saves t as a single-sheet workbook. Cells that parse as numbers
// are stored as numbers.
func WriteXLSX(path string, t *Table, sheet string) error {
	if sheet == "" {
		sheet = "data"
	}
	f := xlsx.NewFile()
	s, err := f.AddSheet(sheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := s.AddRow()
	for _, name := range t.Header {
		header.AddCell().SetString(name)
	}
	for _, r := range t.Rows {
		row := s.AddRow()
		for _, v := range r {
			cell := row.AddCell()
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				cell.SetFloat(n)
			} else {
				cell.SetString(v)
			}
		}
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		s, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return s, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

// xlsxTimeLayout is one of the layouts features.ParseTimestamp accepts.
const xlsxTimeLayout = "2006-01-02 15:04:05"

// rowToStrings renders a row's cells. Date-formatted cells hold an Excel
// serial number and are rendered as timestamps, not their display form.
func rowToStrings(row *xlsx.Row, date1904 bool) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell.IsTime() {
			if t, err := cell.GetTime(date1904); err == nil {
				cells[j] = t.Round(time.Second).UTC().Format(xlsxTimeLayout)
				continue
			}
		}
		cells[j] = cell.String()
	}
	return cells
}
