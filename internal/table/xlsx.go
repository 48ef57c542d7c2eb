package table

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet name used by WriteXLSX when none is given.
const DefaultSheet = "Sheet1"

// WriteXLSX writes the table as a single sheet workbook. The first row holds
// the headers. Cells are written as strings so values round-trip verbatim.
func (t *Table) WriteXLSX(w io.Writer, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}
	for c, h := range t.Headers {
		if err := setCell(f, sheet, c, 0, h); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for c, h := range t.Headers {
			if err := setCell(f, sheet, c, r+1, row[h]); err != nil {
				return err
			}
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ReadXLSX reads the first sheet of a workbook written by WriteXLSX.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Table{Headers: []string{}, Rows: []Row{}}, nil
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	t := &Table{Headers: []string{}, Rows: []Row{}}
	if len(records) == 0 {
		return t, nil
	}
	t.Headers = dedupHeaders(records[0])
	for _, rec := range records[1:] {
		row := make(Row, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func setCell(f *excelize.File, sheet string, col, row int, v string) error {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return err
	}
	if err := f.SetCellStr(sheet, name, v); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	return nil
}
