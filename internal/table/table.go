// Package table holds the tabular content of a stored file: an ordered list of
// column names and rows keyed by column name.
//
// CSV files are parsed with the first line as the header row. Any other file
// is presented as a single "Content" column holding the raw text.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// ContentColumn is the single column used to present non-CSV files.
const ContentColumn = "Content"

// Row maps a column name to its textual cell value.
type Row map[string]string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is the parsed content of a file.
//
// Every row exposes exactly the keys in Headers. Header order determines
// serialization column order.
type Table struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// IsCSV reports whether name designates a CSV file.
func IsCSV(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".csv")
}

// Load builds the table for a file named name whose content is text.
func Load(name, text string) (*Table, error) {
	if !IsCSV(name) {
		return Raw(text), nil
	}
	return Parse(text)
}

// Raw wraps arbitrary text as a one column, one row table.
func Raw(text string) *Table {
	return &Table{
		Headers: []string{ContentColumn},
		Rows:    []Row{{ContentColumn: text}},
	}
}

// Parse parses CSV text. The first record is the header row. Missing trailing
// cells become empty strings and cells past the last header are dropped.
// Blank lines are skipped. Duplicate header names are suffixed with _1, _2...
func Parse(text string) (*Table, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	t := &Table{Headers: []string{}, Rows: []Row{}}
	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse header row: %w", err)
	}
	t.Headers = dedupHeaders(first)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse row %d: %w", len(t.Rows)+1, err)
		}
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

func dedupHeaders(in []string) []string {
	out := make([]string, len(in))
	used := make(map[string]bool, len(in))
	for i, h := range in {
		name := h
		for n := 1; used[name]; n++ {
			name = h + "_" + strconv.Itoa(n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// Columns returns the non-empty column names, in header order.
func (t *Table) Columns() []string {
	out := make([]string, 0, len(t.Headers))
	for _, h := range t.Headers {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

// CloneRows returns a deep copy of the rows.
func (t *Table) CloneRows() []Row {
	return CloneRows(t.Rows)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	return &Table{Headers: slices.Clone(t.Headers), Rows: CloneRows(t.Rows)}
}

// CloneRows returns a deep copy of rows.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// Normalize returns rows restricted to headers, with missing cells set to "".
func Normalize(headers []string, rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		n := make(Row, len(headers))
		for _, h := range headers {
			n[h] = r[h]
		}
		out[i] = n
	}
	return out
}

// String returns the CSV serialization of the table.
func (t *Table) String() string {
	return Serialize(t.Headers, t.Rows)
}

// Serialize renders headers and rows as CSV text. Rows are newline separated
// and the output has no trailing newline.
func Serialize(headers []string, rows []Row) string {
	var buf bytes.Buffer
	writeRecord(&buf, headers)
	fields := make([]string, len(headers))
	for _, r := range rows {
		buf.WriteByte('\n')
		for i, h := range headers {
			fields[i] = r[h]
		}
		if len(fields) == 1 && fields[0] == "" {
			// A bare empty line would be skipped on parse.
			buf.WriteString(`""`)
			continue
		}
		writeRecord(&buf, fields)
	}
	return buf.String()
}

func writeRecord(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(QuoteField(f))
	}
}

// QuoteField quotes s when it contains a comma, a double quote or a newline,
// doubling embedded quotes. Other values are returned unchanged.
func QuoteField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
