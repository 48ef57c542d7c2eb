// Package render formats tables, listings and diffs for the terminal.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/maruel/xbase/internal/directory"
	"github.com/maruel/xbase/internal/models"
	"github.com/maruel/xbase/internal/session"
	"github.com/maruel/xbase/internal/table"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	oddStyle      = cellStyle.Foreground(lipgloss.Color("245"))
	activeStyle   = cellStyle.Reverse(true)
	changedStyle  = cellStyle.Foreground(lipgloss.Color("11"))
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	addedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	removedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	defaultMaxLen = 40
)

// Options controls table rendering.
type Options struct {
	// Active highlights a cell.
	Active *session.Cell
	// Committed, when set, highlights cells whose value differs from it.
	Committed []table.Row
	// MaxCell truncates cell values; 0 uses 40, negative disables.
	MaxCell int
}

// Table renders headers and rows as a bordered table with a leading row
// number column.
func Table(headers []string, rows []table.Row, opts Options) string {
	maxCell := opts.MaxCell
	if maxCell == 0 {
		maxCell = defaultMaxLen
	}
	hdr := append([]string{"#"}, headers...)
	data := make([][]string, len(rows))
	for i, r := range rows {
		line := make([]string, 0, len(hdr))
		line = append(line, strconv.Itoa(i))
		for _, h := range headers {
			line = append(line, truncate(r[h], maxCell))
		}
		data[i] = line
	}
	t := ltable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(hdr...).
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			if col > 0 && row < len(rows) {
				name := headers[col-1]
				if a := opts.Active; a != nil && a.Row == row && a.Column == name {
					return activeStyle
				}
				if row < len(opts.Committed) && opts.Committed[row][name] != rows[row][name] {
					return changedStyle
				}
			}
			if row%2 == 1 {
				return oddStyle
			}
			return cellStyle
		})
	return t.String()
}

// Contents renders a loaded table.
func Contents(t *table.Table) string {
	return Table(t.Headers, t.Rows, Options{})
}

// State renders the buffer of a session state, highlighting the active cell
// and pending changes.
func State(st session.State) string {
	if st.Committed == nil {
		return dimStyle.Render("(" + st.Status.String() + ")")
	}
	return Table(st.Committed.Headers, st.Buffer, Options{Active: st.Active, Committed: st.Committed.Rows})
}

// Diff renders added and removed lines; context lines are dimmed.
func Diff(lines []session.Line) string {
	var b strings.Builder
	for _, l := range lines {
		switch l.Type {
		case session.LineAdded:
			b.WriteString(addedStyle.Render(fmt.Sprintf("+%4d %s", l.NewLine, l.Text)))
		case session.LineRemoved:
			b.WriteString(removedStyle.Render(fmt.Sprintf("-%4d %s", l.OldLine, l.Text)))
		default:
			b.WriteString(dimStyle.Render(fmt.Sprintf(" %4d %s", l.NewLine, l.Text)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Listing renders the content of a folder.
func Listing(l *directory.Listing) string {
	rows := make([][]string, 0, len(l.Folders)+len(l.Files))
	for _, f := range l.Folders {
		rows = append(rows, []string{"dir", f.Name, f.ID, ""})
	}
	for _, f := range l.Files {
		rows = append(rows, []string{directory.Classify(f).String(), f.Name, f.ID, f.BucketURL})
	}
	return ltable.New().
		Border(lipgloss.HiddenBorder()).
		Headers("KIND", "NAME", "ID", "LOCATOR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

// Revisions renders a revision history.
func Revisions(revs []models.Revision) string {
	rows := make([][]string, len(revs))
	for i, r := range revs {
		h := r.Hash
		if len(h) > 10 {
			h = h[:10]
		}
		rows[i] = []string{h, r.Date.Local().Format("2006-01-02 15:04:05"), r.Author, r.Message}
	}
	return ltable.New().
		Border(lipgloss.HiddenBorder()).
		Headers("HASH", "DATE", "AUTHOR", "MESSAGE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", "⏎")
	if n < 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
