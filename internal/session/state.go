// Package session holds the state of one file view: the committed table, the
// edit buffer and the active cell, plus the controller that loads and saves
// it.
//
// State is a value. The update functions in this file never mutate their
// input and never share row maps between the committed table and the buffer,
// so a State obtained earlier stays valid after later updates.
package session

import (
	"errors"
	"fmt"
	"slices"

	"github.com/maruel/xbase/internal/models"
	"github.com/maruel/xbase/internal/table"
)

var (
	// ErrStale is returned for a load or save result whose file is no longer
	// the current one.
	ErrStale = errors.New("result for a file that is no longer open")
	// ErrNoActiveCell is returned when setting a value without an active cell.
	ErrNoActiveCell = errors.New("no active cell")
	// ErrNotLoaded is returned when editing or saving before content loaded.
	ErrNotLoaded = errors.New("content not loaded")
)

// Status is the load status of a file view.
type Status int

// Load statuses.
const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Cell identifies a cell by row index and column name.
type Cell struct {
	Row    int
	Column string
}

func (c Cell) String() string {
	return fmt.Sprintf("%d:%s", c.Row, c.Column)
}

// State is the state of one file view.
type State struct {
	File models.FileRef
	// Gen identifies the file selection this state belongs to.
	Gen     uint64
	Status  Status
	LoadErr error

	// Committed is the last loaded or saved content.
	Committed *table.Table
	// Buffer is the working copy of Committed.Rows.
	Buffer []table.Row
	// Active is the cell being edited, if any.
	Active  *Cell
	Editing bool
	SaveErr error
}

// Loaded returns s with content loaded from tbl. The buffer starts as a copy
// of the committed rows.
func Loaded(s State, tbl *table.Table) State {
	s.Status = StatusReady
	s.LoadErr = nil
	s.Committed = tbl.Clone()
	s.Buffer = tbl.CloneRows()
	s.Active = nil
	s.Editing = false
	s.SaveErr = nil
	return s
}

// Failed returns s in the failed state.
func Failed(s State, err error) State {
	s.Status = StatusFailed
	s.LoadErr = err
	s.Committed = nil
	s.Buffer = nil
	s.Active = nil
	s.Editing = false
	return s
}

// BeginEdit enters edit mode.
func BeginEdit(s State) (State, error) {
	if s.Status != StatusReady {
		return s, ErrNotLoaded
	}
	s.Editing = true
	return s, nil
}

// Activate makes c the active cell, entering edit mode. A previously active
// cell is deactivated; its value is already in the buffer.
func Activate(s State, c Cell) (State, error) {
	if s.Status != StatusReady {
		return s, ErrNotLoaded
	}
	if c.Row < 0 || c.Row >= len(s.Buffer) {
		return s, fmt.Errorf("row %d out of range [0, %d)", c.Row, len(s.Buffer))
	}
	if !slices.Contains(s.Committed.Headers, c.Column) {
		return s, fmt.Errorf("unknown column %q", c.Column)
	}
	s.Active = &Cell{Row: c.Row, Column: c.Column}
	s.Editing = true
	return s, nil
}

// SetCell writes v into the active cell of the buffer. No other cell changes.
func SetCell(s State, v string) (State, error) {
	if s.Active == nil {
		return s, ErrNoActiveCell
	}
	buf := slices.Clone(s.Buffer)
	row := buf[s.Active.Row].Clone()
	row[s.Active.Column] = v
	buf[s.Active.Row] = row
	s.Buffer = buf
	return s, nil
}

// Value returns the buffered value of the active cell.
func Value(s State) (string, bool) {
	if s.Active == nil {
		return "", false
	}
	return s.Buffer[s.Active.Row][s.Active.Column], true
}

// Deactivate clears the active cell. Buffered values are kept.
func Deactivate(s State) State {
	s.Active = nil
	return s
}

// Cancel discards every pending edit: the buffer is reset to the committed
// rows, the active cell is cleared and edit mode is left.
func Cancel(s State) State {
	if s.Committed != nil {
		s.Buffer = s.Committed.CloneRows()
	}
	s.Active = nil
	s.Editing = false
	s.SaveErr = nil
	return s
}

// Saved returns s after rows were persisted: rows become the committed
// content, the active cell is cleared and edit mode is left. The buffer is
// kept so edits made while the save was in flight survive.
func Saved(s State, rows []table.Row) State {
	s.Committed = &table.Table{Headers: slices.Clone(s.Committed.Headers), Rows: table.CloneRows(rows)}
	s.Active = nil
	s.Editing = false
	s.SaveErr = nil
	return s
}

// SaveFailed records a failed save. Everything else is left unchanged.
func SaveFailed(s State, err error) State {
	s.SaveErr = err
	return s
}

// Dirty reports whether the buffer differs from the committed rows.
func Dirty(s State) bool {
	if s.Committed == nil {
		return false
	}
	return Text(s) != s.Committed.String()
}

// Text returns the CSV serialization of the buffer.
func Text(s State) string {
	if s.Committed == nil {
		return ""
	}
	return table.Serialize(s.Committed.Headers, s.Buffer)
}
