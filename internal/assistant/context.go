package assistant

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/maruel/xbase/internal/directory"
	"github.com/maruel/xbase/internal/models"
	"github.com/maruel/xbase/internal/table"
)

// Context is the metadata sent along a question: one line per selected file
// listing its columns.
type Context struct {
	names []string
	lines []string
}

// Line formats the context line of a file.
func Line(name string, columns []string) string {
	return name + " columns: " + strings.Join(columns, ", ")
}

// Add records the columns of the file name. Adding a name again replaces its
// line.
func (c *Context) Add(name string, columns []string) {
	c.dropLines(name)
	c.lines = append(c.lines, Line(name, columns))
	if !slices.Contains(c.names, name) {
		c.names = append(c.names, name)
	}
}

// Remove drops name and every line starting with "<name> ".
func (c *Context) Remove(name string) {
	c.names = slices.DeleteFunc(c.names, func(n string) bool { return n == name })
	c.dropLines(name)
}

func (c *Context) dropLines(name string) {
	c.lines = slices.DeleteFunc(c.lines, func(l string) bool { return strings.HasPrefix(l, name+" ") })
}

// Names returns the file names in the context, in insertion order.
func (c *Context) Names() []string {
	return slices.Clone(c.names)
}

// DBInfo returns the newline-joined context lines.
func (c *Context) DBInfo() string {
	return strings.Join(c.lines, "\n")
}

// Reader reads stored objects through the proxy.
type Reader interface {
	Read(ctx context.Context, loc string) (string, error)
}

// ColumnLister returns the columns of a schema table.
type ColumnLister interface {
	Columns(ctx context.Context, parentID, tableName string) ([]string, error)
}

// Resolver finds the columns of directory items.
type Resolver struct {
	Proxy  Reader
	Schema ColumnLister
}

// Columns returns the columns of f: the header row of a CSV file or the
// columns of the table a schema item names.
func (r *Resolver) Columns(ctx context.Context, f models.FileRef) ([]string, error) {
	switch directory.Classify(f) {
	case directory.KindCSV:
		text, err := r.Proxy.Read(ctx, f.BucketURL)
		if err != nil {
			return nil, err
		}
		tbl, err := table.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
		}
		return tbl.Columns(), nil
	case directory.KindSchema:
		if r.Schema == nil {
			return nil, fmt.Errorf("%s: no directory service configured", f.Name)
		}
		return r.Schema.Columns(ctx, f.ParentID, directory.TableName(f))
	default:
		return nil, fmt.Errorf("%s is neither a CSV file nor a schema item", f.Name)
	}
}

// AddFile resolves the columns of f and adds them to c.
func (r *Resolver) AddFile(ctx context.Context, c *Context, f models.FileRef) error {
	cols, err := r.Columns(ctx, f)
	if err != nil {
		return err
	}
	c.Add(f.Name, cols)
	return nil
}
