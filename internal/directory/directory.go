// Package directory is a client for the folder/file directory service.
//
// Responses are decoded leniently: identifiers may be strings or numbers, and
// listings may be a bare array or an object wrapping it.
package directory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/maruel/xbase/internal/apiclient"
	"github.com/maruel/xbase/internal/models"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"golang.org/x/sync/errgroup"
)

// Client is a directory service client.
type Client struct {
	api *apiclient.Client
}

// New returns a directory service client using api for transport.
func New(api *apiclient.Client) *Client {
	return &Client{api: api}
}

// Listing is the content of a folder.
type Listing struct {
	Folders []models.Folder
	Files   []models.FileRef
}

var (
	rootIDPaths = []jp.Expr{jp.MustParseString("$.root_id"), jp.MustParseString("$.user_root_id"), jp.MustParseString("$.id")}
	foldersPath = jp.MustParseString("$.folders")
	filesPath   = jp.MustParseString("$.files")
	columnsPath = jp.MustParseString("$.columns")
)

// Root resolves the root folder identifier of a user.
func (c *Client) Root(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", &apiclient.InputError{Message: "missing user id"}
	}
	doc, err := c.post(ctx, "/root", map[string]string{"user_id": userID})
	if err != nil {
		return "", err
	}
	for _, x := range rootIDPaths {
		if id := first(x, doc); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("no root id in /root response for user %q", userID)
}

// Folders lists the sub-folders of folder id.
func (c *Client) Folders(ctx context.Context, id string) ([]models.Folder, error) {
	items, err := c.list(ctx, "/folders", id, foldersPath)
	if err != nil {
		return nil, err
	}
	out := make([]models.Folder, 0, len(items))
	for _, m := range items {
		out = append(out, models.Folder{
			ID:        str(m["id"]),
			Name:      str(m["name"]),
			ParentID:  str(m["parent_id"]),
			CreatedAt: date(m["created_at"]),
		})
	}
	return out, nil
}

// Files lists the files of folder id.
func (c *Client) Files(ctx context.Context, id string) ([]models.FileRef, error) {
	items, err := c.list(ctx, "/files", id, filesPath)
	if err != nil {
		return nil, err
	}
	out := make([]models.FileRef, 0, len(items))
	for _, m := range items {
		out = append(out, models.FileRef{
			ID:        str(m["id"]),
			Name:      str(m["name"]),
			BucketURL: str(m["bucket_url"]),
			ParentID:  str(m["parent_id"]),
			CreatedAt: date(m["created_at"]),
		})
	}
	return out, nil
}

// List fetches the folders and files of folder id concurrently. Either
// failure fails the listing.
func (c *Client) List(ctx context.Context, id string) (*Listing, error) {
	l := &Listing{}
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		l.Folders, err = c.Folders(ctx, id)
		return err
	})
	eg.Go(func() error {
		var err error
		l.Files, err = c.Files(ctx, id)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return l, nil
}

// Columns returns the columns of a table described by a schema item.
func (c *Client) Columns(ctx context.Context, parentID, tableName string) ([]string, error) {
	if tableName == "" {
		return nil, &apiclient.InputError{Message: "missing table name"}
	}
	doc, err := c.post(ctx, "/getColumns", map[string]string{"parent_id": parentID, "table_name": tableName})
	if err != nil {
		return nil, err
	}
	var cols []string
	for _, v := range columnsPath.Get(doc) {
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		for _, c := range arr {
			if s := str(c); s != "" {
				cols = append(cols, s)
			}
		}
	}
	return cols, nil
}

func (c *Client) list(ctx context.Context, path, id string, wrapped jp.Expr) ([]map[string]any, error) {
	if id == "" {
		return nil, &apiclient.InputError{Message: "missing folder id"}
	}
	doc, err := c.post(ctx, path, map[string]string{"current_folder_id": id})
	if err != nil {
		return nil, err
	}
	arr, ok := doc.([]any)
	if !ok {
		if res := wrapped.Get(doc); len(res) != 0 {
			arr, _ = res[0].([]any)
		}
	}
	out := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in any) (any, error) {
	body, err := c.api.PostJSON(ctx, path, in)
	if err != nil {
		return nil, err
	}
	doc, err := oj.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return doc, nil
}

func first(x jp.Expr, doc any) string {
	for _, v := range x.Get(doc) {
		if s := str(v); s != "" {
			return s
		}
	}
	return ""
}

// str renders a scalar JSON value as a string.
func str(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func date(v any) time.Time {
	s := str(v)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Kind classifies a directory item.
type Kind int

// Item kinds.
const (
	KindOther Kind = iota
	KindCSV
	KindSchema
)

func (k Kind) String() string {
	switch k {
	case KindCSV:
		return "csv"
	case KindSchema:
		return "schema"
	default:
		return "file"
	}
}

// Classify returns the kind of f: CSV by name suffix, schema when its
// locator mentions "schema".
func Classify(f models.FileRef) Kind {
	if strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
		return KindCSV
	}
	if strings.Contains(strings.ToLower(f.BucketURL), "schema") {
		return KindSchema
	}
	return KindOther
}

// TableName returns the table a schema item refers to: the text after "|>"
// in its locator.
func TableName(f models.FileRef) string {
	_, after, ok := strings.Cut(f.BucketURL, "|>")
	if !ok {
		return ""
	}
	if i := strings.Index(after, "|>"); i >= 0 {
		after = after[:i]
	}
	return strings.TrimSpace(after)
}
