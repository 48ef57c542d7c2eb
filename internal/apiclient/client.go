// Package apiclient talks to the xbase storage proxy: reading objects,
// update-or-create writes, uploads, revision history and chat history.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maruel/xbase/internal/models"
	"golang.org/x/oauth2"
)

// maxBody bounds the size of a response body read in memory.
const maxBody = 64 << 20

// ErrTooLarge is wrapped in a TransportError when a response body exceeds the
// read limit. A truncated object is never returned.
var ErrTooLarge = errors.New("response too large")

// Client is a storage proxy client. It is safe for concurrent use.
type Client struct {
	baseURL string
	hc      *http.Client
	maxBody int64
}

// New returns a client for the proxy at baseURL. A nil hc uses a client with
// a 30s timeout.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), hc: hc, maxBody: maxBody}
}

// NewWithToken returns a client sending token as a bearer token.
func NewWithToken(ctx context.Context, baseURL, token string) *Client {
	if token == "" {
		return New(baseURL, nil)
	}
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	hc.Timeout = 30 * time.Second
	return New(baseURL, hc)
}

// BaseURL returns the proxy base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Read fetches the raw text of the object designated by loc, a public URL or
// a bucket-relative path.
func (c *Client) Read(ctx context.Context, loc string) (string, error) {
	if strings.TrimSpace(loc) == "" {
		return "", &InputError{Message: "missing storage locator"}
	}
	body, err := c.do(ctx, http.MethodGet, "/api/files?url="+url.QueryEscape(loc), "", nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Update writes content to "<owner>/<fileName>", replacing the object or
// creating it.
func (c *Client) Update(ctx context.Context, owner, fileName string, content []byte) (*models.UpdateResponse, error) {
	if owner == "" || fileName == "" {
		return nil, &InputError{Message: "missing owner or file name"}
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := writeFilePart(mw, fileName, "text/csv", content); err != nil {
		return nil, err
	}
	_ = mw.WriteField("user_root_id", owner)
	_ = mw.WriteField("file_name", fileName)
	if err := mw.Close(); err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, "/api/files/update", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	out := &models.UpdateResponse{}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("failed to decode update response: %w", err)
	}
	return out, nil
}

// Upload stores a new object under the uploads prefix.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (*models.UploadResponse, error) {
	if name == "" {
		return nil, &InputError{Message: "missing file name"}
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := writeFilePart(mw, name, "application/octet-stream", content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, "/api/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	out := &models.UploadResponse{}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return out, nil
}

// History lists the stored revisions of the object designated by loc, most
// recent first. limit <= 0 uses the server default.
func (c *Client) History(ctx context.Context, loc string, limit int) (*models.HistoryResponse, error) {
	if strings.TrimSpace(loc) == "" {
		return nil, &InputError{Message: "missing storage locator"}
	}
	q := url.Values{"url": {loc}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.do(ctx, http.MethodGet, "/api/files/history?"+q.Encode(), "", nil)
	if err != nil {
		return nil, err
	}
	out := &models.HistoryResponse{}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("failed to decode history response: %w", err)
	}
	return out, nil
}

// SaveHistory stores the AI conversation history server side.
func (c *Client) SaveHistory(ctx context.Context, history []string) error {
	if history == nil {
		history = []string{}
	}
	_, err := c.PostJSON(ctx, "/api/chat-history", models.ChatHistoryRequest{History: history})
	return err
}

// PostJSON posts in, encoded as JSON, to path and returns the response body.
func (c *Client) PostJSON(ctx context.Context, path string, in any) ([]byte, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, &InputError{Message: fmt.Sprintf("failed to encode request: %v", err)}
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(data))
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &InputError{Message: fmt.Sprintf("invalid request: %v", err)}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "apiclient", "method", method, "path", path, "err", err)
		return nil, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if int64(len(data)) > c.maxBody {
		return nil, &TransportError{Err: fmt.Errorf("%w: %s %s exceeds %d bytes", ErrTooLarge, method, path, c.maxBody)}
	}
	slog.DebugContext(ctx, "apiclient", "method", method, "path", path, "status", resp.StatusCode, "dur", time.Since(start).Round(time.Millisecond))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: upstreamMessage(data)}
	}
	return data, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFilePart(mw *multipart.Writer, name, contentType string, content []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(name)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(content)
	return err
}
