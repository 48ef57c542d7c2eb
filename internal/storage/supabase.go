package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maruel/xbase/internal/models"
	"golang.org/x/oauth2"
)

// SupabaseStore stores objects in Supabase Storage through its REST API.
type SupabaseStore struct {
	baseURL string
	hc      *http.Client
}

// NewSupabaseStore returns a store for the project at baseURL, e.g.
// "https://xyz.supabase.co", authenticating with the service key.
func NewSupabaseStore(ctx context.Context, baseURL, key string) *SupabaseStore {
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: key, TokenType: "Bearer"}))
	hc.Transport = &apiKeyTransport{key: key, next: hc.Transport}
	hc.Timeout = time.Minute
	return &SupabaseStore{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

type apiKeyTransport struct {
	key  string
	next http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("apikey", t.key)
	return t.next.RoundTrip(r)
}

func (s *SupabaseStore) objectURL(bucket, p string) (string, error) {
	c, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	segs := strings.Split(c, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/storage/v1/object/" + url.PathEscape(bucket) + "/" + strings.Join(segs, "/"), nil
}

// Get implements BlobStore.
func (s *SupabaseStore) Get(ctx context.Context, bucket, p string) ([]byte, error) {
	u, err := s.objectURL(bucket, p)
	if err != nil {
		return nil, err
	}
	return s.do(ctx, http.MethodGet, u, "", nil, nil)
}

// Update implements BlobStore.
func (s *SupabaseStore) Update(ctx context.Context, bucket, p string, data []byte, contentType string) error {
	u, err := s.objectURL(bucket, p)
	if err != nil {
		return err
	}
	_, err = s.do(ctx, http.MethodPut, u, contentType, data, nil)
	return err
}

// Create implements BlobStore.
func (s *SupabaseStore) Create(ctx context.Context, bucket, p string, data []byte, contentType string) error {
	u, err := s.objectURL(bucket, p)
	if err != nil {
		return err
	}
	_, err = s.do(ctx, http.MethodPost, u, contentType, data, http.Header{"X-Upsert": {"false"}})
	return err
}

// History implements BlobStore. Supabase keeps no revisions.
func (s *SupabaseStore) History(ctx context.Context, bucket, p string, limit int) ([]models.Revision, error) {
	return nil, ErrNoHistory
}

func (s *SupabaseStore) do(ctx context.Context, method, u, contentType string, data []byte, hdr http.Header) ([]byte, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage response: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return b, nil
	}
	return nil, supabaseError(resp.StatusCode, b)
}

// supabaseError decodes a Supabase Storage error body:
// {"statusCode":"404","error":"not_found","message":"Object not found"}.
// The status code in the body takes precedence over the HTTP status.
func supabaseError(status int, body []byte) error {
	var e struct {
		StatusCode json.RawMessage `json:"statusCode"`
		Error      string          `json:"error"`
		Message    string          `json:"message"`
	}
	out := &Error{StatusCode: status}
	if json.Unmarshal(body, &e) == nil {
		if n, err := strconv.Atoi(strings.Trim(string(e.StatusCode), `"`)); err == nil {
			out.StatusCode = n
		}
		out.Message = e.Message
		if out.Message == "" {
			out.Message = e.Error
		}
	} else {
		out.Message = strings.TrimSpace(string(body))
	}
	switch out.StatusCode {
	case http.StatusNotFound:
		out.Err = ErrNotFound
	case http.StatusConflict:
		out.Err = ErrExists
	}
	return out
}
