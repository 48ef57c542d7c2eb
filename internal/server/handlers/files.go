package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/maruel/xbase/internal/errors"
	"github.com/maruel/xbase/internal/locator"
	"github.com/maruel/xbase/internal/models"
	"github.com/maruel/xbase/internal/storage"
	"github.com/maruel/xbase/internal/utils"
)

const maxUpload = 32 << 20

// Files serves the storage proxy: object reads, CSV update-or-create,
// uploads and revision history.
type Files struct {
	Store  storage.BlobStore
	Bucket string
	// PublicBaseURL is the origin of public object URLs; empty uses the
	// request's origin.
	PublicBaseURL string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Plain-text messages of the read endpoint.
const (
	msgMissingURL     = "Missing url param"
	msgInvalidURL     = "Invalid public URL structure"
	msgBucketMismatch = "Bucket mismatch"
	msgDownloadFailed = "Download failed"
)

// resolve returns the object path designated by a locator, or the plain-text
// message of a 400 response.
func (h *Files) resolve(loc string) (string, string) {
	l, err := locator.Parse(loc)
	if err != nil {
		return "", msgInvalidURL
	}
	if err := l.CheckBucket(h.Bucket); err != nil {
		return "", msgBucketMismatch
	}
	p, err := storage.CleanPath(l.Path)
	if err != nil {
		return "", msgInvalidURL
	}
	return p, ""
}

// Get serves GET /api/files?url=<locator>.
func (h *Files) Get(w http.ResponseWriter, r *http.Request) {
	loc := r.URL.Query().Get("url")
	if loc == "" {
		http.Error(w, msgMissingURL, http.StatusBadRequest)
		return
	}
	h.serve(w, r, loc)
}

// GetPath serves GET /api/files/{path...} with a bucket-relative path.
func (h *Files) GetPath(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, r.PathValue("path"))
}

// Public serves GET /storage/v1/object/public/{bucket}/{path...}, the public
// URLs returned by uploads.
func (h *Files) Public(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("bucket") != h.Bucket {
		http.Error(w, msgBucketMismatch, http.StatusBadRequest)
		return
	}
	h.serve(w, r, r.PathValue("path"))
}

func (h *Files) serve(w http.ResponseWriter, r *http.Request, loc string) {
	ctx := r.Context()
	p, msg := h.resolve(loc)
	if msg != "" {
		slog.InfoContext(ctx, "proxy", "msg", "rejected locator", "url", loc, "reason", msg)
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	slog.DebugContext(ctx, "proxy", "msg", "download", "bucket", h.Bucket, "path", p)
	data, err := h.Store.Get(ctx, h.Bucket, p)
	if err != nil {
		slog.ErrorContext(ctx, "proxy", "msg", "download failed", "path", p, "err", err)
		msg := msgDownloadFailed
		var se *storage.Error
		if errors.As(err, &se) && se.Message != "" {
			msg = se.Message
		}
		http.Error(w, msg, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", storage.ContentType(p))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// Update serves POST /api/files/update: a multipart form with the fields
// file, user_root_id and file_name. The object <user_root_id>/<file_name> is
// updated in place or created.
func (h *Files) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Missing fields", string(apierrors.ErrMissingField))
		return
	}
	owner := r.FormValue("user_root_id")
	name := r.FormValue("file_name")
	f, _, err := r.FormFile("file")
	if err != nil || owner == "" || name == "" {
		utils.RespondError(w, http.StatusBadRequest, "Missing fields", string(apierrors.ErrMissingField))
		return
	}
	defer func() { _ = f.Close() }()
	p, err := storage.CleanPath(owner + "/" + name)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid path", string(apierrors.ErrValidationFailed))
		return
	}
	data, err := io.ReadAll(f)
	if err != nil {
		utils.RespondAPIError(w, r, apierrors.InternalWithError("Failed to read file", err))
		return
	}
	if err := storage.Upsert(ctx, h.Store, h.Bucket, p, data, "text/csv"); err != nil {
		utils.RespondAPIError(w, r, apierrors.Storage(err))
		return
	}
	slog.InfoContext(ctx, "proxy", "msg", "updated", "path", p, "size", len(data))
	utils.RespondJSON(w, http.StatusOK, models.UpdateResponse{Message: "CSV file updated successfully", Path: p})
}

// Upload serves POST /api/upload: a multipart form with a file field, stored
// under uploads/ without overwriting.
func (h *Files) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "No file provided", string(apierrors.ErrMissingField))
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "No file provided", string(apierrors.ErrMissingField))
		return
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		utils.RespondAPIError(w, r, apierrors.InternalWithError("Failed to read file", err))
		return
	}
	p := "uploads/" + strconv.FormatInt(h.now().UnixMilli(), 10) + "_" + uploadName(hdr.Filename)
	ct := hdr.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	if err := h.Store.Create(ctx, h.Bucket, p, data, ct); err != nil {
		if errors.Is(err, storage.ErrExists) {
			utils.RespondAPIError(w, r, apierrors.Conflict(err))
			return
		}
		utils.RespondAPIError(w, r, apierrors.Storage(err))
		return
	}
	utils.RespondJSON(w, http.StatusOK, models.UploadResponse{Path: p, URL: locator.PublicURL(h.origin(r), h.Bucket, p)})
}

// HistoryRequest is the query of GET /api/files/history.
type HistoryRequest struct {
	URL   string `query:"url"`
	Limit int    `query:"limit"`
}

// History lists the stored revisions of an object.
func (h *Files) History(ctx context.Context, req HistoryRequest) (*models.HistoryResponse, error) {
	if req.URL == "" {
		return nil, apierrors.MissingField("url")
	}
	p, msg := h.resolve(req.URL)
	if msg == msgBucketMismatch {
		return nil, apierrors.BucketMismatch(msg)
	}
	if msg != "" {
		return nil, apierrors.InvalidLocator(msg)
	}
	revs, err := h.Store.History(ctx, h.Bucket, p, req.Limit)
	if err != nil {
		if errors.Is(err, storage.ErrNoHistory) {
			return nil, apierrors.NotImplemented("revision history")
		}
		return nil, apierrors.Storage(err)
	}
	if revs == nil {
		revs = []models.Revision{}
	}
	return &models.HistoryResponse{Path: p, Revisions: revs}, nil
}

func (h *Files) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Files) origin(r *http.Request) string {
	if h.PublicBaseURL != "" {
		return h.PublicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// uploadName reduces a client supplied file name to a safe single segment.
func uploadName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "/" {
		return "file"
	}
	return name
}
