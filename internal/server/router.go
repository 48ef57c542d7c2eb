package server

import (
	"net/http"
	"time"

	"github.com/maruel/xbase/internal/server/handlers"
	"github.com/maruel/xbase/internal/server/ratelimit"
	"github.com/maruel/xbase/internal/storage"
)

// Options configures NewRouter.
type Options struct {
	Store  storage.BlobStore
	Bucket string
	// PublicBaseURL is the origin of public object URLs returned by uploads.
	PublicBaseURL string
	// JWTSecret enables bearer token authentication on /api/ routes.
	JWTSecret []byte
	// Limits enables rate limiting when set.
	Limits *ratelimit.Config
	// Now is used to name uploads; defaults to time.Now.
	Now func() time.Time
}

// NewRouter creates and configures the HTTP router.
func NewRouter(opts Options) http.Handler {
	mux := http.NewServeMux()
	files := &handlers.Files{Store: opts.Store, Bucket: opts.Bucket, PublicBaseURL: opts.PublicBaseURL, Now: opts.Now}

	// Health check
	mux.Handle("GET /api/health", Wrap(handlers.Health))

	// Storage proxy
	mux.HandleFunc("GET /api/files", files.Get)
	mux.Handle("GET /api/files/history", Wrap(files.History))
	mux.HandleFunc("GET /api/files/{path...}", files.GetPath)
	mux.HandleFunc("POST /api/files/update", files.Update)
	mux.HandleFunc("POST /api/upload", files.Upload)
	mux.HandleFunc("GET /storage/v1/object/public/{bucket}/{path...}", files.Public)

	// Chat history
	mux.HandleFunc("POST /api/chat-history", handlers.SaveChatHistory)

	// API schemas
	mux.Handle("GET /api/schema", Wrap(handlers.ListSchemas))
	mux.Handle("GET /api/schema/{name}", Wrap(handlers.Schema))

	var h http.Handler = mux
	if len(opts.JWTSecret) != 0 {
		h = AuthMiddleware(opts.JWTSecret)(h)
	}
	if opts.Limits != nil {
		h = ratelimit.Middleware(opts.Limits, nil)(h)
	}
	return RequestIDMiddleware(LoggingMiddleware(h))
}
