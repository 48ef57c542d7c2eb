// Package main is the entry point for the xbase storage proxy.
//
// xbase-server serves CSV objects of one storage bucket over HTTP: reads via
// /api/files, update-or-create via /api/files/update, uploads, revision
// history and the chat history cookie. Objects live either on the local disk,
// versioned with git, or in a Supabase storage bucket. Configuration is read
// from CLI flags, a .env file in the data directory (for secrets) and
// server.yaml (for bucket, quotas and cache).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/maruel/xbase/internal/server"
	"github.com/maruel/xbase/internal/server/ratelimit"
	"github.com/maruel/xbase/internal/storage"
	"github.com/maruel/xbase/internal/utils"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "xbase-server: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on (e.g., localhost:8080, :8080, 0.0.0.0:8080)")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	configPath := flag.String("config", "", "Server config file (default <data-dir>/server.yaml)")
	backend := flag.String("backend", "file", "Storage backend: file or supabase")
	bucket := flag.String("bucket", "", "Bucket to serve (overrides server.yaml)")
	publicURL := flag.String("public-url", "", "Origin of public object URLs (default: the request's origin)")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	slog.SetDefault(utils.NewLogger(os.Stderr, ll))

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: data directory
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	env, err := loadDotEnv(*dataDir)
	if err != nil {
		return err
	}

	// .env values apply unless the flag was explicitly set.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	for name, e := range map[string]struct {
		key string
		dst *string
	}{
		"http":       {"HTTP", httpAddr},
		"log-level":  {"LOG_LEVEL", logLevel},
		"backend":    {"BACKEND", backend},
		"bucket":     {"SUPABASE_BUCKET", bucket},
		"public-url": {"PUBLIC_BASE_URL", publicURL},
	} {
		if !set[name] {
			if v := env[e.key]; v != "" {
				*e.dst = v
			}
		}
	}

	l, err := utils.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	ll.Set(l)

	if *configPath == "" {
		*configPath = filepath.Join(*dataDir, "server.yaml")
	}
	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *bucket != "" {
		cfg.Bucket = *bucket
	}
	if *publicURL != "" {
		cfg.PublicBaseURL = strings.TrimRight(*publicURL, "/")
	}

	var store storage.BlobStore
	var objectsDir string
	switch *backend {
	case "file":
		objectsDir = filepath.Join(*dataDir, "objects")
		fs, err := storage.NewFileStore(objectsDir, storage.FileStoreOptions{History: cfg.History, Author: "xbase"})
		if err != nil {
			return fmt.Errorf("failed to initialize file store: %w", err)
		}
		store = fs
	case "supabase":
		u, key := env["SUPABASE_URL"], env["SUPABASE_SECRET_KEY"]
		if u == "" || key == "" {
			return errors.New("supabase backend requires SUPABASE_URL and SUPABASE_SECRET_KEY in .env")
		}
		store = storage.NewSupabaseStore(ctx, u, key)
		if cfg.PublicBaseURL == "" {
			cfg.PublicBaseURL = strings.TrimRight(u, "/")
		}
	default:
		return fmt.Errorf("unknown backend %q", *backend)
	}
	// Other writers to the backing store are only seen through the watcher or
	// the cache TTL. Without either, reads go straight to the store.
	watched := objectsDir != "" && cfg.Watch
	if watched || cfg.Cache.TTL > 0 {
		cached := storage.NewCachedStore(store, storage.NewCache(cfg.Cache.MaxObjects, cfg.Cache.TTL))
		if watched {
			if err := storage.Watch(ctx, objectsDir, cached.Cache()); err != nil {
				return err
			}
		}
		store = cached
	} else {
		slog.InfoContext(ctx, "read cache disabled", "reason", "no watcher and no cache.ttl")
	}

	limits := ratelimit.NewConfig(cfg.RateLimit)
	defer limits.Close()
	var secret []byte
	if v := env["JWT_SECRET"]; v != "" {
		secret = []byte(v)
	} else {
		slog.WarnContext(ctx, "JWT_SECRET not set; API is unauthenticated")
	}

	// Normalize addr: ":8080" becomes "localhost:8080"
	addr := *httpAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	buildVersion, _, _, _ := getBuildInfo()
	httpServer := &http.Server{
		Addr: addr,
		Handler: server.NewRouter(server.Options{
			Store:         store,
			Bucket:        cfg.Bucket,
			PublicBaseURL: cfg.PublicBaseURL,
			JWTSecret:     secret,
			Limits:        limits,
		}),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "backend", *backend, "bucket", cfg.Bucket, "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	// Wait for either context cancellation or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("xbase-server %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// loadDotEnv reads <dataDir>/.env. A missing file yields an empty map.
func loadDotEnv(dataDir string) (map[string]string, error) {
	env, err := godotenv.Read(filepath.Join(dataDir, ".env"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return env, nil
}
