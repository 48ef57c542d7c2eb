// Package config loads the xbase client configuration.
//
// Precedence, highest wins:
//  1. Command line overrides.
//  2. Environment (XBASE_*).
//  3. Explicit config file (--config).
//  4. Project config file .xbase.json in the working directory.
//  5. Global config file $XDG_CONFIG_HOME/xbase/config.json.
//  6. Defaults.
//
// Config files are JSON with comments and trailing commas allowed.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// FileName is the project config file name.
const FileName = ".xbase.json"

// DefaultBucket is the storage bucket used when none is configured.
const DefaultBucket = "XBase_bucket1"

var (
	errFileNotFound = errors.New("config file not found")
	errInvalid      = errors.New("invalid config")
	// ErrNoBackend is returned by RequireBackend when no backend URL is set.
	ErrNoBackend = errors.New("backend URL not configured: set backend_url or XBASE_BACKEND_URL")
)

// Config holds the client configuration.
type Config struct {
	// ProxyURL is the storage proxy base URL.
	ProxyURL string `json:"proxy_url,omitempty"`
	// BackendURL is the directory and AI service base URL.
	BackendURL string `json:"backend_url,omitempty"`
	// Bucket is the expected storage bucket.
	Bucket string `json:"bucket,omitempty"`
	UserID string `json:"user_id,omitempty"`
	// RootID skips root folder resolution when set.
	RootID string `json:"root_id,omitempty"`
	Token  string `json:"token,omitempty"`
	// DataDir holds local state such as chat transcripts.
	DataDir string `json:"data_dir,omitempty"`
}

// Sources records which config files were loaded.
type Sources struct {
	Global  string
	Project string
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		ProxyURL: "http://localhost:8080",
		Bucket:   DefaultBucket,
	}
}

var envKeys = []struct {
	name string
	set  func(*Config, string)
}{
	{"XBASE_PROXY_URL", func(c *Config, v string) { c.ProxyURL = v }},
	{"XBASE_BACKEND_URL", func(c *Config, v string) { c.BackendURL = v }},
	{"XBASE_BUCKET", func(c *Config, v string) { c.Bucket = v }},
	{"XBASE_USER_ID", func(c *Config, v string) { c.UserID = v }},
	{"XBASE_ROOT_ID", func(c *Config, v string) { c.RootID = v }},
	{"XBASE_TOKEN", func(c *Config, v string) { c.Token = v }},
	{"XBASE_DATA_DIR", func(c *Config, v string) { c.DataDir = v }},
}

// Load loads the configuration. env is a list of KEY=value pairs, usually
// os.Environ(). Non-empty fields of overrides win over everything else.
func Load(workDir, configPath string, env []string, overrides Config) (Config, Sources, error) {
	cfg := Default()
	var src Sources

	if p := globalPath(env); p != "" {
		g, ok, err := loadFile(p, false)
		if err != nil {
			return Config{}, Sources{}, err
		}
		if ok {
			cfg = merge(cfg, g)
			src.Global = p
		}
	}

	p, mustExist := filepath.Join(workDir, FileName), false
	if configPath != "" {
		p, mustExist = configPath, true
		if !filepath.IsAbs(p) {
			p = filepath.Join(workDir, p)
		}
	}
	f, ok, err := loadFile(p, mustExist)
	if err != nil {
		return Config{}, Sources{}, err
	}
	if ok {
		cfg = merge(cfg, f)
		src.Project = p
	}

	for _, k := range envKeys {
		if v, ok := lookupEnv(env, k.name); ok && v != "" {
			k.set(&cfg, v)
		}
	}
	cfg = merge(cfg, overrides)

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir(env)
	}
	cfg.ProxyURL = strings.TrimRight(cfg.ProxyURL, "/")
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	if cfg.ProxyURL == "" {
		return Config{}, Sources{}, fmt.Errorf("%w: proxy_url is empty", errInvalid)
	}
	return cfg, src, nil
}

// RequireBackend returns ErrNoBackend when no backend URL is configured.
func (c *Config) RequireBackend() error {
	if c.BackendURL == "" {
		return ErrNoBackend
	}
	return nil
}

func merge(base, o Config) Config {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.ProxyURL, o.ProxyURL)
	set(&base.BackendURL, o.BackendURL)
	set(&base.Bucket, o.Bucket)
	set(&base.UserID, o.UserID)
	set(&base.RootID, o.RootID)
	set(&base.Token, o.Token)
	set(&base.DataDir, o.DataDir)
	return base
}

func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}
		if os.IsNotExist(err) {
			return Config{}, false, fmt.Errorf("%w: %s", errFileNotFound, path)
		}
		return Config{}, false, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errInvalid, path, err)
	}
	return cfg, true, nil
}

// Parse decodes a JSONC config document.
func Parse(data []byte) (Config, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}
	var cfg Config
	dec := json.NewDecoder(strings.NewReader(string(std)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return cfg, nil
}

func lookupEnv(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		if after, ok := strings.CutPrefix(env[i], key+"="); ok {
			return after, true
		}
	}
	return "", false
}

func configHome(env []string) string {
	if v, ok := lookupEnv(env, "XDG_CONFIG_HOME"); ok && v != "" {
		return v
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config")
	}
	return ""
}

func globalPath(env []string) string {
	if h := configHome(env); h != "" {
		return filepath.Join(h, "xbase", "config.json")
	}
	return ""
}

func defaultDataDir(env []string) string {
	if v, ok := lookupEnv(env, "XDG_DATA_HOME"); ok && v != "" {
		return filepath.Join(v, "xbase")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "xbase")
	}
	return ".xbase"
}
