package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/maruel/xbase/internal/server/ratelimit"
	"gopkg.in/yaml.v3"
)

// DefaultBucket is the storage bucket served when none is configured.
const DefaultBucket = "XBase_bucket1"

// Config is the content of server.yaml.
type Config struct {
	// Bucket is the only bucket served; locators naming another bucket are
	// rejected.
	Bucket string `yaml:"bucket"`
	// PublicBaseURL is the origin used to build public object URLs. Empty
	// uses the request's origin.
	PublicBaseURL string          `yaml:"public_base_url"`
	RateLimit     ratelimit.Rates `yaml:"rate_limit"`
	Cache         CacheConfig     `yaml:"cache"`
	// History commits every write of the file backend to git.
	History bool `yaml:"history"`
	// Watch invalidates cached objects edited on disk.
	Watch bool `yaml:"watch"`
}

// CacheConfig configures the read cache.
type CacheConfig struct {
	MaxObjects int `yaml:"max_objects"`
	// TTL bounds how long an object is served from memory. Zero keeps it until
	// a write or the file watcher invalidates it.
	TTL time.Duration `yaml:"ttl"`
}

// DefaultConfig returns the configuration used without server.yaml.
func DefaultConfig() Config {
	return Config{
		Bucket:    DefaultBucket,
		RateLimit: ratelimit.DefaultRates(),
		Cache:     CacheConfig{MaxObjects: 256},
		History:   true,
		Watch:     true,
	}
}

// LoadConfig reads path over the defaults. A missing file yields the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	d := yaml.NewDecoder(bytes.NewReader(data))
	d.KnownFields(true)
	if err := d.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("invalid %s: %w", path, err)
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	return cfg, nil
}
