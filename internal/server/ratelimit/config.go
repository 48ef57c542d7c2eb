package ratelimit

import (
	"net/http"
	"time"
)

// Rates are per-minute request quotas per client.
type Rates struct {
	ReadPerMinute  int `yaml:"read_per_minute"`
	WritePerMinute int `yaml:"write_per_minute"`
	Burst          int `yaml:"burst"`
}

// DefaultRates returns the default quotas.
func DefaultRates() Rates {
	return Rates{ReadPerMinute: 600, WritePerMinute: 60, Burst: 20}
}

// Tier is a named limiter.
type Tier struct {
	Name    string
	Limiter *Limiter
}

// Config holds the limiters of each tier.
type Config struct {
	Read  Tier
	Write Tier
}

// NewConfig creates limiters for r. Zero fields use the defaults.
func NewConfig(r Rates) *Config {
	d := DefaultRates()
	if r.ReadPerMinute <= 0 {
		r.ReadPerMinute = d.ReadPerMinute
	}
	if r.WritePerMinute <= 0 {
		r.WritePerMinute = d.WritePerMinute
	}
	if r.Burst <= 0 {
		r.Burst = d.Burst
	}
	return &Config{
		Read:  Tier{Name: "read", Limiter: NewLimiter(r.ReadPerMinute, time.Minute, r.Burst)},
		Write: Tier{Name: "write", Limiter: NewLimiter(r.WritePerMinute, time.Minute, min(r.Burst, r.WritePerMinute))},
	}
}

// Match returns the tier of a request, or nil when it is not limited.
func (c *Config) Match(method, path string) *Tier {
	if path == "/api/health" {
		return nil
	}
	switch method {
	case http.MethodGet, http.MethodHead:
		return &c.Read
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return &c.Write
	}
	return nil
}

// Close stops all limiters.
func (c *Config) Close() {
	c.Read.Limiter.Close()
	c.Write.Limiter.Close()
}
