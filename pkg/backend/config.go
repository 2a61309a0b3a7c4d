package backend

import (
	"flag"
	"time"

	"github.com/grafana/dskit/backoff"
)

// Config wires the HTTP transport to the backend.
type Config struct {
	// BaseURL overrides the api address embedded in the api token.
	BaseURL  string `yaml:"base_url"`
	APIToken string `yaml:"api_token"`

	InsecureSkipTLSVerify bool `yaml:"insecure_skip_tls_verify"`

	// RequestTimeout bounds a single attempt, not the whole retry loop.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Hedging duplicates requests that are slow to first byte. Zero
	// disables it.
	HedgeRequestsAt   time.Duration `yaml:"hedge_requests_at"`
	HedgeRequestsUpTo int           `yaml:"hedge_requests_up_to"`

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig bounds the retry loop that wraps every backend call.
type RetryConfig struct {
	Backoff backoff.Config `yaml:"backoff"`

	// SoftTimeout stops retrying once elapsed time crosses it. A server
	// Retry-After delay is honored even when it runs past the soft
	// deadline.
	SoftTimeout time.Duration `yaml:"soft_timeout"`

	// HardTimeout is the absolute wall-clock ceiling.
	HardTimeout time.Duration `yaml:"hard_timeout"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	cfg.RequestTimeout = 60 * time.Second
	cfg.HedgeRequestsUpTo = 2
	cfg.Retry.RegisterFlagsAndApplyDefaults(prefix, f)
}

func (cfg *RetryConfig) RegisterFlagsAndApplyDefaults(_ string, _ *flag.FlagSet) {
	cfg.Backoff = backoff.Config{
		MinBackoff: 500 * time.Millisecond,
		MaxBackoff: 30 * time.Second,
		MaxRetries: 0,
	}
	cfg.SoftTimeout = 1800 * time.Second
	cfg.HardTimeout = 3600 * time.Second
}
