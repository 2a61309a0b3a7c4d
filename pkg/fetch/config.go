package fetch

import (
	"flag"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/neptune-ai/fetcher-go/pkg/backend"
	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
	"github.com/neptune-ai/fetcher-go/pkg/retrieval"
)

// Config carries every tunable of the fetcher. Numeric fields below one are
// treated as unset and replaced by defaults when a client is built, so a
// partially filled struct is usable; FromEnv and DefaultConfig always return
// a fully populated one.
type Config struct {
	APIToken string `yaml:"api_token"`
	Project  string `yaml:"project"`

	// BaseURL overrides the api address embedded in the token.
	BaseURL   string `yaml:"base_url"`
	VerifySSL bool   `yaml:"verify_ssl"`

	// HTTPRequestTimeout bounds one attempt, not the retry loop.
	HTTPRequestTimeout time.Duration `yaml:"http_request_timeout"`

	// MaxWorkers bounds each of the two pools a query runs.
	MaxWorkers int `yaml:"max_workers"`

	SysAttrsBatchSize    int `yaml:"sys_attrs_batch_size"`
	DefinitionsBatchSize int `yaml:"attribute_definitions_batch_size"`
	ValuesBatchSize      int `yaml:"attribute_values_batch_size"`
	SeriesBatchSize      int `yaml:"series_batch_size"`

	// QuerySizeLimit caps the total UTF-8 bytes of attribute names packed
	// into one request.
	QuerySizeLimit int `yaml:"query_size_limit"`

	RetrySoftTimeout time.Duration `yaml:"retry_soft_timeout"`
	RetryHardTimeout time.Duration `yaml:"retry_hard_timeout"`
}

func DefaultConfig() Config {
	return Config{
		VerifySSL:            true,
		HTTPRequestTimeout:   60 * time.Second,
		MaxWorkers:           10,
		SysAttrsBatchSize:    10000,
		DefinitionsBatchSize: 10000,
		ValuesBatchSize:      10000,
		SeriesBatchSize:      10000,
		QuerySizeLimit:       220000,
		RetrySoftTimeout:     1800 * time.Second,
		RetryHardTimeout:     3600 * time.Second,
	}
}

// FromEnv reads the NEPTUNE_* environment, starting from defaults. Invalid
// numeric or boolean values are user errors, collected across all variables
// so one pass reports every mistake.
func FromEnv() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEPTUNE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()
	cfg.APIToken = v.GetString("api_token")
	cfg.Project = v.GetString("project")

	var errs error
	invalid := func(key, raw, want string) {
		errs = multierr.Append(errs, fetcherr.Userf("invalid value %q for NEPTUNE_%s: expected %s",
			raw, strings.ToUpper(key), want))
	}
	readInt := func(key string, into *int) {
		raw := v.GetString(key)
		if raw == "" {
			return
		}
		n, err := cast.ToIntE(raw)
		if err != nil {
			invalid(key, raw, "an integer")
			return
		}
		*into = n
	}
	readSeconds := func(key string, into *time.Duration) {
		raw := v.GetString(key)
		if raw == "" {
			return
		}
		n, err := cast.ToIntE(raw)
		if err != nil {
			invalid(key, raw, "an integer number of seconds")
			return
		}
		*into = time.Duration(n) * time.Second
	}
	if raw := v.GetString("verify_ssl"); raw != "" {
		b, err := cast.ToBoolE(raw)
		if err != nil {
			invalid("verify_ssl", raw, "a boolean")
		} else {
			cfg.VerifySSL = b
		}
	}

	readSeconds("http_request_timeout_seconds", &cfg.HTTPRequestTimeout)
	readInt("fetcher_max_workers", &cfg.MaxWorkers)
	readInt("fetcher_sys_attrs_batch_size", &cfg.SysAttrsBatchSize)
	readInt("fetcher_attribute_definitions_batch_size", &cfg.DefinitionsBatchSize)
	readInt("fetcher_attribute_values_batch_size", &cfg.ValuesBatchSize)
	readInt("fetcher_series_batch_size", &cfg.SeriesBatchSize)
	readInt("fetcher_query_size_limit", &cfg.QuerySizeLimit)
	readSeconds("fetcher_retry_soft_timeout", &cfg.RetrySoftTimeout)
	readSeconds("fetcher_retry_hard_timeout", &cfg.RetryHardTimeout)

	if errs != nil {
		return Config{}, errs
	}
	return cfg, nil
}

// withDefaults fills unset numeric fields. VerifySSL is left alone: false is
// a valid choice and indistinguishable from unset.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HTTPRequestTimeout <= 0 {
		c.HTTPRequestTimeout = def.HTTPRequestTimeout
	}
	if c.MaxWorkers < 1 {
		c.MaxWorkers = def.MaxWorkers
	}
	if c.SysAttrsBatchSize < 1 {
		c.SysAttrsBatchSize = def.SysAttrsBatchSize
	}
	if c.DefinitionsBatchSize < 1 {
		c.DefinitionsBatchSize = def.DefinitionsBatchSize
	}
	if c.ValuesBatchSize < 1 {
		c.ValuesBatchSize = def.ValuesBatchSize
	}
	if c.SeriesBatchSize < 1 {
		c.SeriesBatchSize = def.SeriesBatchSize
	}
	if c.QuerySizeLimit < 1 {
		c.QuerySizeLimit = def.QuerySizeLimit
	}
	if c.RetrySoftTimeout <= 0 {
		c.RetrySoftTimeout = def.RetrySoftTimeout
	}
	if c.RetryHardTimeout <= 0 {
		c.RetryHardTimeout = def.RetryHardTimeout
	}
	return c
}

func (c Config) backendConfig() backend.Config {
	var bc backend.Config
	bc.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("backend", flag.ContinueOnError))
	bc.BaseURL = c.BaseURL
	bc.APIToken = c.APIToken
	bc.InsecureSkipTLSVerify = !c.VerifySSL
	bc.RequestTimeout = c.HTTPRequestTimeout
	bc.Retry.SoftTimeout = c.RetrySoftTimeout
	bc.Retry.HardTimeout = c.RetryHardTimeout
	return bc
}

func (c Config) batchSizes() retrieval.BatchSizes {
	return retrieval.BatchSizes{
		SysAttrs:    c.SysAttrsBatchSize,
		Definitions: c.DefinitionsBatchSize,
		Values:      c.ValuesBatchSize,
		Series:      c.SeriesBatchSize,
	}
}
