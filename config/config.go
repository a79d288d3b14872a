// Package config loads indexerd's configuration from, in increasing
// precedence order, defaults, an optional config file, SIMIDX_-prefixed
// environment variables, and command-line flags bound through cobra. This
// is the same multi-source story the teacher's config.EnvConfig told with
// bare os.Getenv, now backed by viper so cmd/indexerd can bind flags
// directly instead of hand-rolling a prefix+Getenv lookup per field.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix recognized for every key,
// mirroring the teacher's per-service env-var prefix convention (there:
// "EVE_SERVICE"; here: "SIMIDX").
const EnvPrefix = "SIMIDX"

// Config is the fully-resolved indexerd configuration: one Engine's
// database, topic, blob, and buffering settings plus ambient service
// identity and logging.
type Config struct {
	ServiceName string `mapstructure:"service_name"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	DatabaseDSN string `mapstructure:"database_dsn"`
	DatabaseMax int    `mapstructure:"database_max_conns"`

	TopicDSN          string        `mapstructure:"topic_dsn"`
	TopicPollInterval time.Duration `mapstructure:"topic_poll_interval"`
	TopicLeaseTTL     time.Duration `mapstructure:"topic_lease_ttl"`

	BlobBucket   string `mapstructure:"blob_bucket"`
	BlobEndpoint string `mapstructure:"blob_endpoint"`
	BlobRegion   string `mapstructure:"blob_region"`

	BufferMaxTicks int           `mapstructure:"buffer_max_ticks"`
	BufferMaxAge   time.Duration `mapstructure:"buffer_max_age"`

	MetricsEnabled bool `mapstructure:"metrics_enabled"`
	MetricsPort    int  `mapstructure:"metrics_port"`

	ManifestPath string `mapstructure:"manifest_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "indexerd")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("database_max_conns", 10)
	v.SetDefault("topic_poll_interval", 500*time.Millisecond)
	v.SetDefault("topic_lease_ttl", 30*time.Second)
	v.SetDefault("blob_region", "us-east-1")
	v.SetDefault("buffer_max_ticks", 500)
	v.SetDefault("buffer_max_age", 5*time.Second)
	v.SetDefault("metrics_enabled", false)
	v.SetDefault("metrics_port", 9090)
	v.SetDefault("manifest_path", "")
}

// BindFlags registers every config key as a persistent flag on cmd and binds
// the flag set into v, giving an explicitly-set flag top precedence over
// environment and file values.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.PersistentFlags()
	flags.String("service-name", "indexerd", "service name reported in status and logs")
	flags.String("log-level", "info", "debug|info|warn|error")
	flags.String("log-format", "text", "text|json")
	flags.String("database-dsn", "", "postgres DSN for simdb and, absent --topic-dsn, the topic substrate")
	flags.Int("database-max-conns", 10, "max pooled database connections")
	flags.String("topic-dsn", "", "postgres DSN for the topic substrate (defaults to --database-dsn)")
	flags.Duration("topic-poll-interval", 500*time.Millisecond, "run-discovery poll interval, and how long one topic poll waits for a message")
	flags.Duration("topic-lease-ttl", 30*time.Second, "claim lease duration before a message is considered abandoned")
	flags.String("blob-bucket", "", "S3 bucket holding tick batch and metadata blobs")
	flags.String("blob-endpoint", "", "S3-compatible endpoint override (empty uses AWS default resolution)")
	flags.String("blob-region", "us-east-1", "S3 region")
	flags.Int("buffer-max-ticks", 500, "flush the tick buffer after this many buffered ticks")
	flags.Duration("buffer-max-age", 5*time.Second, "flush the tick buffer after the oldest tick reaches this age")
	flags.Bool("metrics-enabled", false, "expose a Prometheus /metrics endpoint")
	flags.Int("metrics-port", 9090, "port for the /metrics endpoint")
	flags.String("manifest-path", "", "path to the service manifest consumed by manager.Manager")

	return v.BindPFlags(flags)
}

// Load resolves a Config from defaults, an optional config file at path (if
// non-empty), SIMIDX_-prefixed environment variables, and any flags already
// bound to v via BindFlags, in that increasing order of precedence, then
// validates the required fields.
func Load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.TopicDSN == "" {
		cfg.TopicDSN = cfg.DatabaseDSN
	}

	return &cfg, validate(&cfg)
}

func validate(cfg *Config) error {
	v := newValidator()
	v.requireString("service_name", cfg.ServiceName)
	v.requireOneOf("log_level", cfg.LogLevel, "debug", "info", "warn", "error")
	v.requireOneOf("log_format", cfg.LogFormat, "text", "json")
	v.requireString("database_dsn", cfg.DatabaseDSN)
	v.requireString("blob_bucket", cfg.BlobBucket)
	v.requirePositive("buffer_max_ticks", cfg.BufferMaxTicks)
	return v.err()
}

// validator accumulates field errors the way the teacher's config.Validator
// does, so Load reports every violation at once instead of failing fast on
// the first missing field.
type validator struct {
	errs []string
}

func newValidator() *validator { return &validator{} }

func (v *validator) requireString(field, value string) {
	if value == "" {
		v.errs = append(v.errs, field+" is required")
	}
}

func (v *validator) requirePositive(field string, value int) {
	if value <= 0 {
		v.errs = append(v.errs, field+" must be positive")
	}
}

func (v *validator) requireOneOf(field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.errs = append(v.errs, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %s", strings.Join(v.errs, "; "))
}
