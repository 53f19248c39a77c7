package reqflow

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// EnvPrefix is the prefix of environment variables read by [LoadConfig].
// Nested keys use a double underscore: REQFLOW_RETRY__MAX_RETRIES.
const EnvPrefix = "REQFLOW_"

type (
	// Config is the runtime configuration of a service and its transport.
	Config struct {
		Transport TransportSettings `koanf:"transport" json:"transport" yaml:"transport"`
		Retry     RetrySettings     `koanf:"retry" json:"retry" yaml:"retry"`
		Log       LogSettings       `koanf:"log" json:"log" yaml:"log"`
		RequestID RequestIDSettings `koanf:"request_id" json:"request_id" yaml:"request_id"`
	}

	// TransportSettings configures the HTTP transport.
	TransportSettings struct {
		// RequestTimeout bounds one attempt. Default: 30s.
		RequestTimeout time.Duration `koanf:"request_timeout" json:"request_timeout" yaml:"request_timeout" validate:"gt=0s"`
		// ResourceTimeout bounds the whole exchange. Default: 30s.
		ResourceTimeout time.Duration `koanf:"resource_timeout" json:"resource_timeout" yaml:"resource_timeout" validate:"gt=0s"`
		// RateLimit paces requests per second. Zero disables pacing.
		RateLimit float64 `koanf:"rate_limit" json:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
		// Burst is the pacing burst size. Default: 1.
		Burst int `koanf:"burst" json:"burst" yaml:"burst" validate:"gte=0"`
	}

	// RetrySettings provides the retry policy for descriptors that do not
	// carry their own.
	RetrySettings struct {
		// MaxRetries is the number of retries after the first attempt.
		// Default: 3.
		MaxRetries int `koanf:"max_retries" json:"max_retries" yaml:"max_retries" validate:"gte=0"`
		// Delay is the fixed wait between attempts. Default: 1s.
		Delay time.Duration `koanf:"delay" json:"delay" yaml:"delay" validate:"gte=0s"`
		// TransientOnly restricts retries to [RetryTransient] failures.
		TransientOnly bool `koanf:"transient_only" json:"transient_only" yaml:"transient_only"`
	}

	// LogSettings configures zerolog output.
	LogSettings struct {
		Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
		Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
	}

	// RequestIDSettings configures per-call request IDs. An empty header
	// disables them.
	RequestIDSettings struct {
		Header string `koanf:"header" json:"header" yaml:"header"`
	}
)

func defaultConfigMap() map[string]any {
	return map[string]any{
		"transport.request_timeout":  DefaultRequestTimeout.String(),
		"transport.resource_timeout": DefaultResourceTimeout.String(),
		"transport.rate_limit":       0,
		"transport.burst":            1,
		"retry.max_retries":          DefaultMaxRetries,
		"retry.delay":                DefaultRetryDelay.String(),
		"retry.transient_only":       false,
		"log.level":                  "info",
		"log.pretty":                 false,
		"request_id.header":          "",
	}
}

// LoadConfig loads configuration with increasing priority from defaults,
// the YAML or JSON file at path (skipped when path is empty) and REQFLOW_
// environment variables, then validates the result.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultConfigMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("reqflow: load defaults: %w", err)
	}

	// YAML is a superset of JSON, so one parser covers both file formats.
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reqflow: read config: %w", err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, EnvPrefix)
			key = strings.ReplaceAll(strings.ToLower(key), "__", ".")

			return key, value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("reqflow: load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("reqflow: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("reqflow: invalid config: %w", err)
	}

	return nil
}

// TransportConfig returns the transport timeouts.
func (c *Config) TransportConfig() TransportConfig {
	return TransportConfig{
		RequestTimeout:  c.Transport.RequestTimeout,
		ResourceTimeout: c.Transport.ResourceTimeout,
	}.Normalize()
}

// RetryPolicy returns the configured default retry policy.
func (c *Config) RetryPolicy() RetryPolicy {
	p := RetryPolicy{
		MaxRetries:  c.Retry.MaxRetries,
		Delay:       c.Retry.Delay,
		ShouldRetry: AlwaysRetry,
	}

	if c.Retry.TransientOnly {
		p.ShouldRetry = RetryTransient
	}

	return p
}

// Logger builds a zerolog logger writing to w. An unknown level falls back
// to info.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	out := w
	if c.Log.Pretty {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// ServiceOptions returns the service options implied by the configuration,
// logging to w.
func (c *Config) ServiceOptions(w io.Writer) []Option {
	opts := []Option{WithLogger(c.Logger(w))}

	if c.RequestID.Header != "" {
		opts = append(opts, WithRequestID(c.RequestID.Header))
	}

	return opts
}
