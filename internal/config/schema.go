package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackzampolin/mediview/internal/ocrapi"
)

// Config holds mediview configuration.
// Stored at: ~/.mediview/config.yaml or ./config.yaml
type Config struct {
	Service   ServiceCfg   `mapstructure:"service" yaml:"service"`
	Dashboard DashboardCfg `mapstructure:"dashboard" yaml:"dashboard"`
	Log       LogCfg       `mapstructure:"log" yaml:"log"`
}

// ServiceCfg points at the external OCR service.
type ServiceCfg struct {
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	AuthHeader string        `mapstructure:"auth_header" yaml:"auth_header"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// WaitReady is how long serve waits for the service's health check.
	// Zero skips the wait.
	WaitReady time.Duration `mapstructure:"wait_ready" yaml:"wait_ready"`
}

// DashboardCfg configures the dashboard's own HTTP server and panels.
type DashboardCfg struct {
	Host            string `mapstructure:"host" yaml:"host"`
	Port            int    `mapstructure:"port" yaml:"port"`
	DefaultLanguage string `mapstructure:"default_language" yaml:"default_language"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	JobsLimit       int    `mapstructure:"jobs_limit" yaml:"jobs_limit"`
}

// LogCfg configures the process logger.
type LogCfg struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceCfg{
			BaseURL:    ocrapi.DefaultBaseURL,
			APIKey:     "${MEDIVIEW_API_KEY}",
			AuthHeader: ocrapi.DefaultAuthHeader,
			Timeout:    5 * time.Minute,
		},
		Dashboard: DashboardCfg{
			Host:            "127.0.0.1",
			Port:            3000,
			DefaultLanguage: string(ocrapi.DefaultLanguage),
			MaxUploadMB:     10,
			JobsLimit:       100,
		},
		Log: LogCfg{
			Level:  "info",
			Format: "text",
		},
	}
}

// Credential resolves the API key. An unset or empty key yields an absent
// credential rather than an error.
func (c *Config) Credential() ocrapi.Credential {
	return ocrapi.NewCredential(ResolveEnvVars(c.Service.APIKey))
}

// Addr is the dashboard listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Dashboard.Host, strconv.Itoa(c.Dashboard.Port))
}

// MaxUploadBytes converts the upload limit to bytes. The service counts
// megabytes as MiB.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Dashboard.MaxUploadMB) << 20
}

// Language returns the default upload language, falling back to the
// service default when the configured one is not supported.
func (c *Config) Language() ocrapi.Language {
	lang, err := ocrapi.ParseLanguage(c.Dashboard.DefaultLanguage)
	if err != nil {
		return ocrapi.DefaultLanguage
	}
	return lang
}

// SlogLevel parses the configured log level.
func (l LogCfg) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	return level, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Service.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("service.base_url %q must be an absolute URL", c.Service.BaseURL))
	}
	if c.Service.AuthHeader == "" {
		errs = append(errs, errors.New("service.auth_header must not be empty"))
	}
	if c.Service.Timeout < 0 || c.Service.WaitReady < 0 {
		errs = append(errs, errors.New("service durations must not be negative"))
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Errorf("dashboard.port %d out of range", c.Dashboard.Port))
	}
	if _, err := ocrapi.ParseLanguage(c.Dashboard.DefaultLanguage); err != nil {
		errs = append(errs, fmt.Errorf("dashboard.default_language: %w", err))
	}
	if c.Dashboard.MaxUploadMB < 0 {
		errs = append(errs, errors.New("dashboard.max_upload_mb must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}
