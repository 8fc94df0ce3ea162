package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/common/promlog"
)

// Config holds configuration options for a Server.
type Config struct {
	LogLevel  string `yaml:"log_level,omitempty"`
	LogFormat string `yaml:"log_format,omitempty"`

	HTTPListenAddress string `yaml:"http_listen_address,omitempty"`
	HTTPConnLimit     int    `yaml:"http_listen_conn_limit,omitempty"`

	HTTPReadTimeout  time.Duration `yaml:"http_server_read_timeout,omitempty"`
	HTTPWriteTimeout time.Duration `yaml:"http_server_write_timeout,omitempty"`
	HTTPIdleTimeout  time.Duration `yaml:"http_server_idle_timeout,omitempty"`

	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout,omitempty"`
}

// UnmarshalYAML unmarshals the server config with defaults applied.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	*c = DefaultConfig()

	type config Config
	return unmarshal((*config)(c))
}

// DefaultConfig returns the default settings of a Server.
func DefaultConfig() Config {
	return Config{
		LogLevel:                "info",
		LogFormat:               "logfmt",
		HTTPListenAddress:       "127.0.0.1:9216",
		HTTPReadTimeout:         30 * time.Second,
		HTTPWriteTimeout:        30 * time.Second,
		HTTPIdleTimeout:         120 * time.Second,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// Validate returns every problem found in c.
func (c *Config) Validate() error {
	var errs *multierror.Error

	var lvl promlog.AllowedLevel
	if err := lvl.Set(c.LogLevel); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("log_level: %w", err))
	}
	var format promlog.AllowedFormat
	if err := format.Set(c.LogFormat); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("log_format: %w", err))
	}
	if c.HTTPListenAddress == "" {
		errs = multierror.Append(errs, errors.New("http_listen_address is required"))
	}
	if c.HTTPConnLimit < 0 {
		errs = multierror.Append(errs, fmt.Errorf("http_listen_conn_limit must not be negative, got %d", c.HTTPConnLimit))
	}
	if c.GracefulShutdownTimeout < 0 {
		errs = multierror.Append(errs, errors.New("graceful_shutdown_timeout must not be negative"))
	}
	return errs.ErrorOrNil()
}
