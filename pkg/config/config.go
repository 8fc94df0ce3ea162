// Package config loads the configuration file of the collstats exporter.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/drone/envsubst/v2"
	"github.com/grafana/collstats-exporter/component/discovery"
	"github.com/grafana/collstats-exporter/component/prometheus/exporter"
	collstats_component "github.com/grafana/collstats-exporter/component/prometheus/exporter/collstats"
	"github.com/grafana/collstats-exporter/pkg/config/instrumentation"
	"github.com/grafana/collstats-exporter/pkg/integrations/collstats_exporter"
	"github.com/grafana/collstats-exporter/pkg/server"
	"github.com/grafana/river"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"
)

// DefaultConfig returns the default settings of the exporter.
func DefaultConfig() Config {
	collstats := collstats_exporter.DefaultConfig
	collstats.ExcludeDatabases = append([]string(nil), collstats.ExcludeDatabases...)

	return Config{
		Server:            server.DefaultConfig(),
		CollstatsExporter: collstats,
	}
}

// Config is the root config of the exporter.
type Config struct {
	Server            server.Config             `yaml:"server,omitempty"`
	CollstatsExporter collstats_exporter.Config `yaml:"collstats_exporter"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	*c = DefaultConfig()

	type plain Config
	return unmarshal((*plain)(c))
}

// Validate returns every problem found in the config.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if err := c.Server.Validate(); err != nil {
		errs = multierror.Append(errs, multierror.Prefix(err, "server:"))
	}
	if err := c.CollstatsExporter.Validate(); err != nil {
		errs = multierror.Append(errs, multierror.Prefix(err, c.CollstatsExporter.Name()+":"))
	}
	return errs.ErrorOrNil()
}

// Targets returns the targets a Prometheus server uses to scrape the
// exporter.
func (c *Config) Targets() []discovery.Target {
	common := c.CollstatsExporter.Common
	target := exporter.BaseTarget(c.Server.HTTPListenAddress, c.CollstatsExporter.Name())

	if key, err := c.CollstatsExporter.InstanceKey(target["instance"]); err == nil {
		target["instance"] = key
	}
	if common.ScrapeInterval > 0 {
		target[model.ScrapeIntervalLabel] = model.Duration(common.ScrapeInterval).String()
	}
	if common.ScrapeTimeout > 0 {
		target[model.ScrapeTimeoutLabel] = model.Duration(common.ScrapeTimeout).String()
	}
	return []discovery.Target{target}
}

// LoadFile reads a file and passes the contents to LoadBytes, or to
// LoadRiver when the file has the .river extension.
func LoadFile(filename string, expandEnvVars bool, c *Config) (err error) {
	format := instrumentation.FormatYAML
	if strings.EqualFold(filepath.Ext(filename), ".river") {
		format = instrumentation.FormatRiver
	}

	buf, err := os.ReadFile(filename)
	defer func() { instrumentation.ConfigMetrics.ObserveLoad(format, buf, err) }()
	if err != nil {
		return fmt.Errorf("error reading config file %w", err)
	}

	if format == instrumentation.FormatRiver {
		return LoadRiver(buf, expandEnvVars, c)
	}
	return LoadBytes(buf, expandEnvVars, c)
}

// LoadBytes unmarshals a YAML config from a buffer. Defaults are applied to
// sections present in buf; c should start from DefaultConfig otherwise.
func LoadBytes(buf []byte, expandEnvVars bool, c *Config) error {
	buf, err := expand(buf, expandEnvVars)
	if err != nil {
		return err
	}
	bb := bytes.Buffer{}
	bb.Write(buf)
	dec := yaml.NewDecoder(&bb)
	dec.KnownFields(true)
	return dec.Decode(c)
}

// LoadRiver unmarshals the arguments of the collstats exporter written in
// River. The server section keeps its defaults.
func LoadRiver(buf []byte, expandEnvVars bool, c *Config) error {
	buf, err := expand(buf, expandEnvVars)
	if err != nil {
		return err
	}

	var args collstats_component.Arguments
	if err := river.Unmarshal(buf, &args); err != nil {
		return err
	}

	*c = DefaultConfig()
	c.CollstatsExporter = *args.Convert()
	return nil
}

// expand optionally expands buf with environment variables.
func expand(buf []byte, expandEnvVars bool) ([]byte, error) {
	if !expandEnvVars {
		return buf, nil
	}
	s, err := envsubst.Eval(string(buf), getenv)
	if err != nil {
		return nil, fmt.Errorf("unable to substitute config with environment variables: %w", err)
	}
	return []byte(s), nil
}

// getenv is a wrapper around os.Getenv that ignores patterns that are numeric
// regex capture groups (ie "${1}").
func getenv(name string) string {
	numericName := true

	for _, r := range name {
		if !unicode.IsDigit(r) {
			numericName = false
			break
		}
	}

	if numericName {
		// We need to add ${} back in since envsubst removes it.
		return fmt.Sprintf("${%s}", name)
	}
	return os.Getenv(name)
}
