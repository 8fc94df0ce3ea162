// Package config provides common configuration structs shared among
// implementations of integrations.Integration.
package config

import "time"

// Common is a set of common options shared by all integrations. It should be
// utilised by an integration's config by inlining the common options:
//
//	type IntegrationConfig struct {
//	  Common config.Common `yaml:",inline"`
//	}
type Common struct {
	InstanceKey    *string       `yaml:"instance,omitempty"`
	ScrapeInterval time.Duration `yaml:"scrape_interval,omitempty"`
	ScrapeTimeout  time.Duration `yaml:"scrape_timeout,omitempty"`
}

// ScrapeConfig is a subset of options used by integrations to inform how samples
// should be scraped.
type ScrapeConfig struct {
	// JobName should be a unique name indicating the collection of samples to be
	// scraped.
	JobName string

	// MetricsPath is the path relative to the integration where metrics are exposed.
	// The path will be prepended by "/integrations/<integration name>" when
	// mounted by the server.
	MetricsPath string
}
