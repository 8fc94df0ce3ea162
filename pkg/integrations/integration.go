// Package integrations defines the interface implemented by exporters that
// integrate with an external system and expose its telemetry as Prometheus
// metrics.
package integrations

import (
	"context"
	"net/http"

	"github.com/go-kit/log"
	"github.com/grafana/collstats-exporter/pkg/integrations/config"
)

// Config provides the configuration and constructor for an integration.
type Config interface {
	// Name returns the name of the integration and the key that will be used to
	// pull the configuration from the config YAML.
	Name() string

	// InstanceKey returns the key that identifies the system the integration
	// talks to. agentKey is the host:port of the exporter itself and is used
	// when the integration has nothing better to offer.
	InstanceKey(agentKey string) (string, error)

	// NewIntegration returns an integration for the given config with the
	// given logger.
	NewIntegration(l log.Logger) (Integration, error)
}

// An Integration is a process that integrates with some external system and
// pulls telemetry data.
type Integration interface {
	// MetricsHandler returns an http.Handler that will return metrics.
	MetricsHandler() (http.Handler, error)

	// ScrapeConfigs returns a set of scrape configs that determine where metrics
	// can be scraped.
	ScrapeConfigs() []config.ScrapeConfig

	// Run should start the integration and do any required tasks, if necessary.
	// For example, an Integration that requires a persistent connection to a
	// database would establish that connection here. If the integration doesn't
	// need to do anything, it should wait for the ctx to be canceled.
	Run(ctx context.Context) error
}
