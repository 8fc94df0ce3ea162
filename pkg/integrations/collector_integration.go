package integrations

import (
	"context"
	"fmt"
	"net/http"

	"github.com/grafana/collstats-exporter/pkg/integrations/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
)

// CollectorIntegration is an integration exposing metrics from one or more
// Prometheus collectors, next to a <name>_build_info metric.
type CollectorIntegration struct {
	name            string
	cs              []prometheus.Collector
	exporterMetrics bool
	runner          func(context.Context) error
}

// CollectorOption configures a CollectorIntegration.
type CollectorOption func(*CollectorIntegration)

// NewCollectorIntegration creates an integration serving cs. Without
// WithRunner, Run blocks until its context is canceled.
func NewCollectorIntegration(name string, opts ...CollectorOption) *CollectorIntegration {
	i := &CollectorIntegration{
		name: name,
		runner: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// WithCollectors adds collectors to the integration.
func WithCollectors(cs ...prometheus.Collector) CollectorOption {
	return func(i *CollectorIntegration) { i.cs = append(i.cs, cs...) }
}

// WithRunner sets the function called by Run. It must return once ctx is
// done.
func WithRunner(runner func(context.Context) error) CollectorOption {
	return func(i *CollectorIntegration) { i.runner = runner }
}

// WithExporterMetrics adds the Go runtime, process and promhttp metrics of
// the exporter itself when enabled is true.
func WithExporterMetrics(enabled bool) CollectorOption {
	return func(i *CollectorIntegration) { i.exporterMetrics = enabled }
}

// Registry returns a new registry holding every collector of i.
func (i *CollectorIntegration) Registry() (*prometheus.Registry, error) {
	cs := append([]prometheus.Collector{version.NewCollector(i.name)}, i.cs...)
	if i.exporterMetrics {
		cs = append(cs,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	reg := prometheus.NewRegistry()
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("%s: registering collector: %w", i.name, err)
		}
	}
	return reg, nil
}

// MetricsHandler satisfies Integration.MetricsHandler. Collection errors
// are logged by the collectors and do not fail the scrape.
func (i *CollectorIntegration) MetricsHandler() (http.Handler, error) {
	reg, err := i.Registry()
	if err != nil {
		return nil, err
	}

	opts := promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError}
	if !i.exporterMetrics {
		return promhttp.HandlerFor(reg, opts), nil
	}

	opts.Registry = reg
	return promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(reg, opts)), nil
}

// ScrapeConfigs satisfies Integration.ScrapeConfigs.
func (i *CollectorIntegration) ScrapeConfigs() []config.ScrapeConfig {
	return []config.ScrapeConfig{{JobName: i.name, MetricsPath: "/metrics"}}
}

// Run satisfies Integration.Run.
func (i *CollectorIntegration) Run(ctx context.Context) error {
	return i.runner(ctx)
}
