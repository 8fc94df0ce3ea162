package collstats_exporter //nolint:golint

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/collstats-exporter/pkg/integrations"
	"github.com/prometheus/client_golang/prometheus"
)

const disconnectTimeout = 5 * time.Second

// New creates a new collstats_exporter integration connected to the
// deployment named by the config URI.
func New(logger log.Logger, c *Config) (integrations.Integration, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid collstats_exporter config: %w", err)
	}

	source, err := NewMongoSource(context.Background(), string(c.URI))
	if err != nil {
		return nil, err
	}
	level.Debug(logger).Log("msg", "initialized MongoDB client")

	return NewWithSource(logger, c, source), nil
}

// NewWithSource creates a collstats_exporter integration reading from
// source. The source is closed when the integration stops running.
func NewWithSource(logger log.Logger, c *Config, source Source) *integrations.CollectorIntegration {
	collectors := []prometheus.Collector{
		newCollstatsCollector(logger, source, c),
	}
	if c.CollectOplog {
		collectors = append(collectors, newOplogCollector(logger, source, c.Timeout))
	}

	return integrations.NewCollectorIntegration(
		c.Name(),
		integrations.WithCollectors(collectors...),
		integrations.WithExporterMetrics(c.IncludeExporterMetrics),
		integrations.WithRunner(func(ctx context.Context) error {
			<-ctx.Done()

			closeCtx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
			defer cancel()
			if err := source.Close(closeCtx); err != nil {
				level.Warn(logger).Log("msg", "failed to disconnect from MongoDB", "err", err)
			}
			return ctx.Err()
		}),
	)
}
