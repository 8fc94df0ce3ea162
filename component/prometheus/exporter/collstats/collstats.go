// Package collstats holds the River arguments of the collstats exporter.
package collstats

import (
	"time"

	"github.com/grafana/collstats-exporter/pkg/integrations/collstats_exporter"
	"github.com/grafana/river/rivertypes"
	config_util "github.com/prometheus/common/config"
)

// DefaultArguments holds the default settings for the collstats exporter.
var DefaultArguments = Arguments{
	ExcludeDatabases:  collstats_exporter.DefaultConfig.ExcludeDatabases,
	IncludeWiredTiger: collstats_exporter.DefaultConfig.IncludeWiredTiger,
	CollectOplog:      collstats_exporter.DefaultConfig.CollectOplog,
	Timeout:           collstats_exporter.DefaultConfig.Timeout,
	MaxConcurrency:    collstats_exporter.DefaultConfig.MaxConcurrency,
}

// Arguments controls the collstats exporter.
type Arguments struct {
	URI                 rivertypes.Secret `river:"mongodb_uri,attr"`
	Collections         []string          `river:"collections,attr,optional"`
	DiscoverCollections bool              `river:"discover_collections,attr,optional"`
	ExcludeDatabases    []string          `river:"exclude_databases,attr,optional"`
	IncludeWiredTiger   bool              `river:"include_wiredtiger,attr,optional"`
	IncludeIndexDetails bool              `river:"include_index_details,attr,optional"`
	IncludeIndexStats   bool              `river:"include_index_stats,attr,optional"`
	LatencyHistograms   bool              `river:"latency_histograms,attr,optional"`
	CollectOplog        bool              `river:"collect_oplog,attr,optional"`
	Timeout             time.Duration     `river:"timeout,attr,optional"`
	MaxConcurrency      int               `river:"max_concurrency,attr,optional"`
}

// SetToDefault implements river.Defaulter.
func (a *Arguments) SetToDefault() {
	*a = DefaultArguments
	a.ExcludeDatabases = append([]string(nil), DefaultArguments.ExcludeDatabases...)
}

// Validate implements river.Validator.
func (a *Arguments) Validate() error {
	return a.Convert().Validate()
}

// Convert returns the integration config of a.
func (a *Arguments) Convert() *collstats_exporter.Config {
	return &collstats_exporter.Config{
		URI:                 config_util.Secret(a.URI),
		Collections:         a.Collections,
		DiscoverCollections: a.DiscoverCollections,
		ExcludeDatabases:    a.ExcludeDatabases,
		IncludeWiredTiger:   a.IncludeWiredTiger,
		IncludeIndexDetails: a.IncludeIndexDetails,
		IncludeIndexStats:   a.IncludeIndexStats,
		LatencyHistograms:   a.LatencyHistograms,
		CollectOplog:        a.CollectOplog,
		Timeout:             a.Timeout,
		MaxConcurrency:      a.MaxConcurrency,
	}
}
