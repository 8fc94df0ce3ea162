// Package instrumentation exposes metrics about configuration loading.
package instrumentation

import (
	"crypto/sha256"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Configuration file formats.
const (
	FormatYAML  = "yaml"
	FormatRiver = "river"
)

type loadMetrics struct {
	hash        *prometheus.GaugeVec
	lastSuccess prometheus.Gauge
	lastLoad    *prometheus.GaugeVec
	loads       *prometheus.CounterVec
}

// ConfigMetrics records the configuration loads of the process.
var ConfigMetrics = newLoadMetrics(prometheus.DefaultRegisterer)

func newLoadMetrics(r prometheus.Registerer) *loadMetrics {
	f := promauto.With(r)
	return &loadMetrics{
		hash: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "collstats_exporter_config_hash",
			Help: "Hash of the last configuration file read, before environment expansion.",
		}, []string{"sha256", "format"}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "collstats_exporter_config_last_load_successful",
			Help: "Whether the last configuration load succeeded.",
		}),
		lastLoad: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "collstats_exporter_config_last_load_timestamp_seconds",
			Help: "Timestamp of the last configuration load by result.",
		}, []string{"result"}),
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "collstats_exporter_config_loads_total",
			Help: "Configuration loads by file format and result.",
		}, []string{"format", "result"}),
	}
}

// ObserveLoad records a load of a configuration file. buf is the content of
// the file and is nil when it could not be read, in which case the hash of
// the previous file is kept.
func (m *loadMetrics) ObserveLoad(format string, buf []byte, err error) {
	if buf != nil {
		m.hash.Reset()
		m.hash.WithLabelValues(fmt.Sprintf("%x", sha256.Sum256(buf)), format).Set(1)
	}

	result, success := "success", 1.0
	if err != nil {
		result, success = "failure", 0
	}
	m.lastSuccess.Set(success)
	m.lastLoad.WithLabelValues(result).SetToCurrentTime()
	m.loads.WithLabelValues(format, result).Inc()
}
