package exporter

import (
	"path"

	"github.com/grafana/collstats-exporter/component/discovery"
	"github.com/prometheus/common/model"
)

// BaseTarget returns the target that scrapes the integration called name
// through the server listening on listenAddr.
func BaseTarget(listenAddr, name string) discovery.Target {
	return discovery.Target{
		model.AddressLabel:              listenAddr,
		model.SchemeLabel:               "http",
		model.MetricsPathLabel:          path.Join("/integrations", name, "metrics"),
		"instance":                      listenAddr,
		"job":                           "integrations/" + name,
		"__meta_agent_integration_name": name,
	}
}
