package exporter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseTarget(t *testing.T) {
	target := BaseTarget("127.0.0.1:9216", "collstats_exporter")

	require.Equal(t, "127.0.0.1:9216", target["__address__"])
	require.Equal(t, "http", target["__scheme__"])
	require.Equal(t, "/integrations/collstats_exporter/metrics", target["__metrics_path__"])
	require.Equal(t, "integrations/collstats_exporter", target["job"])
	require.Equal(t, "127.0.0.1:9216", target["instance"])
	require.Equal(t, "collstats_exporter", target["__meta_agent_integration_name"])
}
