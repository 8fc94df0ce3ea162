package integrations

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestCollectorIntegration_MetricsHandler(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "Test gauge."})
	gauge.Set(42)

	t.Run("collectors only", func(t *testing.T) {
		i := NewCollectorIntegration("test_exporter", WithCollectors(gauge))
		body := scrape(t, i)
		require.Contains(t, body, "test_gauge 42")
		require.Contains(t, body, "test_exporter_build_info")
		require.NotContains(t, body, "go_goroutines")
	})

	t.Run("exporter metrics", func(t *testing.T) {
		i := NewCollectorIntegration("test_exporter", WithCollectors(gauge), WithExporterMetrics(true))
		body := scrape(t, i)
		require.Contains(t, body, "test_gauge 42")
		require.Contains(t, body, "go_goroutines")
		require.Contains(t, body, "promhttp_metric_handler_requests_total")
	})

	t.Run("duplicate collectors", func(t *testing.T) {
		i := NewCollectorIntegration("test_exporter", WithCollectors(gauge, gauge))
		_, err := i.MetricsHandler()
		require.ErrorContains(t, err, "test_exporter: registering collector")
	})
}

func TestCollectorIntegration_Registry(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "Test gauge."})

	reg, err := NewCollectorIntegration("test_exporter", WithCollectors(gauge)).Registry()
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	require.Equal(t, []string{"test_exporter_build_info", "test_gauge"}, names)
}

func TestCollectorIntegration_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	i := NewCollectorIntegration("test_exporter")
	require.ErrorIs(t, i.Run(ctx), context.Canceled)

	runErr := errors.New("stopped")
	i = NewCollectorIntegration("test_exporter", WithRunner(func(context.Context) error { return runErr }))
	require.ErrorIs(t, i.Run(context.Background()), runErr)

	require.Equal(t, "/metrics", i.ScrapeConfigs()[0].MetricsPath)
}

func scrape(t *testing.T, i Integration) string {
	t.Helper()

	h, err := i.MetricsHandler()
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
