package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/go-kit/log"
	integrations_config "github.com/grafana/collstats-exporter/pkg/integrations/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const anyLocalhost = "127.0.0.1:0"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestServer(t *testing.T) {
	srv := runExampleServer(t, newTestConfig(), nil)

	requireEventuallyStatus(t, srv, "/-/ready", http.StatusOK)

	status, body := get(t, srv, "/-/healthy")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Exporter is Healthy.\n", body)

	status, body = get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, `collstats_exporter_request_duration_seconds_count{code="200",method="get",route="/-/healthy"} 1`)
	require.Contains(t, body, "collstats_exporter_tcp_connections_limit 0")

	status, _ = get(t, srv, "/does-not-exist")
	require.Equal(t, http.StatusNotFound, status)
}

func TestServer_MountIntegration(t *testing.T) {
	fake := newFakeIntegration()
	srv := runExampleServer(t, newTestConfig(), map[string]*fakeIntegration{"fake_exporter": fake})

	requireEventuallyStatus(t, srv, "/-/ready", http.StatusOK)

	status, body := get(t, srv, "/integrations/fake_exporter/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "fake_metric 1\n", body)

	select {
	case <-fake.running:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "integration never ran")
	}

	require.ErrorContains(t, srv.MountIntegration("fake_exporter", newFakeIntegration()), `integration "fake_exporter" already mounted`)
}

func TestServer_IntegrationFailure(t *testing.T) {
	cfg := newTestConfig()
	srv, err := New(log.NewNopLogger(), nil, nil, cfg)
	require.NoError(t, err)

	fake := newFakeIntegration()
	fake.runErr = errors.New("connection lost")
	require.NoError(t, srv.MountIntegration("fake_exporter", fake))

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	select {
	case err := <-done:
		require.EqualError(t, err, "connection lost")
	case <-time.After(5 * time.Second):
		require.FailNow(t, "server did not stop")
	}
}

func TestServer_ConnLimit(t *testing.T) {
	cfg := newTestConfig()
	cfg.HTTPConnLimit = 2

	srv, err := New(log.NewNopLogger(), nil, nil, cfg)
	require.NoError(t, err)
	defer srv.Close()

	require.Equal(t, 2.0, testutil.ToFloat64(srv.m.tcpConnectionsLimit))
}

func TestServer_AddressInUse(t *testing.T) {
	srv, err := New(log.NewNopLogger(), nil, nil, newTestConfig())
	require.NoError(t, err)
	defer srv.Close()

	cfg := newTestConfig()
	cfg.HTTPListenAddress = srv.HTTPAddress().String()
	_, err = New(log.NewNopLogger(), nil, nil, cfg)
	require.ErrorContains(t, err, "creating HTTP listener")
}

func TestServer_InvalidConfig(t *testing.T) {
	cfg := newTestConfig()
	cfg.LogFormat = "xml"
	_, err := New(log.NewNopLogger(), nil, nil, cfg)
	require.ErrorContains(t, err, "log_format")
}

func TestIntegrationPath(t *testing.T) {
	require.Equal(t, "/integrations/collstats_exporter/metrics", IntegrationPath("collstats_exporter", "/metrics"))
	require.Equal(t, "/integrations/collstats_exporter/metrics", IntegrationPath("collstats_exporter", "metrics"))
}

func newTestConfig() Config {
	cfg := DefaultConfig()
	cfg.HTTPListenAddress = anyLocalhost
	cfg.GracefulShutdownTimeout = time.Second
	return cfg
}

func runExampleServer(t *testing.T, cfg Config, mounts map[string]*fakeIntegration) *Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	srv, err := New(log.NewNopLogger(), reg, reg, cfg)
	require.NoError(t, err)

	for name, i := range mounts {
		require.NoError(t, srv.MountIntegration(name, i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			require.FailNow(t, "server did not stop")
		}
	})
	return srv
}

func get(t *testing.T, srv *Server, path string) (int, string) {
	t.Helper()

	client := http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get(fmt.Sprintf("http://%s%s", srv.HTTPAddress(), path))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func requireEventuallyStatus(t *testing.T, srv *Server, path string, status int) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, _ := get(t, srv, path)
		return got == status
	}, 5*time.Second, 10*time.Millisecond)
}

type fakeIntegration struct {
	running chan struct{}
	runErr  error
}

func newFakeIntegration() *fakeIntegration {
	return &fakeIntegration{running: make(chan struct{})}
}

func (i *fakeIntegration) MetricsHandler() (http.Handler, error) {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "fake_metric 1")
	}), nil
}

func (i *fakeIntegration) ScrapeConfigs() []integrations_config.ScrapeConfig {
	return []integrations_config.ScrapeConfig{{JobName: "fake_exporter", MetricsPath: "/metrics"}}
}

func (i *fakeIntegration) Run(ctx context.Context) error {
	close(i.running)
	if i.runErr != nil {
		return i.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}
