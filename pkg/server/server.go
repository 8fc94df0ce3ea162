// Package server implements the HTTP server of the collstats exporter.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/grafana/collstats-exporter/pkg/integrations"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
	"golang.org/x/net/netutil"
)

// Server wraps an HTTP server serving self metrics, health endpoints and
// mounted integrations.
type Server struct {
	log log.Logger
	cfg Config
	m   *metrics

	listener net.Listener
	ready    atomic.Bool

	mut          sync.Mutex
	integrations map[string]integrations.Integration

	HTTP       *mux.Router
	HTTPServer *http.Server
}

type metrics struct {
	tcpConnectionsLimit prometheus.Gauge
	requestDuration     *prometheus.HistogramVec
}

func newMetrics(r prometheus.Registerer) (*metrics, error) {
	var m metrics

	m.tcpConnectionsLimit = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "collstats_exporter_tcp_connections_limit",
		Help: "The maximum number of TCP connections that can be accepted (0 = unlimited)",
	})
	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collstats_exporter_request_duration_seconds",
		Help:    "Time in seconds spent serving HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "code"})

	if r != nil {
		for _, c := range []prometheus.Collector{m.tcpConnectionsLimit, m.requestDuration} {
			if err := r.Register(c); err != nil {
				return nil, fmt.Errorf("failed registering server metrics: %w", err)
			}
		}
	}
	return &m, nil
}

// New creates a new Server with the given config.
//
// r is used to register Server-specific metrics. If r is nil, no metrics will
// be registered.
//
// g is used for serving the exporter's own metrics. If g is nil, a /metrics
// endpoint will not be registered.
func New(l log.Logger, r prometheus.Registerer, g prometheus.Gatherer, cfg Config) (srv *Server, err error) {
	if l == nil {
		l = log.NewNopLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m, err := newMetrics(r)
	if err != nil {
		return nil, err
	}

	// Create the listener first so we can fail early if the port is in use.
	listener, err := newHTTPListener(&cfg, m)
	if err != nil {
		return nil, err
	}

	level.Info(l).Log("msg", "server listening on address", "http", listener.Addr())

	srv = &Server{
		log:          l,
		cfg:          cfg,
		m:            m,
		listener:     listener,
		integrations: make(map[string]integrations.Integration),
		HTTP:         mux.NewRouter(),
	}
	srv.HTTPServer = &http.Server{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		Handler:      srv.HTTP,
	}

	if g != nil {
		srv.handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}
	srv.handle("/-/healthy", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Exporter is Healthy.\n")
	}))
	srv.handle("/-/ready", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !srv.ready.Load() {
			http.Error(w, "Exporter is not ready.", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Exporter is Ready.\n")
	}))

	return srv, nil
}

func newHTTPListener(cfg *Config, m *metrics) (net.Listener, error) {
	httpListener, err := net.Listen("tcp", cfg.HTTPListenAddress)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP listener: %w", err)
	}

	m.tcpConnectionsLimit.Set(float64(cfg.HTTPConnLimit))
	if cfg.HTTPConnLimit > 0 {
		httpListener = netutil.LimitListener(httpListener, cfg.HTTPConnLimit)
	}
	return httpListener, nil
}

// handle registers h for route, recording request durations.
func (s *Server) handle(route string, h http.Handler) {
	observer := s.m.requestDuration.MustCurryWith(prometheus.Labels{"route": route})
	s.HTTP.Handle(route, promhttp.InstrumentHandlerDuration(observer, h))
}

// MountIntegration exposes the metrics of i under /integrations/<name>/ and
// runs i alongside the server.
func (s *Server) MountIntegration(name string, i integrations.Integration) error {
	s.mut.Lock()
	defer s.mut.Unlock()

	if _, exist := s.integrations[name]; exist {
		return fmt.Errorf("integration %q already mounted", name)
	}

	handler, err := i.MetricsHandler()
	if err != nil {
		return fmt.Errorf("creating metrics handler for %s: %w", name, err)
	}
	for _, sc := range i.ScrapeConfigs() {
		s.handle(IntegrationPath(name, sc.MetricsPath), handler)
	}
	s.integrations[name] = i
	return nil
}

// IntegrationPath returns the absolute path metricsPath of the integration
// name is served on.
func IntegrationPath(name, metricsPath string) string {
	return path.Join("/integrations", name, metricsPath)
}

// HTTPAddress returns the HTTP net.Addr of this Server.
func (s *Server) HTTPAddress() net.Addr { return s.listener.Addr() }

// Run the server and its integrations until an error is received or the given
// context is canceled. Run may not be re-called after it exits.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group

	g.Add(func() error {
		<-ctx.Done()
		return nil
	}, func(_ error) {
		cancel()
	})

	g.Add(func() error {
		s.ready.Store(true)
		err := s.HTTPServer.Serve(s.listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	}, func(_ error) {
		s.ready.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GracefulShutdownTimeout)
		defer cancel()
		_ = s.HTTPServer.Shutdown(ctx)
	})

	s.mut.Lock()
	for name, i := range s.integrations {
		name, i := name, i
		g.Add(func() error {
			err := i.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			} else if err != nil {
				level.Error(s.log).Log("msg", "integration exited with error", "integration", name, "err", err)
			}
			return err
		}, func(_ error) {
			cancel()
		})
	}
	s.mut.Unlock()

	return g.Run()
}

// Close forcibly closes the server's listener.
func (s *Server) Close() error {
	return s.listener.Close()
}
