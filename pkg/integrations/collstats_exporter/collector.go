package collstats_exporter //nolint:golint

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/collstats-exporter/pkg/collstats"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// collstatsCollector gathers $collStats for every configured or discovered
// collection on each scrape.
type collstatsCollector struct {
	mut    sync.Mutex
	logger log.Logger
	source Source
	cfg    *Config

	upDesc       *prometheus.Desc
	durationDesc *prometheus.Desc
	scrapeErrors *prometheus.CounterVec
}

func newCollstatsCollector(logger log.Logger, source Source, cfg *Config) *collstatsCollector {
	return &collstatsCollector{
		logger: logger,
		source: source,
		cfg:    cfg,

		upDesc: prometheus.NewDesc(
			collstatsName("up"),
			"Whether the last scrape could reach MongoDB.",
			nil, nil,
		),
		durationDesc: prometheus.NewDesc(
			collstatsName("scrape_duration_seconds"),
			"Duration of the last scrape.",
			nil, nil,
		),
		scrapeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: collstatsSubsystem,
			Name:      "scrape_errors_total",
			Help:      "Number of namespaces whose statistics could not be gathered.",
		}, []string{"database", "collection"}),
	}
}

// Describe sends nothing: the series depend on the collections and the
// statistics found at scrape time, which makes the collector unchecked.
func (c *collstatsCollector) Describe(chan<- *prometheus.Desc) {}

func (c *collstatsCollector) Collect(ch chan<- prometheus.Metric) {
	c.mut.Lock()
	defer c.mut.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	up := 1.0
	if err := c.source.Ping(ctx); err != nil {
		level.Error(c.logger).Log("msg", "cannot reach MongoDB", "err", err)
		up = 0
	} else {
		c.collect(ctx, ch)
	}

	ch <- prometheus.MustNewConstMetric(c.upDesc, prometheus.GaugeValue, up)
	ch <- prometheus.MustNewConstMetric(c.durationDesc, prometheus.GaugeValue, time.Since(start).Seconds())
	c.scrapeErrors.Collect(ch)
}

func (c *collstatsCollector) collect(ctx context.Context, ch chan<- prometheus.Metric) {
	namespaces, err := c.namespaces(ctx)
	if err != nil {
		level.Error(c.logger).Log("msg", "cannot discover databases and collections", "err", err)
		c.scrapeErrors.WithLabelValues("", "").Inc()
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrency)
	for _, ns := range namespaces {
		ns := ns
		g.Go(func() error {
			for _, m := range c.collectNamespace(ctx, ns) {
				ch <- m
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (c *collstatsCollector) collectNamespace(ctx context.Context, ns collstats.Namespace) []prometheus.Metric {
	logger := log.With(c.logger, "database", ns.Database, "collection", ns.Collection)
	fail := func(msg string, err error) {
		level.Error(logger).Log("msg", msg, "err", err)
		c.scrapeErrors.WithLabelValues(ns.Database, ns.Collection).Inc()
	}

	stats, err := c.source.CollStats(ctx, ns, c.cfg.statsOptions())
	if err != nil {
		fail("cannot get $collStats", err)
		return nil
	}
	level.Debug(logger).Log("msg", "got $collStats", "documents", len(stats))

	var res []prometheus.Metric
	for _, s := range stats {
		metrics, err := StatsMetrics(s, c.cfg.statsOptions())
		if err != nil {
			fail("cannot convert $collStats", err)
			continue
		}
		res = append(res, metrics...)
	}

	if c.cfg.IncludeIndexStats {
		accesses, err := c.source.IndexStats(ctx, ns)
		if err != nil {
			fail("cannot get $indexStats", err)
			return res
		}
		res = append(res, IndexStatsMetrics(ns, accesses)...)
	}
	return res
}

// namespaces returns the namespaces to gather in this scrape.
func (c *collstatsCollector) namespaces(ctx context.Context) ([]collstats.Namespace, error) {
	if !c.cfg.DiscoverCollections {
		res := make([]collstats.Namespace, 0, len(c.cfg.Collections))
		for _, s := range c.cfg.Collections {
			ns, err := collstats.ParseNamespace(s)
			if err != nil {
				return nil, err
			}
			res = append(res, ns)
		}
		return res, nil
	}

	all, err := c.source.ListCollections(ctx, c.cfg.ExcludeDatabases)
	if err != nil {
		return nil, err
	}
	if len(c.cfg.Collections) == 0 {
		return all, nil
	}

	var res []collstats.Namespace
	for _, ns := range all {
		for _, prefix := range c.cfg.Collections {
			if strings.HasPrefix(ns.String(), prefix) {
				res = append(res, ns)
				break
			}
		}
	}
	return res, nil
}

// oplogCollector reports the replication window of the oplog.
type oplogCollector struct {
	mut     sync.Mutex
	logger  log.Logger
	source  Source
	timeout time.Duration
}

func newOplogCollector(logger log.Logger, source Source, timeout time.Duration) *oplogCollector {
	return &oplogCollector{
		logger:  log.With(logger, "database", OplogNamespace.Database, "collection", OplogNamespace.Collection),
		source:  source,
		timeout: timeout,
	}
}

// Describe sends nothing, see collstatsCollector.Describe.
func (c *oplogCollector) Describe(chan<- *prometheus.Desc) {}

func (c *oplogCollector) Collect(ch chan<- prometheus.Metric) {
	c.mut.Lock()
	defer c.mut.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.source.CollStats(ctx, OplogNamespace, StatsOptions{})
	if err != nil {
		// Standalone servers have no oplog.
		level.Debug(c.logger).Log("msg", "cannot get oplog $collStats", "err", err)
		return
	}
	if len(stats) == 0 {
		return
	}

	s := &stats[0]
	if st := s.StorageStats; st != nil && st.MaxSize == nil {
		level.Warn(c.logger).Log("msg", "oplog is not capped, skipping its configured size")
	}

	var window *OplogWindow
	switch w, err := c.source.OplogWindow(ctx); {
	case errors.Is(err, ErrEmptyOplog):
		level.Debug(c.logger).Log("msg", "oplog is empty, skipping the replication window")
	case err != nil:
		level.Warn(c.logger).Log("msg", "cannot read the replication window", "err", err)
	default:
		window = &w
	}

	for _, m := range OplogMetrics(s, window) {
		ch <- m
	}
}

var (
	_ prometheus.Collector = (*collstatsCollector)(nil)
	_ prometheus.Collector = (*oplogCollector)(nil)
)
