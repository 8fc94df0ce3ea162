package main

import (
	"io"

	"github.com/grafana/collstats-exporter/pkg/collstats"
	"github.com/grafana/collstats-exporter/pkg/integrations"
	"github.com/grafana/collstats-exporter/pkg/integrations/collstats_exporter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

func metricsCommand() *cobra.Command {
	var opts collstats_exporter.StatsOptions

	cmd := &cobra.Command{
		Use:   "metrics [flags] file",
		Short: "Print the metrics the exporter produces for $collStats documents",
		Long: `The metrics subcommand converts a file of $collStats documents into the
Prometheus text exposition format, as the exporter would serve them. The
oplog metrics are included for documents of local.oplog.rs, without the
replication window, which needs a live server.
`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := collstats.DecodeFile(args[0])
			if err != nil {
				return err
			}
			return writeMetrics(cmd.OutOrStdout(), stats, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.WiredTiger, "include-wiredtiger", true, "Include the WiredTiger statistics")
	cmd.Flags().BoolVar(&opts.IndexDetails, "include-index-details", false, "Include the WiredTiger statistics of every index")
	cmd.Flags().BoolVar(&opts.Histograms, "latency-histograms", false, "Include the latency histograms")
	return cmd
}

func writeMetrics(w io.Writer, stats []collstats.Stats, opts collstats_exporter.StatsOptions) error {
	var metrics staticCollector
	for i := range stats {
		m, err := collstats_exporter.StatsMetrics(stats[i], opts)
		if err != nil {
			return err
		}
		metrics = append(metrics, m...)

		if ns, err := stats[i].ParsedNamespace(); err == nil && ns == collstats_exporter.OplogNamespace {
			metrics = append(metrics, collstats_exporter.OplogMetrics(&stats[i], nil)...)
		}
	}

	var cfg collstats_exporter.Config
	reg, err := integrations.NewCollectorIntegration(cfg.Name(), integrations.WithCollectors(metrics)).Registry()
	if err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}

	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// staticCollector sends a fixed set of metrics.
type staticCollector []prometheus.Metric

func (c staticCollector) Describe(chan<- *prometheus.Desc) {}

func (c staticCollector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c {
		ch <- m
	}
}
