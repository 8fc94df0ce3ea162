package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/grafana/collstats-exporter/pkg/config"
	"github.com/grafana/collstats-exporter/pkg/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"
)

type serve struct {
	configFile      string
	configExpandEnv bool
}

func serveCommand() *cobra.Command {
	var s serve

	cmd := &cobra.Command{
		Use:   "serve [flags]",
		Short: "Run the exporter",
		Long: `The serve subcommand runs the exporter in the foreground until an interrupt
is received.

Metrics of the MongoDB deployment are served at /integrations/collstats_exporter/metrics,
metrics of the exporter itself at /metrics.
`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&s.configFile, "config.file", "", "configuration file to load (YAML, or River with the .river extension)")
	cmd.Flags().BoolVar(&s.configExpandEnv, "config.expand-env", false, "Expands ${var} in config according to the values of the environment variables.")
	return cmd
}

func (s *serve) Run(ctx context.Context) error {
	if s.configFile == "" {
		return errors.New("--config.file flag required")
	}

	// Set up logging using default values before loading the config.
	defaultCfg := server.DefaultConfig()
	logger, err := server.NewLogger(&defaultCfg)
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if err := config.LoadFile(s.configFile, s.configExpandEnv, &cfg); err != nil {
		return fmt.Errorf("error loading config file %s: %w", s.configFile, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("error in config file: %w", err)
	}
	if err := logger.ApplyConfig(&cfg.Server); err != nil {
		return err
	}

	prometheus.MustRegister(version.NewCollector("collstats_exporter"))

	srv, err := server.New(logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer, cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	integration, err := cfg.CollstatsExporter.NewIntegration(logger)
	if err != nil {
		_ = srv.Close()
		return err
	}
	if err := srv.MountIntegration(cfg.CollstatsExporter.Name(), integration); err != nil {
		_ = srv.Close()
		return err
	}

	ctx, cancel := server.SignalContext(ctx, logger)
	defer cancel()

	level.Info(logger).Log("msg", "starting collstats exporter", "version", version.Info())
	if err := srv.Run(ctx); err != nil {
		level.Error(logger).Log("msg", "error running exporter", "err", err)
		return err
	}
	level.Info(logger).Log("msg", "exporter exiting")
	return nil
}
