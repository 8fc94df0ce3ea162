package main

import (
	"fmt"

	"github.com/grafana/collstats-exporter/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

func configCheckCommand() *cobra.Command {
	var expandEnv bool

	cmd := &cobra.Command{
		Use:   "config-check [flags] file",
		Short: "Load and validate a configuration file",
		Long: `The config-check subcommand loads a configuration file, reports every
problem found in it and prints the scrape targets of the exporter.
`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if err := config.LoadFile(args[0], expandEnv, &cfg); err != nil {
				return fmt.Errorf("error loading config file %s: %w", args[0], err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("error in config file: %w", err)
			}

			out, err := yaml.Marshal(map[string]interface{}{"targets": cfg.Targets()})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config OK\n%s", out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&expandEnv, "config.expand-env", false, "Expands ${var} in config according to the values of the environment variables.")
	return cmd
}
