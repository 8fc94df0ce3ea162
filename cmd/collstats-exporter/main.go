// Command collstats-exporter exposes MongoDB $collStats results as Prometheus
// metrics and works with $collStats documents saved as Extended JSON.
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var cmd = &cobra.Command{
		Use:     fmt.Sprintf("%s [global options] <subcommand>", os.Args[0]),
		Short:   "MongoDB $collStats exporter",
		Version: version.Print("collstats-exporter"),

		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		},
	}
	cmd.SetVersionTemplate("{{ .Version }}\n")

	cmd.AddCommand(
		serveCommand(),
		decodeCommand(),
		validateCommand(),
		inspectCommand(),
		metricsCommand(),
		configCheckCommand(),
	)
	return cmd
}
