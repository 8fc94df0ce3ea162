package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/grafana/collstats-exporter/pkg/collstats"
	"github.com/grafana/collstats-exporter/pkg/collstats/wtconfig"
	"github.com/hashicorp/go-multierror"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func decodeCommand() *cobra.Command {
	var indent bool

	cmd := &cobra.Command{
		Use:   "decode [flags] file",
		Short: "Decode $collStats documents and print them as relaxed Extended JSON",
		Long: `The decode subcommand reads a file holding one $collStats document or an
array of them, in relaxed or canonical Extended JSON, and prints the
documents back as relaxed Extended JSON.
`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := collstats.DecodeFile(args[0])
			if err != nil {
				return err
			}

			var out []byte
			if indent {
				out, err = collstats.EncodeIndent(stats, "  ")
			} else {
				out, err = collstats.Encode(stats)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().BoolVar(&indent, "indent", false, "Indent the output")
	return cmd
}

func validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate file",
		Short: "Check $collStats documents for inconsistencies",
		Long: `The validate subcommand decodes a file of $collStats documents and checks
every document. Each problem found is printed, and the command exits with a
non-zero status if any was found.
`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := collstats.DecodeFile(args[0])
			if err != nil {
				return err
			}
			return validateStats(cmd.OutOrStdout(), stats)
		},
	}
}

func validateStats(w io.Writer, stats []collstats.Stats) error {
	var problems int
	for i := range stats {
		err := stats[i].Validate()
		if err == nil {
			continue
		}

		errs := []error{err}
		var merr *multierror.Error
		if errors.As(err, &merr) {
			errs = merr.Errors
		}
		for _, e := range errs {
			fmt.Fprintf(w, "document %d (%s): %s\n", i, stats[i].Namespace, e)
		}
		problems += len(errs)
	}

	if problems > 0 {
		return fmt.Errorf("found %d problem(s) in %d document(s)", problems, len(stats))
	}
	fmt.Fprintf(w, "%d document(s) OK\n", len(stats))
	return nil
}

func inspectCommand() *cobra.Command {
	var wiredTiger bool

	cmd := &cobra.Command{
		Use:          "inspect [flags] file",
		Short:        "Summarize $collStats documents as a table",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := collstats.DecodeFile(args[0])
			if err != nil {
				return err
			}
			renderInspect(cmd.OutOrStdout(), stats)
			if wiredTiger {
				renderCreationStrings(cmd.OutOrStdout(), stats)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&wiredTiger, "wiredtiger", false, "Also print the WiredTiger table settings of every collection")
	return cmd
}

func renderInspect(w io.Writer, stats []collstats.Stats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Namespace", "Count", "Size", "Avg Obj Size", "Storage Size", "Capped", "Max", "Max Size", "Latency Ops"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, s := range stats {
		row := []string{s.Namespace, "-", "-", "-", "-", "-", "-", "-", "-"}

		if s.Count != nil {
			row[1] = strconv.FormatInt(*s.Count, 10)
		}
		if st := s.StorageStats; st != nil {
			row[1] = strconv.FormatInt(st.Count, 10)
			row[2] = strconv.FormatInt(st.Bytes(st.Size), 10)
			row[3] = strconv.FormatInt(st.AvgObjSize, 10)
			row[4] = strconv.FormatInt(st.Bytes(st.StorageSize), 10)
			row[5] = strconv.FormatBool(st.Capped)
			if st.Max != nil {
				row[6] = strconv.FormatInt(*st.Max, 10)
			}
			if st.MaxSize != nil {
				row[7] = strconv.FormatInt(st.Bytes(*st.MaxSize), 10)
			}
		}
		if s.LatencyStats != nil {
			var ops int64
			s.LatencyStats.Ops(func(_ collstats.OpType, op collstats.OpLatency) { ops += op.Ops })
			row[8] = strconv.FormatInt(ops, 10)
		}

		table.Append(row)
	}
	table.Render()
}

func renderCreationStrings(w io.Writer, stats []collstats.Stats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Namespace", "Setting", "Value"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, s := range stats {
		if s.StorageStats == nil || s.StorageStats.WiredTiger == nil {
			continue
		}
		cfg, err := wtconfig.Parse(s.StorageStats.WiredTiger.CreationString)
		if err != nil {
			table.Append([]string{s.Namespace, "creationString", "invalid: " + err.Error()})
			continue
		}

		settings := cfg.Map()
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			table.Append([]string{s.Namespace, k, settings[k]})
		}
	}
	table.Render()
}
