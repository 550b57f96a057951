package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/export"
)

func (a *app) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Convert events or alerts for a SIEM",
	}
	cmd.PersistentFlags().String("in", "", "input JSONL (events or alerts)")
	cmd.PersistentFlags().String("out", "", "output JSONL")

	hec := &cobra.Command{
		Use:   "hec",
		Short: "Splunk HTTP Event Collector envelopes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, out, err := a.exportIO()
			if err != nil {
				return err
			}
			events := export.SplunkHECAll(recs, export.HECOptions{
				Index:      a.v.GetString("index"),
				Sourcetype: a.v.GetString("sourcetype"),
				Host:       a.v.GetString("host"),
			})
			if err := writeExport(out, events); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d HEC events to %s\n", len(events), out)
			return nil
		},
	}
	hec.Flags().String("index", export.DefaultHECIndex, "Splunk index")
	hec.Flags().String("sourcetype", export.DefaultHECSourcetype, "Splunk sourcetype")
	hec.Flags().String("host", export.DefaultHECHost, "Splunk host field")

	sentinel := &cobra.Command{
		Use:   "sentinel",
		Short: "Flat Log Analytics records for Microsoft Sentinel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, out, err := a.exportIO()
			if err != nil {
				return err
			}
			table := a.v.GetString("table")
			records := export.LogAnalyticsAll(recs, table)
			if err := writeExport(out, records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s (table hint: %s)\n", len(records), out, table)
			return nil
		},
	}
	sentinel.Flags().String("table", export.DefaultTable, "target custom table name")

	cmd.AddCommand(hec, sentinel)
	return cmd
}

func (a *app) exportIO() ([]export.Record, string, error) {
	in, err := a.required("in")
	if err != nil {
		return nil, "", err
	}
	out, err := a.required("out")
	if err != nil {
		return nil, "", err
	}
	recs, err := export.ReadFile(in)
	return recs, out, err
}

func writeExport[T any](path string, items []T) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteJSONL(f, items); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
