package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/eventlog"
)

func (a *app) verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the integrity chain of an event log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := a.required("in")
			if err != nil {
				return err
			}
			res, err := eventlog.VerifyFile(in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d events, head %s\n", res.Events, res.Head)
			return nil
		},
	}
	cmd.Flags().String("in", "", "event log JSONL")
	return cmd
}
