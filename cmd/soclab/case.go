package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/alert"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/casefile"
)

func (a *app) caseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "case",
		Short: "Open and update markdown case files",
	}
	cmd.PersistentFlags().String("case", "", "case markdown file")

	open := &cobra.Command{
		Use:   "open",
		Short: "Create a case file, titled from the most severe alert when --alerts is given",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.required("case")
			if err != nil {
				return err
			}
			title := a.v.GetString("title")
			severity := a.v.GetString("severity")
			sessionID := a.v.GetString("session-id")
			traceID := a.v.GetString("trace-id")
			if in := a.v.GetString("alerts"); in != "" {
				alerts, err := alert.ReadFile(in)
				if err != nil {
					return err
				}
				if top, ok := casefile.Headline(alerts); ok {
					title = or(title, top.Msg)
					severity = or(severity, top.Severity)
					sessionID = or(sessionID, top.SessionID)
					traceID = or(traceID, top.TraceID)
				}
			}
			if title == "" {
				return fmt.Errorf("--title or --alerts is required")
			}
			created, err := casefile.Ensure(path, title, severity, sessionID, traceID)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Opened case %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Case %s already exists\n", path)
			}
			return nil
		},
	}
	open.Flags().String("title", "", "case title")
	open.Flags().String("severity", "", "case severity")
	open.Flags().String("session-id", "", "session id")
	open.Flags().String("trace-id", "", "trace id")
	open.Flags().String("alerts", "", "alerts JSONL to take defaults from")

	update := &cobra.Command{
		Use:   "update",
		Short: "Append a triage update listing alerts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.required("case")
			if err != nil {
				return err
			}
			in, err := a.required("alerts")
			if err != nil {
				return err
			}
			alerts, err := alert.ReadFile(in)
			if err != nil {
				return err
			}
			notes := a.v.GetStringSlice("note")
			if len(notes) == 0 {
				notes = casefile.DefaultTriageNotes
			}
			if err := casefile.AppendUpdate(path, alerts, notes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Appended triage notes to %s\n", path)
			return nil
		},
	}
	update.Flags().String("alerts", "", "alerts JSONL")
	update.Flags().StringSlice("note", nil, "triage note (repeatable; defaults to the standard checklist)")

	cmd.AddCommand(open, update)
	return cmd
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
