package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/alert"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/config"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/detect"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/detect/builtin"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/engine"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
)

func (a *app) detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run the detection catalog over an event log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := a.required("in")
			if err != nil {
				return err
			}
			out, err := a.required("out")
			if err != nil {
				return err
			}

			cat, err := config.Load(a.v.GetStringSlice("rules")...)
			if err != nil {
				return err
			}
			if w := a.v.GetInt("workers"); w > 0 {
				cat.Engine.Workers = w
			}
			rs, err := detect.Compile(cat, builtin.NewRegistry())
			if err != nil {
				return err
			}

			events, err := event.DecodeFile(in)
			if err != nil {
				return err
			}
			alerts, err := engine.Evaluate(cmd.Context(), events, rs)
			if err != nil {
				return err
			}

			if err := ensureParent(out); err != nil {
				return err
			}
			if err := alert.WriteFile(out, alerts); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Alerts: %d written to %s\n", len(alerts), out)
			for _, al := range alerts {
				fmt.Fprintln(w, al.Summary())
			}
			return nil
		},
	}
	cmd.Flags().String("in", "", "input events JSONL")
	cmd.Flags().String("out", "", "output alerts JSONL")
	cmd.Flags().StringSlice("rules", defaultRules, "rule files, evaluated in order")
	cmd.Flags().Int("workers", 0, "parallel sessions (overrides the catalog)")
	return cmd
}
