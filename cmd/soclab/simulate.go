package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/eventlog"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/simulate"
)

func (a *app) simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write a scenario as a hash-chained event log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.required("out")
			if err != nil {
				return err
			}
			var scenarios []*simulate.Scenario
			if path := a.v.GetString("scenario"); path != "" {
				sc, err := simulate.LoadFile(path)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, sc)
			}
			if n := a.v.GetInt("noise"); n > 0 {
				scenarios = append(scenarios, simulate.Noise(n, a.v.GetInt64("seed"))...)
			}
			if len(scenarios) == 0 {
				return fmt.Errorf("--scenario or --noise is required")
			}

			if err := ensureParent(out); err != nil {
				return err
			}
			w, err := eventlog.Create(out)
			if err != nil {
				return err
			}
			defer w.Close()

			em := simulate.NewEmitter()
			total := 0
			for _, sc := range scenarios {
				evs, err := em.Emit(w, sc)
				if err != nil {
					return err
				}
				total += len(evs)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d events to %s\n", total, out)
			return w.Close()
		},
	}
	cmd.Flags().String("scenario", "", "scenario JSON file")
	cmd.Flags().String("out", "", "output events JSONL (truncated)")
	cmd.Flags().Int("noise", 0, "append this many generated benign sessions")
	cmd.Flags().Int64("seed", 1, "seed for generated sessions")
	return cmd
}
