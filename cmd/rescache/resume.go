package main

import (
	"fmt"

	"github.com/reportkit/rescache/checkpoint"
	"github.com/spf13/cobra"
)

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <run-id> [unit ...]",
		Short: "Show what a run has already completed and what remains",
		Long: `Reads the run's checkpoint and prints the completed work units.
When candidate units are given as extra arguments, prints only the ones that
still need processing, in the order supplied.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			log, flush, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer flush()

			mgr, err := checkpoint.NewManager(checkpoint.Options{
				Dir:       cfg.CheckpointDir,
				Retention: cfg.CheckpointRetention,
				Logger:    log,
			})
			if err != nil {
				return err
			}

			runID := args[0]
			units := args[1:]
			out := cmd.OutOrStdout()

			st, ok, err := mgr.GetResumeState(cmd.Context(), runID)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(out, "no checkpoint for run %q; starting fresh\n", runID)
				for _, u := range units {
					fmt.Fprintln(out, u)
				}
				return nil
			}

			if len(units) > 0 {
				for _, u := range st.Remaining(units) {
					fmt.Fprintln(out, u)
				}
				return nil
			}

			fmt.Fprintf(out, "run:        %s\n", st.RunID)
			fmt.Fprintf(out, "generation: %d\n", st.Generation)
			fmt.Fprintf(out, "completed:  %v\n", st.Completed)
			for _, u := range st.CompletedUnits {
				fmt.Fprintf(out, "  done %s\n", u)
			}
			return nil
		},
	}
}
