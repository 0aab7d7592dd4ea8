package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"photon/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Args:  cobra.NoArgs,
		Short: "Show recent optimize runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("run history is disabled (set history.enabled = true)")
			}
			store, err := history.Open(cmd.Context(), cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				if runs == nil {
					runs = []history.Run{}
				}
				return writeJSON(cmd, runs)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					humanAgo(run.StartedAt),
					strconv.Itoa(run.Total),
					strconv.Itoa(run.Processed),
					strconv.Itoa(run.Skipped),
					strconv.Itoa(run.Removed),
					strconv.Itoa(run.Failed),
					humanBytes(run.BytesSaved),
					humanDuration(run.Duration()),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Total", "Processed", "Skipped", "Removed", "Failed", "Saved", "Duration"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			for _, run := range runs {
				for _, f := range run.Failures {
					fmt.Fprintf(out, "%s failed: %s: %s\n", shortID(run.ID), f.Image, f.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit runs as JSON")
	return cmd
}
