package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"photon/internal/optimizer"
)

func newOptimizeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "optimize",
		Args:  cobra.NoArgs,
		Short: "Generate missing or stale image variants and rewrite the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			var opts []optimizer.Option
			if store := ctx.openHistory(cmd.Context(), logger); store != nil {
				defer store.Close()
				opts = append(opts, optimizer.WithRecorder(store))
			}
			opt, err := optimizer.New(cfg, logger, opts...)
			if err != nil {
				return err
			}

			report, err := opt.Run(cmd.Context())
			if errors.Is(err, optimizer.ErrLocked) {
				return fmt.Errorf("another photon run holds %s; try again when it finishes", cfg.LockPath())
			}
			if err != nil {
				return err
			}

			// Per-image failures are retried next run and do not fail the command.
			if jsonOutput {
				return writeJSON(cmd, report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the run report as JSON")
	return cmd
}

func printReport(out io.Writer, report optimizer.Report) {
	rows := [][]string{
		{"Images found", strconv.Itoa(report.Total)},
		{"Processed", strconv.Itoa(report.Processed)},
		{"Up to date", strconv.Itoa(report.Skipped)},
		{"Removed", strconv.Itoa(len(report.Removed))},
		{"Failed", strconv.Itoa(len(report.Failed))},
		{"Estimated savings", humanBytes(report.BytesSaved)},
		{"Duration", humanDuration(report.Duration)},
	}
	fmt.Fprintln(out, renderTable([]string{"Run " + shortID(report.RunID), ""}, rows, []columnAlignment{alignLeft, alignRight}))
	for _, f := range report.Failed {
		fmt.Fprintf(out, "failed: %s: %s\n", f.Image, f.Error)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
