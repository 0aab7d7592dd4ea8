package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"photon/internal/preflight"
)

var errChecksFailed = errors.New("preflight checks failed")

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check",
		Args:  cobra.NoArgs,
		Short: "Verify directories, manifest, lock and encoders before a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cfg)
			if jsonOutput {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Config", colorize) {
					fmt.Fprintln(out, line)
				}
				configDetail := ctx.configPath
				if !ctx.configSeen {
					configDetail += " (not found; defaults in use)"
				}
				fmt.Fprintln(out, renderStatusLine("Config file", statusInfo, configDetail, colorize))
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Checks", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, line := range checkLines(results, colorize) {
					fmt.Fprintln(out, line)
				}
			}
			if preflight.Failed(results) {
				return errChecksFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit check results as JSON")
	return cmd
}

func checkLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}
