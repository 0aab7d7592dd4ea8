package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"photon/internal/manifest"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect the image manifest",
	}

	manifestCmd.AddCommand(newManifestListCommand(ctx))
	manifestCmd.AddCommand(newManifestShowCommand(ctx))
	manifestCmd.AddCommand(newManifestStatsCommand(ctx))
	return manifestCmd
}

func loadManifest(ctx *commandContext) (manifest.Manifest, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	m, err := manifest.Load(cfg.Paths.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", cfg.Paths.ManifestPath, err)
	}
	return m, nil
}

func newManifestListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Args:  cobra.NoArgs,
		Short: "List manifest entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, m)
			}
			out := cmd.OutOrStdout()
			if len(m) == 0 {
				fmt.Fprintln(out, "Manifest is empty")
				return nil
			}
			rows := make([][]string, 0, len(m))
			for _, key := range m.Keys() {
				entry := m[key]
				rows = append(rows, []string{
					key,
					fmt.Sprintf("%dx%d", entry.Width, entry.Height),
					strconv.FormatFloat(entry.AspectRatio, 'f', -1, 64),
					strconv.Itoa(len(entry.Variants)),
					strings.Join(entryFormats(entry), ", "),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Image", "Size", "Aspect", "Variants", "Formats"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the manifest as JSON")
	return cmd
}

// entryFormats lists the distinct variant formats of entry in first-seen order.
func entryFormats(entry manifest.Entry) []string {
	var formats []string
	seen := map[string]bool{}
	for _, v := range entry.Variants {
		if !seen[v.Format] {
			seen[v.Format] = true
			formats = append(formats, v.Format)
		}
	}
	return formats
}

func newManifestShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <image>",
		Short: "Print one manifest entry as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest(ctx)
			if err != nil {
				return err
			}
			key := strings.TrimSpace(args[0])
			if !strings.HasPrefix(key, "/") {
				key = "/" + key
			}
			entry, ok := m[key]
			if !ok {
				return fmt.Errorf("no manifest entry for %s", key)
			}
			return writeJSON(cmd, entry)
		},
	}
}

func newManifestStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Args:  cobra.NoArgs,
		Short: "Summarise variant counts and sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest(ctx)
			if err != nil {
				return err
			}
			stats := m.Stats()
			rows := make([][]string, 0, len(stats.Formats)+1)
			for _, row := range stats.Formats {
				rows = append(rows, []string{row.Format, strconv.Itoa(row.Variants), humanBytes(row.Bytes)})
			}
			rows = append(rows, []string{"total", strconv.Itoa(stats.Variants), humanBytes(stats.Bytes)})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Images: %d\n", stats.Entries)
			fmt.Fprintln(out, renderTable(
				[]string{"Format", "Variants", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}
