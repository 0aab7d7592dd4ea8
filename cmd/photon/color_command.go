package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"photon/internal/colors"
)

// colorFrontmatter is the block pasted into a post's YAML frontmatter.
type colorFrontmatter struct {
	GlowColor   string   `yaml:"glowColor"`
	AccentColor string   `yaml:"accentColor"`
	Palette     []string `yaml:"palette,omitempty"`
}

type colorResult struct {
	Source  string         `json:"source"`
	Glow    colors.Color   `json:"glow"`
	Accent  colors.Accent  `json:"accent"`
	Palette []colors.Color `json:"palette,omitempty"`
}

func newColorCommand(ctx *commandContext) *cobra.Command {
	var (
		paletteSize int
		frontmatter bool
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "color <image>",
		Short: "Extract the glow colour for a post's featured image",
		Long: "Extract the glow colour for a post's featured image.\n\n" +
			"The image may be a site path (/images/uploads/a.jpg) or an http(s) URL.\n" +
			"Unreadable images fall back to colors.fallback_hex.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			extractor := colors.NewExtractor(cfg, logger)

			src := args[0]
			glow := extractor.Dominant(cmd.Context(), src)
			result := colorResult{
				Source: src,
				Glow:   glow,
				Accent: colors.DeriveAccent(glow.R, glow.G, glow.B),
			}
			if paletteSize > 0 {
				result.Palette = extractor.Palette(cmd.Context(), src, paletteSize)
			}

			switch {
			case jsonOutput:
				return writeJSON(cmd, result)
			case frontmatter:
				block := colorFrontmatter{GlowColor: glow.Hex, AccentColor: result.Accent.CSS()}
				for _, c := range result.Palette {
					block.Palette = append(block.Palette, c.Hex)
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(block); err != nil {
					return fmt.Errorf("encode frontmatter: %w", err)
				}
				return enc.Close()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Glow:   %s (rgb %d, %d, %d)\n", glow.Hex, glow.R, glow.G, glow.B)
			fmt.Fprintf(out, "Accent: %s\n", result.Accent.CSS())
			for i, c := range result.Palette {
				fmt.Fprintf(out, "Palette %d: %s\n", i+1, c.Hex)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&paletteSize, "palette", 0, "Also extract the N most common colours")
	cmd.Flags().BoolVar(&frontmatter, "frontmatter", false, "Print a YAML frontmatter block")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the result as JSON")
	return cmd
}
