package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeVariants()
	c.normalizeColors()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	if c.Watch.DebounceMS <= 0 {
		c.Watch.DebounceMS = defaultWatchDebounceMS
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.PublicRoot) == "" {
		c.Paths.PublicRoot = defaultPublicRoot
	}
	if c.Paths.PublicRoot, err = expandPath(c.Paths.PublicRoot); err != nil {
		return fmt.Errorf("paths.public_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.InputDir) == "" {
		c.Paths.InputDir = defaultInputDir
	}
	if c.Paths.InputDir, err = expandPath(c.Paths.InputDir); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ManifestPath) == "" {
		c.Paths.ManifestPath = defaultManifestPath
	}
	if c.Paths.ManifestPath, err = expandPath(c.Paths.ManifestPath); err != nil {
		return fmt.Errorf("paths.manifest_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeVariants() {
	if len(c.Variants.Widths) == 0 {
		c.Variants.Widths = append([]int(nil), defaultWidths...)
	} else {
		seen := make(map[int]struct{}, len(c.Variants.Widths))
		widths := make([]int, 0, len(c.Variants.Widths))
		for _, w := range c.Variants.Widths {
			if _, exists := seen[w]; exists {
				continue
			}
			seen[w] = struct{}{}
			widths = append(widths, w)
		}
		sort.Ints(widths)
		c.Variants.Widths = widths
	}

	if len(c.Variants.Formats) == 0 {
		c.Variants.Formats = defaultFormats()
	} else {
		formats := make([]Format, 0, len(c.Variants.Formats))
		seen := make(map[string]struct{}, len(c.Variants.Formats))
		for _, f := range c.Variants.Formats {
			f.Name = strings.ToLower(strings.TrimSpace(f.Name))
			if f.Name == "" {
				continue
			}
			if _, exists := seen[f.Name]; exists {
				continue
			}
			seen[f.Name] = struct{}{}
			if f.Quality == 0 {
				f.Quality = defaultQualityFor(f.Name)
			}
			formats = append(formats, f)
		}
		c.Variants.Formats = formats
	}

	if c.Variants.DefaultWidth <= 0 {
		c.Variants.DefaultWidth = defaultVariantWidth
	}
	if c.Variants.Workers <= 0 {
		c.Variants.Workers = defaultWorkers
	}
	c.Variants.ReferenceFormat = strings.ToLower(strings.TrimSpace(c.Variants.ReferenceFormat))
	if c.Variants.ReferenceFormat == "" {
		c.Variants.ReferenceFormat = defaultReferenceFormat
	}
	if c.Variants.ReferenceWidth <= 0 {
		c.Variants.ReferenceWidth = defaultReferenceWidth
	}
}

func (c *Config) normalizeColors() {
	if c.Colors.FetchTimeoutSeconds <= 0 {
		c.Colors.FetchTimeoutSeconds = defaultColorFetchTimeout
	}
	c.Colors.FallbackHex = strings.TrimSpace(c.Colors.FallbackHex)
	if c.Colors.FallbackHex == "" {
		c.Colors.FallbackHex = defaultColorFallbackHex
	}
}

func (c *Config) normalizeHistory() error {
	var err error
	if c.History.Path, err = expandPath(strings.TrimSpace(c.History.Path)); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	if value, ok := os.LookupEnv(environmentLogLevelVarName); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
