package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateVariants(); err != nil {
		return err
	}
	if err := c.validateColors(); err != nil {
		return err
	}
	if c.Watch.DebounceMS <= 0 {
		return errors.New("watch.debounce_ms must be positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.PublicRoot) == "" {
		return errors.New("paths.public_root must be set")
	}
	if strings.TrimSpace(c.Paths.ManifestPath) == "" {
		return errors.New("paths.manifest_path must be set")
	}
	for key, dir := range map[string]string{
		"paths.input_dir":  c.Paths.InputDir,
		"paths.output_dir": c.Paths.OutputDir,
	} {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("%s must be set", key)
		}
		if !within(c.Paths.PublicRoot, dir) {
			return fmt.Errorf("%s (%s) must be inside paths.public_root (%s)", key, dir, c.Paths.PublicRoot)
		}
	}
	if within(c.Paths.InputDir, c.Paths.OutputDir) {
		return errors.New("paths.output_dir must not be inside paths.input_dir")
	}
	return nil
}

func (c *Config) validateVariants() error {
	if len(c.Variants.Widths) == 0 {
		return errors.New("variants.widths must include at least one width")
	}
	for _, w := range c.Variants.Widths {
		if w <= 0 {
			return fmt.Errorf("variants.widths: width %d must be positive", w)
		}
	}
	if len(c.Variants.Formats) == 0 {
		return errors.New("variants.formats must include at least one format")
	}
	for _, f := range c.Variants.Formats {
		if _, ok := supportedFormats[f.Name]; !ok {
			return fmt.Errorf("variants.formats: unsupported format %q", f.Name)
		}
		if f.Quality < 1 || f.Quality > maxFormatQuality {
			return fmt.Errorf("variants.formats.%s.quality must be between 1 and %d", f.Name, maxFormatQuality)
		}
		if f.Effort < 0 || f.Effort > maxFormatEffort {
			return fmt.Errorf("variants.formats.%s.effort must be between 0 and %d", f.Name, maxFormatEffort)
		}
	}
	if c.Variants.DefaultWidth <= 0 {
		return errors.New("variants.default_width must be positive")
	}
	if c.Variants.Workers <= 0 {
		return errors.New("variants.workers must be positive")
	}
	return nil
}

func (c *Config) validateColors() error {
	if c.Colors.FetchTimeoutSeconds <= 0 {
		return errors.New("colors.fetch_timeout_seconds must be positive")
	}
	if !hexColorPattern.MatchString(c.Colors.FallbackHex) {
		return fmt.Errorf("colors.fallback_hex %q must look like #RRGGBB", c.Colors.FallbackHex)
	}
	return nil
}

// within reports whether path is root itself or nested below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
