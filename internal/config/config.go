package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the site layout and state locations.
type Paths struct {
	PublicRoot   string `toml:"public_root"`
	InputDir     string `toml:"input_dir"`
	OutputDir    string `toml:"output_dir"`
	ManifestPath string `toml:"manifest_path"`
	StateDir     string `toml:"state_dir"`
	LogDir       string `toml:"log_dir"`
}

// Format describes one output encoding and its tuning knobs.
type Format struct {
	Name    string `toml:"name"`
	Quality int    `toml:"quality"`
	// Effort trades encode time for size, 0 (fastest) to 9 (slowest).
	Effort int `toml:"effort"`
}

// Variants controls which renditions are produced for each source image.
type Variants struct {
	Widths       []int    `toml:"widths"`
	Formats      []Format `toml:"formats"`
	DefaultWidth int      `toml:"default_width"`
	Workers      int      `toml:"workers"`
	// ReferenceFormat and ReferenceWidth pick the variant used for the
	// bytes-saved estimate in run reports.
	ReferenceFormat string `toml:"reference_format"`
	ReferenceWidth  int    `toml:"reference_width"`
}

// Colors contains configuration for dominant colour extraction.
type Colors struct {
	FetchTimeoutSeconds int    `toml:"fetch_timeout_seconds"`
	FallbackHex         string `toml:"fallback_hex"`
}

// History contains configuration for the run ledger.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // Default: <state_dir>/history.db
}

// Watch contains configuration for watch mode.
type Watch struct {
	DebounceMS int `toml:"debounce_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for photon.
//
// Configuration sections by subsystem:
//   - Paths: site root, upload and output directories, manifest location
//   - Variants: target widths, encodings, and parallelism
//   - Colors: remote fetch timeout and fallback glow colour
//   - History: SQLite run ledger
//   - Watch: debounce window for watch mode
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Variants Variants `toml:"variants"`
	Colors   Colors   `toml:"colors"`
	History  History  `toml:"history"`
	Watch    Watch    `toml:"watch"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/photon/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Lists come from the file or from normalize, never a merge of both.
		cfg.Variants.Widths = nil
		cfg.Variants.Formats = nil
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("photon.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into. The input
// directory is never created: a missing upload tree is a scan error.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.OutputDir, filepath.Dir(c.Paths.ManifestPath), c.Paths.StateDir}
	if strings.TrimSpace(c.Paths.LogDir) != "" {
		dirs = append(dirs, c.Paths.LogDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the run ledger location, defaulting into the state directory.
func (c *Config) HistoryPath() string {
	if strings.TrimSpace(c.History.Path) != "" {
		return c.History.Path
	}
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the advisory lock file guarding manifest writes.
func (c *Config) LockPath() string {
	return c.Paths.ManifestPath + ".lock"
}

// FormatNames returns the configured format names in order.
func (c *Config) FormatNames() []string {
	names := make([]string, 0, len(c.Variants.Formats))
	for _, f := range c.Variants.Formats {
		names = append(names, f.Name)
	}
	return names
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "photon")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.local/state/photon"
	}
	return filepath.Join(home, ".local", "state", "photon")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
