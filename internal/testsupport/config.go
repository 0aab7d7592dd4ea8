package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"photon/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp site per test. The
// input directory exists; output and manifest directories do not. Only the
// fast stdlib encoders are enabled and history is off unless requested.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.PublicRoot = filepath.Join(base, "public")
	cfgVal.Paths.InputDir = filepath.Join(base, "public", "images", "uploads")
	cfgVal.Paths.OutputDir = filepath.Join(base, "public", "images", "optimized")
	cfgVal.Paths.ManifestPath = filepath.Join(base, "src", "data", "image-manifest.json")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Variants.Widths = []int{100, 200}
	cfgVal.Variants.Formats = []config.Format{{Name: "jpg", Quality: 80}, {Name: "png", Effort: 1}}
	cfgVal.Variants.ReferenceFormat = "jpg"
	cfgVal.Variants.ReferenceWidth = 100
	cfgVal.History.Enabled = false
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := os.MkdirAll(builder.cfg.Paths.InputDir, 0o755); err != nil {
		t.Fatalf("mkdir input dir: %v", err)
	}
	return builder.cfg
}

// WithWorkers overrides the parallelism of the test config.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Variants.Workers = n
	}
}

// WithHistory enables the run ledger inside the temp state directory.
func WithHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = true
		b.cfg.History.Path = filepath.Join(b.baseDir, "state", "history.db")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.PublicRoot)
}

// WriteConfigFile serialises cfg as TOML beside the temp site and returns
// its path.
func WriteConfigFile(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "photon.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
