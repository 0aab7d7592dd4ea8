package preflight

import (
	"photon/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every preflight check for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Input directory", cfg.Paths.InputDir, Read),
		CheckWritableOrCreatable("Output directory", cfg.Paths.OutputDir),
		CheckWritableOrCreatable("Manifest directory", parentDir(cfg.Paths.ManifestPath)),
		CheckManifest(cfg.Paths.ManifestPath),
		CheckLock(cfg.LockPath()),
	}
	results = append(results, CheckEncoders(cfg.Variants.Formats)...)
	if cfg.History.Enabled {
		results = append(results, CheckWritableOrCreatable("State directory", cfg.Paths.StateDir))
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
