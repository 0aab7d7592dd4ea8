// Package main hosts the photon CLI entrypoint and command graph.
//
// The Cobra command tree wraps the internal packages: optimize and watch
// drive the batch optimizer, manifest inspects the generated manifest,
// color extracts glow colours for post frontmatter, history reads the run
// ledger, check runs preflight checks and config scaffolds configuration.
// Configuration resolution and logger construction live in commandContext
// so subcommands only deal with presentation.
package main
