// Package config loads, normalizes, and validates photon configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PHOTON_LOG_LEVEL. The Config type centralizes every knob the optimizer and
// CLI need: where source uploads live, where variants and the manifest are
// written, which widths and formats to produce, and how colour extraction,
// run history, and watch mode behave.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, de-duplicated width and format lists, and clear validation
// errors.
package config
