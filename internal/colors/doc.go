// Package colors extracts ambient glow colours from post images.
//
// Dominant averages a 100x100 cover crop and normalises the result in HSL
// space so every post glow has comparable saturation and lightness.
// Palette returns the most common colours of a 150x150 cover crop using
// 4-bit per channel buckets. Sources are site paths resolved under the
// public root or http(s) URLs. Extraction never fails: on any error the
// configured fallback colour is returned and a warning is logged.
package colors
