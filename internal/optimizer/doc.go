// Package optimizer drives one batch run over the upload directory.
//
// A run takes an advisory lock beside the manifest, loads the manifest,
// scans the input tree, regenerates stale images through the variants
// package, prunes entries whose sources were deleted and saves the manifest
// once. Per-image failures are logged and reported; they never abort the
// batch. Only the driver goroutine mutates the manifest: workers return
// entries that are merged in scan order after the pool drains.
package optimizer
