// Package watch reruns the optimizer when the upload directory changes.
//
// The Watcher subscribes to the input tree recursively through fsnotify,
// adding subdirectories as they appear. Image events reset a debounce timer
// and a run starts once the tree has been quiet for the debounce window.
// Runs never overlap: changes observed while a run is in flight schedule
// exactly one follow-up run.
package watch
