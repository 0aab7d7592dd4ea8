// Package preflight provides readiness checks for the filesystem paths and
// encoders photon depends on.
//
// The "photon check" command runs RunAll and prints one line per result so
// a misconfigured site repository is caught before a long optimize run.
// Checks never create anything: a missing output directory passes because
// the optimizer creates it, provided an existing ancestor is writable.
package preflight
