// Package history keeps a SQLite ledger of optimize runs.
//
// Each run records its counters and the images that failed, so operators can
// see which uploads keep failing across runs without scraping logs. The
// schema is versioned through embedded SQL migrations tracked in a
// schema_migrations table.
package history
