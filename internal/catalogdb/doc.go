// Package catalogdb persists disk catalogs and drive overrides in SQLite,
// keyed by the device's unique id.
//
// The database lives in the data directory as catalog.db. Writers coordinate
// through an advisory lock file next to it so two CLI invocations do not
// interleave a load-mutate-save cycle against the same catalog.
package catalogdb
