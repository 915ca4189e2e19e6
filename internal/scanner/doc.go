// Package scanner walks a source breadth-first with a small worker pool and
// returns the disk images it finds.
//
// Each directory is listed at most once. A failed listing aborts the scan and
// discards everything gathered so far. Progress is reported as a running count
// of processed files, throttled so callers are not flooded, with the exact
// final count always delivered last.
package scanner
