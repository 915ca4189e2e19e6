// Package api is the workflow surface the CLI drives. It composes the
// scanner, grouping, library store, mount orchestrator and catalog
// persistence, and translates catalog and drive state into transport
// friendly DTOs.
//
// # Workflows
//
// AddDisksFromScan: scan selections on a source, assign rotation groups,
// merge into the catalog, persist, then publish one notification. A scan
// that finds nothing reports AddResult.Empty instead of failing.
//
// MountDisk, EjectDrive, RotateGroup, DeleteDisk, BulkDelete: drive
// commands through the orchestrator. Each publishes exactly one event;
// BulkDelete publishes a single summary regardless of how many disks it
// removed.
//
// # Design Notes
//
// Persistence runs after every mutation and ignores caller cancellation,
// so an interrupted CLI never loses a completed scan. DTOs use camelCase
// JSON tags and RFC3339 timestamps with milliseconds.
package api
