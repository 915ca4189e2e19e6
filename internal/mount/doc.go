// Package mount issues every mount and eject command sent to the device.
//
// The Orchestrator keeps the per-drive optimistic override and last error,
// consults the drives resolver for what each drive currently holds, and
// cross-references the catalog when disks are deleted so no drive is left
// pointing at an entry that no longer exists. Operations on one drive are
// serialized; the two drives proceed independently.
package mount
