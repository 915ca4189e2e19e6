// Command ultidisk catalogs disk images from the local filesystem and the
// device's storage, mounts them into the device's drives and rotates
// multi-disk titles.
//
// Each invocation loads the catalog for the connected device, takes an
// exclusive lock on the catalog database, runs one operation and persists
// the result.
package main
