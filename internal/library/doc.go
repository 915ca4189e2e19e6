// Package library holds the per-device disk catalog in memory.
//
// The Store owns three maps that always change together: catalog entries,
// runtime file handles for local images, and the selection set. Views such as
// the filtered list and the folder tree are derived on demand from the entry
// map and the current filter text. The Store never talks to the device;
// remote side effects belong to the mount orchestrator.
package library
