// Package preflight provides readiness checks for the device and the local
// paths ultidisk depends on.
//
// The CLI "ultidisk doctor" command runs RunAll; "ultidisk status" uses the
// individual check functions to display device health.
package preflight
