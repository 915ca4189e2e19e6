// Package logs reads the ultidisk log file for `ultidisk logs`.
//
// Last reads the final lines with bounded memory; Follow polls from an
// offset until its context ends, so the CLI can stream new lines after
// printing the tail.
package logs
