// Package notifications delivers the outcome of catalog and drive operations.
//
// Every mutating operation publishes exactly one event: a success event or
// EventOperationFailed. Bulk operations publish one summary event rather than
// one per disk. Events go to the console by default and additionally to ntfy
// when a topic is configured.
package notifications
