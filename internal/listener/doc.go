// Package listener implements the Listener Registry.
//
// The registry decouples message arrival from consumption:
//   - Listeners register under an event type or the Wildcard key
//   - Dispatch snapshots the matching listeners before invoking them
//   - A panicking listener is logged and skipped; the rest still run
package listener
