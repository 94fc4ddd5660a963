// Package events defines the wire envelope pushed by the console's real-time
// endpoint and the catalogue of event types it emits.
//
// Conventions:
//   - Every inbound frame is a JSON object {"type", "data", "timestamp"}
//   - A frame without "data", or with "data": null, carries its payload in the object itself
//   - Timestamps are ISO 8601 strings as produced by the server
package events
