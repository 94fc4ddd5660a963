// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the single WebSocket connection of a subscription
//   - Drives the Idle → Connecting → Open → Reconnecting → Closed state machine
//   - Parses inbound frames and hands envelopes to the Listener Registry
//   - Schedules cancellable reconnect tasks as directed by a retry.Policy
package connection
