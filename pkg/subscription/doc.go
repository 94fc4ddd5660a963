// Package subscription is the public entry point of the console real-time
// client.
//
// A Client wraps one subscription:
//   - The target URL is derived once from the endpoint and a Descriptor
//   - Connect opens the WebSocket and keeps it alive with a retry policy
//   - On/Off manage listeners keyed by event type or Wildcard
//   - Disconnect cancels any pending retry and clears all listeners
//
// Example:
//
//	client, err := subscription.New("wss://console.example.com/ws", subscription.Descriptor{
//		ID:         "agent-42",
//		EventTypes: []string{"call_status", "booking_update"},
//	})
//	if err != nil {
//		return err
//	}
//	client.On("call_status", func(data json.RawMessage) { ... })
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Disconnect()
package subscription
