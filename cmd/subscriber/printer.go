package main

import (
	"encoding/json"
	"log/slog"

	"github.com/callpilot/console-realtime/internal/events"
	"github.com/callpilot/console-realtime/pkg/subscription"
)

// listenerRegistrar is the part of subscription.Client printers need.
type listenerRegistrar interface {
	On(eventType string, fn subscription.Listener) subscription.Handle
}

// registerPrinters logs every subscribed event type, or every event when
// the subscription is unfiltered.
func registerPrinters(c listenerRegistrar, eventTypes []string, logger *slog.Logger) {
	if len(eventTypes) == 0 {
		c.On(subscription.Wildcard, printer(logger, ""))
		return
	}
	for _, t := range eventTypes {
		if !events.IsKnown(t) {
			logger.Warn("subscribing to unknown event type", "event_type", t)
		}
		c.On(t, printer(logger, t))
	}
}

// printer returns a listener that logs a one-line summary of each event.
// An empty eventType means the type is not known to the listener.
func printer(logger *slog.Logger, eventType string) subscription.Listener {
	return func(data json.RawMessage) {
		attrs := summarize(eventType, data)
		if eventType == "" {
			eventType = "*"
		}
		logger.Info("event", append([]any{"event_type", eventType}, attrs...)...)
	}
}

// summarize extracts the interesting fields of known payloads. Unknown or
// undecodable payloads are logged by size.
func summarize(eventType string, data json.RawMessage) []any {
	switch eventType {
	case events.TypeCallStatus:
		if p, err := events.Decode[events.CallStatus](data); err == nil {
			return []any{"call_log_id", p.CallLogID, "status", p.Status}
		}
	case events.TypeBookingUpdate:
		if p, err := events.Decode[events.BookingUpdate](data); err == nil {
			return []any{"booking_id", p.ID, "status", p.Status, "start", p.Start}
		}
	case events.TypeTranscript:
		if p, err := events.Decode[events.Transcript](data); err == nil {
			return []any{"call_log_id", p.CallLogID, "user", p.UserMessage, "agent", p.AgentResponse}
		}
	case events.TypeToolCalls:
		if p, err := events.Decode[events.ToolCalls](data); err == nil {
			names := make([]string, len(p.ToolCalls))
			for i, tc := range p.ToolCalls {
				names[i] = tc.Name
			}
			return []any{"call_log_id", p.CallLogID, "tools", names}
		}
	case events.TypeRecoveryActivity:
		if p, err := events.Decode[events.RecoveryActivity](data); err == nil {
			return []any{"call_log_id", p.CallLogID, "recovery_status", p.RecoveryStatus, "callback_scheduled", p.CallbackScheduled}
		}
	}
	return []any{"size", len(data)}
}
