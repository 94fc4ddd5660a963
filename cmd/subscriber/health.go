package main

import (
	"encoding/json"
	"net/http"

	"github.com/callpilot/console-realtime/internal/journal"
	"github.com/callpilot/console-realtime/pkg/subscription"
)

// subscriptionStatus is the part of subscription.Client the health check reads.
type subscriptionStatus interface {
	State() subscription.State
	Stats() subscription.Stats
	Listeners() int
	URL() string
}

type journalStats interface {
	Stats() journal.Stats
}

// newHealthHandler creates the HTTP handler for health checks. journal may
// be nil.
func newHealthHandler(path string, sub subscriptionStatus, jw journalStats) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		stats := sub.Stats()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		switch stats.State {
		case subscription.StateOpen:
		case subscription.StateConnecting, subscription.StateReconnecting:
			health.Status = "degraded"
		default:
			health.Status = "unhealthy"
		}

		health.Components["subscription"] = map[string]any{
			"state":             stats.State.String(),
			"url":               sub.URL(),
			"cycle_id":          stats.CycleID,
			"attempts":          stats.Attempts,
			"reconnects":        stats.Reconnects,
			"messages_received": stats.MessagesReceived,
			"parse_errors":      stats.ParseErrors,
			"listeners":         sub.Listeners(),
		}

		if jw != nil {
			js := jw.Stats()
			health.Components["journal"] = map[string]any{
				"queued":    js.Queued,
				"inserts":   js.Inserts,
				"conflicts": js.Conflicts,
				"dropped":   js.Dropped,
				"errors":    js.Errors,
				"flushes":   js.Flushes,
			}
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
