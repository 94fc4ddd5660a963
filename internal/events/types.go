package events

// Event types pushed by the endpoint.
const (
	TypeTranscript          = "transcript"
	TypeToolCalls           = "tool_calls"
	TypeMissedCalls         = "missed_calls"
	TypeRecoveryActivity    = "recovery_activity"
	TypeCallStatus          = "call_status"
	TypeBookingUpdate       = "booking_update"
	TypeVoicePreviewReady   = "voice_clone_preview_ready"
	TypeSimulationCompleted = "simulation_run_completed"
	TypeDemoTryCompleted    = "demo_try_completed"
	TypePong                = "pong"
)

// FilterAll is the subscription filter value meaning every event type.
const FilterAll = "all"

var known = map[string]struct{}{
	TypeTranscript:          {},
	TypeToolCalls:           {},
	TypeMissedCalls:         {},
	TypeRecoveryActivity:    {},
	TypeCallStatus:          {},
	TypeBookingUpdate:       {},
	TypeVoicePreviewReady:   {},
	TypeSimulationCompleted: {},
	TypeDemoTryCompleted:    {},
	TypePong:                {},
}

// IsKnown reports whether t is an event type the endpoint is known to emit.
func IsKnown(t string) bool {
	_, ok := known[t]
	return ok
}

// -----------------------------------------------------------------------------
// Payloads
// -----------------------------------------------------------------------------

// Transcript is a live transcript line for a call.
type Transcript struct {
	CallLogID        int64      `json:"call_log_id"`
	SessionID        string     `json:"session_id"`
	UserMessage      string     `json:"user_message"`
	AgentResponse    string     `json:"agent_response"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	ReadyForFrontend bool       `json:"ready_for_frontend"`
	Timestamp        string     `json:"timestamp"`
}

// ToolCall is one tool invocation made by the voice agent.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    any            `json:"result,omitempty"`
}

// ToolCalls groups the tool invocations made for a call turn.
type ToolCalls struct {
	CallLogID        int64      `json:"call_log_id"`
	ToolCalls        []ToolCall `json:"tool_calls"`
	ReadyForFrontend bool       `json:"ready_for_frontend"`
	Timestamp        string     `json:"timestamp"`
}

// RecoveryActivity reports progress on a missed-call recovery.
type RecoveryActivity struct {
	CallLogID         int64  `json:"call_log_id"`
	RecoveryStatus    string `json:"recovery_status"`
	CallbackScheduled bool   `json:"callback_scheduled"`
	ReadyForFrontend  bool   `json:"ready_for_frontend"`
	Timestamp         string `json:"timestamp"`
}

// CallStatus is a call state change.
type CallStatus struct {
	CallLogID int64  `json:"call_log_id"`
	SessionID string `json:"session_id,omitempty"`
	Status    string `json:"status"`
}

// BookingUpdate is a change to an appointment booking.
type BookingUpdate struct {
	ID     int64  `json:"id"`
	Status string `json:"status,omitempty"`
	Start  string `json:"start,omitempty"`
}

// -----------------------------------------------------------------------------
// Outbound commands
// -----------------------------------------------------------------------------

// Command is a control message sent to the endpoint.
type Command struct {
	Action string `json:"action"`
}

// PingCommand asks the endpoint for an application-level "pong" event.
var PingCommand = Command{Action: "ping"}
