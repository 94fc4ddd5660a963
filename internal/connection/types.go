package connection

import (
	"errors"
	"net/http"
	"time"

	"github.com/callpilot/console-realtime/internal/retry"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrInvalidState    = errors.New("invalid state for connect")
	ErrDisconnected    = errors.New("disconnected while connecting")
)

// State is the lifecycle state of a subscription connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Full subscription URL, e.g. wss://console.example.com/ws/subscribe/42?types=call_status
	Header           http.Header   // Extra handshake headers
	Token            string        // Bearer token for the Authorization header ("" = none)
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	PingInterval     time.Duration // Keepalive ping period (0 = no heartbeat)
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Client      ClientConfig  // Used for every dial of the cycle
	MaxAttempts int           // Reconnect ceiling per cycle
	BaseDelay   time.Duration // Backoff unit handed to the policy
	Policy      retry.Policy  // Nil = retry.Linear{}
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client:      DefaultClientConfig(),
		MaxAttempts: retry.DefaultMaxAttempts,
		BaseDelay:   retry.DefaultBaseDelay,
		Policy:      retry.Linear{},
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State            State
	Attempts         int    // Reconnect attempts in the current cycle
	CycleID          string // Identifies the current connect cycle in logs
	MessagesReceived int64
	ParseErrors      int64
	Reconnects       int64
}
