package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/callpilot/console-realtime/internal/events"
	"github.com/callpilot/console-realtime/internal/retry"
)

// Manager owns one subscription connection and its recovery.
type Manager interface {
	// Connect starts a new connect cycle and blocks until the connection is
	// open or the first attempt fails. Valid only from Idle or Closed.
	Connect(ctx context.Context) error

	// Disconnect cancels any pending reconnect, closes the connection, clears
	// the dispatcher and moves to Closed. Safe to call repeatedly.
	Disconnect()

	// Send JSON-encodes payload and writes it if the connection is open;
	// otherwise it does nothing.
	Send(payload any)

	// State returns the current lifecycle state.
	State() State

	// Stats returns current connection statistics.
	Stats() ManagerStats
}

// Dispatcher receives every parsed envelope.
type Dispatcher interface {
	Dispatch(env events.Envelope) int
	Clear()
}

// StateHandler observes state transitions. It runs outside the manager lock.
type StateHandler func(from, to State)

// ExhaustedHandler is called once when the retry policy gives up.
type ExhaustedHandler func(attempts int)

// ManagerOption configures a Manager.
type ManagerOption func(*manager)

// WithClientFactory replaces the WebSocket client constructor.
func WithClientFactory(f ClientFactory) ManagerOption {
	return func(m *manager) {
		m.newClient = f
	}
}

// WithScheduler replaces the reconnect timer source.
func WithScheduler(s Scheduler) ManagerOption {
	return func(m *manager) {
		m.scheduler = s
	}
}

// WithStateHandler registers a state transition observer.
func WithStateHandler(h StateHandler) ManagerOption {
	return func(m *manager) {
		m.onState = h
	}
}

// WithExhaustedHandler registers a give-up notification.
func WithExhaustedHandler(h ExhaustedHandler) ManagerOption {
	return func(m *manager) {
		m.onExhausted = h
	}
}

// manager implements the Manager interface.
type manager struct {
	cfg        ManagerConfig
	dispatcher Dispatcher
	logger     *slog.Logger

	newClient   ClientFactory
	scheduler   Scheduler
	onState     StateHandler
	onExhausted ExhaustedHandler

	// Everything below mu is owned by the state machine.
	mu      sync.Mutex
	state   State
	client  Client
	task    Task
	retry   retry.Context
	cycle   uint64 // Bumped by Connect and Disconnect; stale callbacks compare against it
	cycleID uuid.UUID
	ctx     context.Context
	cancel  context.CancelFunc

	// Stats
	received    atomic.Int64
	parseErrors atomic.Int64
	reconnects  atomic.Int64
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, dispatcher Dispatcher, logger *slog.Logger, opts ...ManagerOption) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Policy == nil {
		cfg.Policy = retry.Linear{}
	}

	m := &manager{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger,
		newClient:  NewClient,
		scheduler:  RealScheduler(),
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Connect starts a connect cycle.
func (m *manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateIdle && m.state != StateClosed {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("connect from %s: %w", state, ErrInvalidState)
	}

	m.cycle++
	cycle := m.cycle
	m.cycleID = uuid.New()
	m.retry = retry.NewContext(m.cfg.MaxAttempts, m.cfg.BaseDelay)
	m.ctx, m.cancel = context.WithCancel(context.Background())
	cycleCtx := m.ctx
	notify := m.setState(StateConnecting)
	m.mu.Unlock()
	notify()

	m.logger.Info("connecting", "url", m.cfg.Client.URL, "cycle", m.cycleIDString())

	// The dial stops if either the caller gives up or Disconnect runs.
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(cycleCtx, cancel)
	defer stop()

	client := m.newClient(m.cfg.Client, m.logger)
	if err := client.Connect(dialCtx); err != nil {
		m.mu.Lock()
		notify := func() {}
		if m.cycle == cycle {
			notify = m.setState(StateClosed)
			m.cancel()
		}
		m.mu.Unlock()
		notify()

		m.logger.Warn("initial connect failed", "url", m.cfg.Client.URL, "error", err)
		return fmt.Errorf("connect %s: %w", m.cfg.Client.URL, err)
	}

	return m.attach(cycle, client)
}

// Disconnect tears down the connection and any pending retry.
func (m *manager) Disconnect() {
	m.mu.Lock()
	m.cycle++
	if m.task != nil {
		m.task.Stop()
		m.task = nil
	}
	if m.cancel != nil {
		m.cancel()
	}
	client := m.client
	m.client = nil
	wasClosed := m.state == StateClosed
	notify := m.setState(StateClosed)
	m.mu.Unlock()

	if client != nil {
		if err := client.Close(); err != nil {
			m.logger.Debug("close failed", "error", err)
		}
	}
	m.dispatcher.Clear()
	notify()

	if !wasClosed {
		m.logger.Info("disconnected", "cycle", m.cycleIDString())
	}
}

// Send writes payload as one JSON text frame when open.
func (m *manager) Send(payload any) {
	m.mu.Lock()
	client := m.client
	state := m.state
	m.mu.Unlock()

	if state != StateOpen || client == nil {
		m.logger.Debug("send skipped, connection not open", "state", state)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Warn("send skipped, payload not encodable", "error", err)
		return
	}

	if err := client.Send(data); err != nil {
		m.logger.Warn("send failed", "error", err)
	}
}

// State returns the current state.
func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	state := m.state
	attempts := m.retry.Attempt
	cycleID := ""
	if m.cycleID != uuid.Nil {
		cycleID = m.cycleID.String()
	}
	m.mu.Unlock()

	return ManagerStats{
		State:            state,
		Attempts:         attempts,
		CycleID:          cycleID,
		MessagesReceived: m.received.Load(),
		ParseErrors:      m.parseErrors.Load(),
		Reconnects:       m.reconnects.Load(),
	}
}

// attach installs a freshly opened client if its cycle is still current.
func (m *manager) attach(cycle uint64, client Client) error {
	m.mu.Lock()
	if m.cycle != cycle {
		m.mu.Unlock()
		client.Close()
		return ErrDisconnected
	}
	m.client = client
	m.retry.Attempt = 0
	ctx := m.ctx
	notify := m.setState(StateOpen)
	m.mu.Unlock()
	notify()

	m.logger.Info("connection open", "url", m.cfg.Client.URL, "cycle", m.cycleIDString())

	go m.readLoop(ctx, cycle, client)
	return nil
}

// readLoop consumes one client until it fails or the cycle ends.
func (m *manager) readLoop(ctx context.Context, cycle uint64, client Client) {
	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Messages():
			if !ok || ctx.Err() != nil {
				return
			}
			m.handleMessage(cycle, msg)

		case err := <-client.Errors():
			// Deliver whatever arrived before the failure.
			m.drain(ctx, cycle, client)
			m.handleDrop(cycle, client, err)
			return
		}
	}
}

// drain dispatches messages already buffered on client.
func (m *manager) drain(ctx context.Context, cycle uint64, client Client) {
	for {
		select {
		case msg, ok := <-client.Messages():
			if !ok || ctx.Err() != nil {
				return
			}
			m.handleMessage(cycle, msg)
		default:
			return
		}
	}
}

// handleMessage parses one frame and dispatches it if cycle is still current.
func (m *manager) handleMessage(cycle uint64, msg TimestampedMessage) {
	m.received.Add(1)

	env, err := events.ParseEnvelope(msg.Data)
	if err != nil {
		m.parseErrors.Add(1)
		m.logger.Warn("dropping malformed message",
			"error", err,
			"size", len(msg.Data),
		)
		return
	}
	env.ReceivedAt = msg.ReceivedAt

	if !m.current(cycle) {
		return
	}
	m.dispatcher.Dispatch(env)
}

// current reports whether cycle has not been ended by Disconnect or Connect.
func (m *manager) current(cycle uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycle == cycle
}

// handleDrop reacts to an unexpected closure of client.
func (m *manager) handleDrop(cycle uint64, client Client, cause error) {
	m.mu.Lock()
	if m.cycle != cycle || m.client != client {
		m.mu.Unlock()
		return
	}
	m.client = nil
	m.logger.Warn("connection lost", "error", cause, "cycle", m.cycleID.String())
	notify := m.retryLocked(cycle)
	m.mu.Unlock()

	client.Close()
	notify()
}

// retryLocked consults the policy and either schedules a reconnect task or
// gives up. Must be called with mu held; the returned func must run after
// mu is released.
func (m *manager) retryLocked(cycle uint64) func() {
	toReconnecting := m.setState(StateReconnecting)

	decision := m.cfg.Policy.Decide(m.retry)
	if !decision.Retry {
		attempts := m.retry.Attempt
		toClosed := m.setState(StateClosed)
		m.cancel()

		m.logger.Error("reconnect attempts exhausted",
			"attempts", attempts,
			"max_attempts", m.retry.MaxAttempts,
		)

		return func() {
			toReconnecting()
			toClosed()
			if m.onExhausted != nil {
				m.onExhausted(attempts)
			}
		}
	}

	m.retry.Attempt++
	m.task = m.scheduler.AfterFunc(decision.Delay, func() {
		m.reconnect(cycle)
	})

	m.logger.Info("reconnect scheduled",
		"attempt", m.retry.Attempt,
		"max_attempts", m.retry.MaxAttempts,
		"delay", decision.Delay,
	)

	return toReconnecting
}

// reconnect is the body of a scheduled retry task.
func (m *manager) reconnect(cycle uint64) {
	m.mu.Lock()
	// A task may fire after Disconnect or after a new cycle began.
	if m.cycle != cycle || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.task = nil
	ctx := m.ctx
	attempt := m.retry.Attempt
	notify := m.setState(StateConnecting)
	m.mu.Unlock()
	notify()

	m.reconnects.Add(1)
	m.logger.Info("attempting reconnection", "attempt", attempt)

	client := m.newClient(m.cfg.Client, m.logger)
	if err := client.Connect(ctx); err != nil {
		m.logger.Warn("reconnection failed", "attempt", attempt, "error", err)

		m.mu.Lock()
		if m.cycle != cycle {
			m.mu.Unlock()
			return
		}
		notify := m.retryLocked(cycle)
		m.mu.Unlock()
		notify()
		return
	}

	if err := m.attach(cycle, client); err != nil {
		m.logger.Debug("reconnected after disconnect, discarding", "attempt", attempt)
	}
}

// setState records a transition. Must be called with mu held; the returned
// func reports the change and must run after mu is released.
func (m *manager) setState(next State) func() {
	prev := m.state
	m.state = next
	if prev == next || m.onState == nil {
		return func() {}
	}
	return func() {
		m.onState(prev, next)
	}
}

func (m *manager) cycleIDString() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycleID.String()
}
