package subscription

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/callpilot/console-realtime/internal/connection"
	"github.com/callpilot/console-realtime/internal/events"
	"github.com/callpilot/console-realtime/internal/listener"
	"github.com/callpilot/console-realtime/internal/retry"
)

// State is the lifecycle state of a Client.
type State = connection.State

// Lifecycle states.
const (
	StateIdle         = connection.StateIdle
	StateConnecting   = connection.StateConnecting
	StateOpen         = connection.StateOpen
	StateReconnecting = connection.StateReconnecting
	StateClosed       = connection.StateClosed
)

// Listener receives the data field of a dispatched event.
type Listener = listener.Listener

// Handle identifies a registered listener for Off.
type Handle = listener.Handle

// Wildcard receives events that have no type-specific listener.
const Wildcard = listener.Wildcard

// Envelope is one parsed inbound event.
type Envelope = events.Envelope

// Policy decides whether and when to reconnect.
type Policy = retry.Policy

// Stats reports connection counters.
type Stats = connection.ManagerStats

// Client is a single real-time subscription.
type Client struct {
	desc     Descriptor
	url      string
	logger   *slog.Logger
	registry *listener.Registry
	manager  connection.Manager
}

// options holds everything an Option may set.
type options struct {
	logger      *slog.Logger
	policy      Policy
	maxAttempts int
	baseDelay   time.Duration
	client      connection.ClientConfig
	onExhausted func(attempts int)
	onState     func(from, to State)
	observers   []func(Envelope)
	managerOpts []connection.ManagerOption
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPolicy replaces the linear reconnect policy.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithMaxAttempts sets the reconnect ceiling per connect cycle.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// WithBaseDelay sets the backoff unit.
func WithBaseDelay(d time.Duration) Option {
	return func(o *options) {
		o.baseDelay = d
	}
}

// WithHeader adds handshake headers.
func WithHeader(h http.Header) Option {
	return func(o *options) {
		o.client.Header = h.Clone()
	}
}

// WithToken sends an Authorization bearer token on every handshake.
func WithToken(token string) Option {
	return func(o *options) {
		o.client.Token = token
	}
}

// WithHandshakeTimeout bounds each dial.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		o.client.HandshakeTimeout = d
	}
}

// WithWriteTimeout bounds each outbound write. Zero means no deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.client.WriteTimeout = d
	}
}

// WithPing enables keepalive pings every interval. A connection with no
// ping or pong for timeout is treated as dropped. An interval of zero
// disables the heartbeat.
func WithPing(interval, timeout time.Duration) Option {
	return func(o *options) {
		o.client.PingInterval = interval
		o.client.PingTimeout = timeout
	}
}

// WithExhaustedHandler is called once when reconnect attempts run out.
// Without it, callers observe the give-up by polling State.
func WithExhaustedHandler(fn func(attempts int)) Option {
	return func(o *options) {
		o.onExhausted = fn
	}
}

// WithStateHandler observes every state transition.
func WithStateHandler(fn func(from, to State)) Option {
	return func(o *options) {
		o.onState = fn
	}
}

// WithObserver sees every parsed envelope before listeners run, whatever
// its type. Observers are part of the client configuration and survive
// Disconnect.
func WithObserver(fn func(Envelope)) Option {
	return func(o *options) {
		if fn != nil {
			o.observers = append(o.observers, fn)
		}
	}
}

// withManagerOptions passes options straight to the connection manager.
func withManagerOptions(opts ...connection.ManagerOption) Option {
	return func(o *options) {
		o.managerOpts = append(o.managerOpts, opts...)
	}
}

// New creates a Client for desc on endpoint. The descriptor is copied and
// the target URL derived once.
func New(endpoint string, desc Descriptor, opts ...Option) (*Client, error) {
	desc = desc.clone()

	target, err := BuildURL(endpoint, desc)
	if err != nil {
		return nil, err
	}

	defaults := connection.DefaultManagerConfig()
	o := options{
		maxAttempts: defaults.MaxAttempts,
		baseDelay:   defaults.BaseDelay,
		client:      defaults.Client,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	logger := o.logger.With("subscription_id", desc.ID)

	o.client.URL = target
	cfg := connection.ManagerConfig{
		Client:      o.client,
		MaxAttempts: o.maxAttempts,
		BaseDelay:   o.baseDelay,
		Policy:      o.policy,
	}

	mgrOpts := make([]connection.ManagerOption, 0, len(o.managerOpts)+2)
	if o.onExhausted != nil {
		mgrOpts = append(mgrOpts, connection.WithExhaustedHandler(o.onExhausted))
	}
	if o.onState != nil {
		mgrOpts = append(mgrOpts, connection.WithStateHandler(o.onState))
	}
	mgrOpts = append(mgrOpts, o.managerOpts...)

	registry := listener.NewRegistry(logger.With("component", "listener"))

	var dispatcher connection.Dispatcher = registry
	if len(o.observers) > 0 {
		dispatcher = &observedDispatcher{
			Registry:  registry,
			observers: o.observers,
			logger:    logger,
		}
	}

	return &Client{
		desc:     desc,
		url:      target,
		logger:   logger,
		registry: registry,
		manager:  connection.NewManager(cfg, dispatcher, logger.With("component", "connection"), mgrOpts...),
	}, nil
}

// observedDispatcher runs observers ahead of the registry.
type observedDispatcher struct {
	*listener.Registry
	observers []func(Envelope)
	logger    *slog.Logger
}

func (d *observedDispatcher) Dispatch(env events.Envelope) int {
	for _, fn := range d.observers {
		d.observe(fn, env)
	}
	return d.Registry.Dispatch(env)
}

func (d *observedDispatcher) observe(fn func(Envelope), env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("observer panicked", "event_type", env.Type, "panic", r)
		}
	}()
	fn(env)
}

// Connect opens the subscription. It returns nil once the connection is
// open, or the error of the first attempt. Later drops are retried in the
// background.
func (c *Client) Connect(ctx context.Context) error {
	return c.manager.Connect(ctx)
}

// Disconnect closes the subscription, cancels any pending reconnect and
// removes every listener. Safe to call more than once.
func (c *Client) Disconnect() {
	c.manager.Disconnect()
}

// Send writes payload as JSON if the connection is open. Otherwise it is
// dropped.
func (c *Client) Send(payload any) {
	c.manager.Send(payload)
}

// On registers fn for eventType, or for Wildcard.
func (c *Client) On(eventType string, fn Listener) Handle {
	return c.registry.On(eventType, fn)
}

// Off removes the listener registered under eventType with h.
func (c *Client) Off(eventType string, h Handle) {
	c.registry.Off(eventType, h)
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return c.manager.State()
}

// Attempts returns the reconnect attempts made in the current cycle.
func (c *Client) Attempts() int {
	return c.manager.Stats().Attempts
}

// Stats returns connection counters.
func (c *Client) Stats() Stats {
	return c.manager.Stats()
}

// Listeners returns the number of registered listeners.
func (c *Client) Listeners() int {
	return c.registry.Len()
}

// URL returns the derived subscription URL.
func (c *Client) URL() string {
	return c.url
}

// Descriptor returns a copy of the subscription descriptor.
func (c *Client) Descriptor() Descriptor {
	return c.desc.clone()
}
