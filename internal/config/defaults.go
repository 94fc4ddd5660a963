package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultPingTimeout      = 60 * time.Second
	DefaultStrategy         = StrategyLinear
	DefaultBaseDelay        = 1 * time.Second
	DefaultMaxDelay         = 60 * time.Second
	DefaultMaxAttempts      = 5
	DefaultFactor           = 2.0
	DefaultJitter           = 0.2
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultBatchSize        = 500
	DefaultFlushInterval    = 1 * time.Second
	DefaultBufferSize       = 10000
	DefaultHealthPath       = "/health"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// Reconnect strategies.
const (
	StrategyLinear      = "linear"
	StrategyExponential = "exponential"
)

func (c *SubscriberConfig) applyDefaults() {
	// Endpoint defaults
	if c.Endpoint.HandshakeTimeout == 0 {
		c.Endpoint.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Endpoint.WriteTimeout == 0 {
		c.Endpoint.WriteTimeout = DefaultWriteTimeout
	}
	if c.Endpoint.PingInterval == 0 {
		c.Endpoint.PingInterval = DefaultPingInterval
	}
	if c.Endpoint.PingTimeout == 0 {
		c.Endpoint.PingTimeout = DefaultPingTimeout
	}

	// Reconnect defaults
	if c.Reconnect.Strategy == "" {
		c.Reconnect.Strategy = DefaultStrategy
	}
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultBaseDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultMaxDelay
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultMaxAttempts
	}
	if c.Reconnect.Factor == 0 {
		c.Reconnect.Factor = DefaultFactor
	}
	if c.Reconnect.Jitter == 0 {
		c.Reconnect.Jitter = DefaultJitter
	}

	// Journal defaults
	applyDBDefaults(&c.Journal.Database)
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}

	// Health defaults
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
