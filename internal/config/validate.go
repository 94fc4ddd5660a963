package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *SubscriberConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Endpoint.BaseURL == "" {
		return errors.New("endpoint.base_url is required")
	}
	u, err := url.Parse(c.Endpoint.BaseURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("endpoint.base_url must be a ws:// or wss:// URL, got %q", c.Endpoint.BaseURL)
	}
	if c.Endpoint.PingInterval > 0 && c.Endpoint.PingTimeout <= c.Endpoint.PingInterval {
		return fmt.Errorf("endpoint.ping_timeout (%s) must exceed ping_interval (%s)",
			c.Endpoint.PingTimeout, c.Endpoint.PingInterval)
	}

	if c.Subscription.ID == "" {
		return errors.New("subscription.id is required")
	}
	for i, t := range c.Subscription.EventTypes {
		if t == "" {
			return fmt.Errorf("subscription.event_types[%d] is empty", i)
		}
	}

	switch c.Reconnect.Strategy {
	case StrategyLinear, StrategyExponential:
	default:
		return fmt.Errorf("reconnect.strategy must be %q or %q, got %q",
			StrategyLinear, StrategyExponential, c.Reconnect.Strategy)
	}
	if c.Reconnect.MaxAttempts < 0 {
		return errors.New("reconnect.max_attempts must be >= 0")
	}
	if c.Reconnect.BaseDelay < 0 {
		return errors.New("reconnect.base_delay must be >= 0")
	}
	if c.Reconnect.Strategy == StrategyExponential && c.Reconnect.Factor <= 1 {
		return fmt.Errorf("reconnect.factor must be > 1, got %g", c.Reconnect.Factor)
	}
	if c.Reconnect.Jitter < 0 {
		return errors.New("reconnect.jitter must be >= 0")
	}

	if c.Journal.Enabled {
		if err := c.Journal.Database.validate("journal.database"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if c.Journal.BufferSize < 1 {
			return errors.New("journal.buffer_size must be >= 1")
		}
	}

	if c.Health.Port < 0 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 0 and 65535, got %d", c.Health.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
