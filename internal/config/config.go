package config

import "time"

// SubscriberConfig is the root configuration for a subscriber instance.
type SubscriberConfig struct {
	Instance     InstanceConfig     `yaml:"instance"`
	Endpoint     EndpointConfig     `yaml:"endpoint"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Reconnect    ReconnectConfig    `yaml:"reconnect"`
	Journal      JournalConfig      `yaml:"journal"`
	Health       HealthConfig       `yaml:"health"`
	Log          LogConfig          `yaml:"log"`
}

// InstanceConfig identifies this subscriber.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// EndpointConfig holds the console push endpoint settings.
type EndpointConfig struct {
	BaseURL          string        `yaml:"base_url"` // e.g. wss://console.example.com/ws
	Token            string        `yaml:"token"`    // Bearer token, usually ${CONSOLE_TOKEN}
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
}

// SubscriptionConfig selects what to subscribe to.
type SubscriptionConfig struct {
	ID         string   `yaml:"id"`
	EventTypes []string `yaml:"event_types"` // Empty = all
}

// ReconnectConfig selects the retry policy.
type ReconnectConfig struct {
	Strategy    string        `yaml:"strategy"` // linear | exponential
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
	Factor      float64       `yaml:"factor"` // exponential only
	Jitter      float64       `yaml:"jitter"` // exponential only
}

// JournalConfig holds the event journal settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"` // 0 disables the server
	Path string `yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}
