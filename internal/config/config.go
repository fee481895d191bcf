// Package config provides configuration loading and validation.
package config

// Config holds the server configuration.
type Config struct {
	// ListenAddr is the address to listen on.
	// Example: ":8300"
	ListenAddr string `toml:"listen_addr"`

	// Store configures the persistence driver.
	Store StoreConfig `toml:"store"`

	// Session configures session handling.
	Session SessionConfig `toml:"session"`

	// Realtime configures the websocket push transport.
	Realtime RealtimeConfig `toml:"realtime"`

	// RateLimit configures per-user request quotas.
	RateLimit RateLimitConfig `toml:"rate_limit"`

	// Logging configures the slog logger.
	Logging LoggingConfig `toml:"logging"`

	// Bootstrap optionally seeds an owner account on first start.
	Bootstrap BootstrapConfig `toml:"bootstrap"`
}

// StoreConfig holds persistence driver settings.
type StoreConfig struct {
	// Driver is the driver name: memory or sqlite.
	Driver string `toml:"driver"`

	// DataDir is the directory for data files (sqlite db).
	DataDir string `toml:"data_dir"`
}

// SessionConfig holds session settings.
type SessionConfig struct {
	// TTLHours is the session lifetime in hours.
	TTLHours int `toml:"ttl_hours"`
}

// RealtimeConfig holds websocket transport settings.
type RealtimeConfig struct {
	// HandshakeTimeoutMS bounds how long a connection may stay
	// unauthenticated before it is force-closed.
	HandshakeTimeoutMS int `toml:"handshake_timeout_ms"`

	// WriteTimeoutMS is the per-frame write deadline.
	WriteTimeoutMS int `toml:"write_timeout_ms"`
}

// RateLimitConfig holds request quota settings.
type RateLimitConfig struct {
	// CreatePerMinute caps maintenance-request creation per tenant.
	// 0 disables the limit.
	CreatePerMinute int64 `toml:"create_per_minute"`

	// HandshakePerMinute caps websocket connection attempts per remote
	// host. 0 disables the limit.
	HandshakePerMinute int64 `toml:"handshake_per_minute"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `toml:"level"`
}

// BootstrapConfig holds optional owner seeding settings.
type BootstrapConfig struct {
	OwnerEmail    string `toml:"owner_email"`
	OwnerPassword string `toml:"owner_password"`
	OwnerName     string `toml:"owner_name"`
}

// DefaultConfig returns a Config with sensible defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: ":8300",
		Store: StoreConfig{
			Driver:  "memory",
			DataDir: "./data",
		},
		Session: SessionConfig{
			TTLHours: 24,
		},
		Realtime: RealtimeConfig{
			HandshakeTimeoutMS: 10000,
			WriteTimeoutMS:     5000,
		},
		RateLimit: RateLimitConfig{
			CreatePerMinute:    30,
			HandshakePerMinute: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Redacted returns a copy of the config safe for logging.
// Secrets are replaced with a placeholder.
func (c *Config) Redacted() Config {
	out := *c
	if out.Bootstrap.OwnerPassword != "" {
		out.Bootstrap.OwnerPassword = "[redacted]"
	}
	return out
}
