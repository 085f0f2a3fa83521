package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultProviderName    = "default"
	DefaultProviderTimeout = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultStreamRetries   = 5
	DefaultRetryDelay      = 5 * time.Second
	DefaultPingTimeout     = 60 * time.Second
	DefaultWriteTimeout    = 5 * time.Second
	DefaultBufferSize      = 1000
	DefaultSweepInterval   = 5 * time.Minute
	DefaultMaxEntries      = 50000
	DefaultHealthPort      = 8080
)

func (c *Config) applyDefaults() {
	// Provider defaults
	if c.Provider.Name == "" {
		c.Provider.Name = DefaultProviderName
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = DefaultProviderTimeout
	}
	if c.Provider.MaxRetries == 0 {
		c.Provider.MaxRetries = DefaultMaxRetries
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Stream defaults
	if c.Stream.MaxRetries == 0 {
		c.Stream.MaxRetries = DefaultStreamRetries
	}
	if c.Stream.RetryDelay == 0 {
		c.Stream.RetryDelay = DefaultRetryDelay
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultBufferSize
	}

	// Cache defaults
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = DefaultSweepInterval
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = DefaultMaxEntries
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}
