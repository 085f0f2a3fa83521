package config

import "time"

// Config is the root configuration for a syncd instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Provider ProviderConfig `yaml:"provider"`
	Database DBConfig       `yaml:"database"`
	Stream   StreamConfig   `yaml:"stream"`
	Cache    CacheConfig    `yaml:"cache"`
	Health   HealthConfig   `yaml:"health"`
}

// InstanceConfig identifies this instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ProviderConfig holds market-data provider settings.
type ProviderConfig struct {
	Name            string        `yaml:"name"`             // provider label for api usage tracking
	RestURL         string        `yaml:"rest_url"`         // REST base URL
	WSURL           string        `yaml:"ws_url"`           // push connection URL
	APIKey          string        `yaml:"api_key"`          // REST API key
	CredentialURL   string        `yaml:"credential_url"`   // endpoint returning {"apiKey": ...} per connect
	CredentialToken string        `yaml:"credential_token"` // bearer token for the credential endpoint
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
}

// DBConfig holds the cache database connection.
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

// StreamConfig holds live price channel settings.
type StreamConfig struct {
	MaxRetries   int           `yaml:"max_retries"`   // consecutive failed connects before failed
	RetryDelay   time.Duration `yaml:"retry_delay"`   // fixed delay between retries
	PingTimeout  time.Duration `yaml:"ping_timeout"`  // stale connection cutoff
	WriteTimeout time.Duration `yaml:"write_timeout"` // write deadline for sends
	BufferSize   int           `yaml:"buffer_size"`   // inbound message buffer
}

// CacheConfig holds sweep and quota settings.
type CacheConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"` // how often expired entries are physically deleted
	MaxEntries    int64         `yaml:"max_entries"`    // total entry quota before priority-ordered clearing
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}
