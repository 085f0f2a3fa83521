package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-syncd
provider:
  name: fmp
  rest_url: https://api.example.com
  ws_url: wss://stream.example.com
  credential_url: https://host.example.com/api/stream-token
database:
  host: localhost
  port: 5432
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-syncd" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-syncd")
	}
	if cfg.Provider.RestURL != "https://api.example.com" {
		t.Errorf("Provider.RestURL = %q", cfg.Provider.RestURL)
	}
	if cfg.Provider.Name != "fmp" {
		t.Errorf("Provider.Name = %q, want fmp", cfg.Provider.Name)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("Database.Host = %q, want localhost", cfg.Database.Host)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-syncd
database:
  host: localhost
  name: test_db
  user: testuser
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-syncd
provider:
  rest_url: https://api.example.com
  ws_url: wss://stream.example.com
  credential_url: https://host.example.com/api/stream-token
database:
  host: localhost
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Stream.MaxRetries != DefaultStreamRetries {
		t.Errorf("Stream.MaxRetries = %d, want default %d", cfg.Stream.MaxRetries, DefaultStreamRetries)
	}
	if cfg.Stream.RetryDelay != DefaultRetryDelay {
		t.Errorf("Stream.RetryDelay = %v, want default %v", cfg.Stream.RetryDelay, DefaultRetryDelay)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Database.MaxConns != DefaultMaxConns {
		t.Errorf("Database.MaxConns = %d, want default %d", cfg.Database.MaxConns, DefaultMaxConns)
	}
	if cfg.Cache.SweepInterval != DefaultSweepInterval {
		t.Errorf("Cache.SweepInterval = %v, want default %v", cfg.Cache.SweepInterval, DefaultSweepInterval)
	}
	if cfg.Health.Port != DefaultHealthPort {
		t.Errorf("Health.Port = %d, want default %d", cfg.Health.Port, DefaultHealthPort)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Instance: InstanceConfig{ID: "test"},
		Provider: ProviderConfig{
			RestURL:       "https://api.example.com",
			WSURL:         "wss://stream.example.com",
			CredentialURL: "https://host.example.com/api/stream-token",
		},
		Database: DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 10, MinConns: 2},
		Stream:   StreamConfig{MaxRetries: 5, RetryDelay: 5 * time.Second, BufferSize: 1000},
		Cache:    CacheConfig{SweepInterval: 5 * time.Minute, MaxEntries: 50000},
		Health:   HealthConfig{Port: 8080},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing ws url",
			mutate:  func(c *Config) { c.Provider.WSURL = "" },
			wantErr: "provider.ws_url is required",
		},
		{
			name:    "missing credential url",
			mutate:  func(c *Config) { c.Provider.CredentialURL = "" },
			wantErr: "provider.credential_url is required",
		},
		{
			name:    "missing database password",
			mutate:  func(c *Config) { c.Database.Password = "" },
			wantErr: "database.password is required",
		},
		{
			name:    "min_conns exceeds max_conns",
			mutate:  func(c *Config) { c.Database.MinConns = 20 },
			wantErr: "database.min_conns (20) cannot exceed max_conns (10)",
		},
		{
			name:    "bad sweep interval",
			mutate:  func(c *Config) { c.Cache.SweepInterval = 0 },
			wantErr: "cache.sweep_interval must be > 0",
		},
		{
			name:    "bad health port",
			mutate:  func(c *Config) { c.Health.Port = 70000 },
			wantErr: "health.port must be between 1 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
