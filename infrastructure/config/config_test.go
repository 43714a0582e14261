package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config-test.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  internalPort: "9000"
  externalPort: "9000"
store:
  driver: memory
feed:
  driver: memory
auth:
  allowHeaderIdentity: true
`)

	v, err := LoadConfigFile(path)
	require.NoError(t, err)

	cfg, err := ParseConfig(v)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "lobby:changes:", cfg.Feed.ChannelPrefix)
	assert.Equal(t, 5, cfg.Rooms.CodeGenerationAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Feed.RetryInitialInterval)
	assert.Equal(t, DriverNone, cfg.Events.Sink)
	assert.False(t, cfg.UsesRedis())
	assert.Equal(t, ":9000", cfg.GetServerAddress())
}

func TestParseConfig_Durations(t *testing.T) {
	path := writeConfig(t, `
server:
  internalPort: "8080"
  externalPort: "8080"
store:
  driver: memory
feed:
  driver: memory
  retryInitialInterval: 2s
  retryMaxInterval: 1m
auth:
  jwtSecret: secret
`)

	v, err := LoadConfigFile(path)
	require.NoError(t, err)
	cfg, err := ParseConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Feed.RetryInitialInterval)
	assert.Equal(t, time.Minute, cfg.Feed.RetryMaxInterval)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{
			Server: ServerConfig{InternalPort: "8080", ExternalPort: "8080"},
			Store:  StoreConfig{Driver: DriverPostgres},
			Postgres: PostgresConfig{
				Host: "localhost", Port: "5432", DbName: "lobby",
			},
			Redis: RedisConfig{Host: "localhost", Port: "6379"},
			Auth:  AuthConfig{JWTSecret: "secret"},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Server.InternalPort = "" }, wantErr: "server.internalPort"},
		{name: "unknown store", mutate: func(c *Config) { c.Store.Driver = "sqlite" }, wantErr: "store.driver"},
		{name: "missing postgres host", mutate: func(c *Config) { c.Postgres.Host = "" }, wantErr: "postgres.host"},
		{name: "memory feed needs memory store", mutate: func(c *Config) { c.Feed.Driver = DriverMemory }, wantErr: "feed.driver memory"},
		{name: "missing redis host", mutate: func(c *Config) { c.Redis.Host = "" }, wantErr: "redis.host"},
		{name: "amqp without url", mutate: func(c *Config) { c.Events.Sink = DriverAmqp }, wantErr: "events.amqpUrl"},
		{name: "no identity source", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "auth.jwtSecret"},
		{
			name: "audit needs redis sink",
			mutate: func(c *Config) {
				c.Events.PersistAudit = true
				c.Events.Sink = DriverNone
			},
			wantErr: "events.persistAudit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config-development", getConfigPath(""))
	assert.Equal(t, "config-docker", getConfigPath("docker"))
	assert.Equal(t, "config-production", getConfigPath("production"))
}
