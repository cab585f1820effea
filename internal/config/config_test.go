package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/cloudcost-notify/internal/envelope"
	"github.com/rickgao/cloudcost-notify/internal/transport"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
server:
  url: wss://api.example.com/api/v1/ws/connect
  token: abc
filters:
  message_types: [cost_update, waste_detected]
  account_ids: ["acct-1"]
reconnect:
  max_attempts: 3
  base_delay: 2s
`
	cfg, err := Load(writeTempFile(t, yaml))
	require.NoError(t, err)

	assert.Equal(t, "wss://api.example.com/api/v1/ws/connect", cfg.Server.URL)
	assert.Equal(t, "abc", cfg.Server.Token)
	require.NotNil(t, cfg.Filters)
	assert.Equal(t, []envelope.Type{envelope.TypeCostUpdate, envelope.TypeWasteDetected}, cfg.Filters.MessageTypes)
	assert.Equal(t, []string{"acct-1"}, cfg.Filters.AccountIDs)
	require.NotNil(t, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 3, *cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Reconnect.BaseDelay)
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_NOTIFY_TOKEN", "secret123")

	yaml := `
server:
  url: wss://api.example.com/ws
  token: ${TEST_NOTIFY_TOKEN}
`
	cfg, err := Load(writeTempFile(t, yaml))
	require.NoError(t, err)
	assert.Equal(t, "secret123", cfg.Server.Token)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeTempFile(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
server:
  url: wss://api.example.com/ws
`
	cfg, err := LoadWithDefaults(writeTempFile(t, yaml))
	require.NoError(t, err)

	assert.Nil(t, cfg.Filters)
	require.NotNil(t, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, DefaultMaxAttempts, *cfg.Reconnect.MaxAttempts)
	assert.Equal(t, DefaultBaseDelay, cfg.Reconnect.BaseDelay)
	assert.Equal(t, DefaultHeartbeat, cfg.Heartbeat.Interval)
	assert.Equal(t, transport.DefaultConfig().HandshakeTimeout, cfg.Transport.HandshakeTimeout)
	assert.Equal(t, transport.DefaultConfig().ReadTimeout, cfg.Transport.ReadTimeout)
	assert.Equal(t, DefaultDBPort, cfg.Sinks.Postgres.Database.Port)
	assert.Equal(t, DefaultBatchSize, cfg.Sinks.Postgres.Writer.BatchSize)
	assert.Equal(t, DefaultRedisPrefix, cfg.Sinks.Redis.Prefix)
	assert.Equal(t, DefaultHealthPort, cfg.Health.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadWithDefaults_ZeroAttemptsKept(t *testing.T) {
	yaml := `
server:
  url: wss://api.example.com/ws
reconnect:
  max_attempts: 0
`
	cfg, err := LoadWithDefaults(writeTempFile(t, yaml))
	require.NoError(t, err)
	assert.Equal(t, 0, *cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 0, cfg.ChannelConfig("").MaxReconnectAttempts)
}

func TestLoadAndValidate(t *testing.T) {
	_, err := LoadAndValidate(writeTempFile(t, "log:\n  level: debug\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.url is required")
}

func validConfig() *Config {
	cfg := &Config{Server: ServerConfig{URL: "wss://api.example.com/ws", Token: "t"}}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"missing url", func(c *Config) { c.Server.URL = "" }, "server.url is required"},
		{"http url", func(c *Config) { c.Server.URL = "http://x" }, "server.url scheme"},
		{"token and path", func(c *Config) { c.Server.TokenPath = "/tmp/t" }, "mutually exclusive"},
		{"negative attempts", func(c *Config) { n := -1; c.Reconnect.MaxAttempts = &n }, "reconnect.max_attempts"},
		{"read timeout below heartbeat", func(c *Config) { c.Transport.ReadTimeout = 10 * time.Second }, "transport.read_timeout"},
		{"postgres without host", func(c *Config) {
			c.Sinks.Postgres.Enabled = true
			c.Sinks.Postgres.Database.Name = "n"
			c.Sinks.Postgres.Database.User = "u"
		}, "sinks.postgres.database.host is required"},
		{"postgres min over max", func(c *Config) {
			c.Sinks.Postgres.Enabled = true
			c.Sinks.Postgres.Database = DBConfig{Host: "h", Name: "n", User: "u", MaxConns: 1, MinConns: 2}
		}, "cannot exceed"},
		{"redis without url", func(c *Config) { c.Sinks.Redis.Enabled = true }, "sinks.redis.url is required"},
		{"negative stats interval", func(c *Config) { c.Stats.Interval = -time.Second }, "stats.interval"},
		{"bad port", func(c *Config) { c.Health.Port = 70000 }, "health.port"},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestChannelConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Filters = &envelope.FilterSet{AccountIDs: []string{"a"}}

	cc := cfg.ChannelConfig("tok")
	require.NoError(t, cc.Validate())
	assert.Equal(t, "tok", cc.Token)
	assert.Equal(t, DefaultMaxAttempts, cc.MaxReconnectAttempts)
	assert.Equal(t, DefaultBaseDelay, cc.ReconnectDelay)
	require.NotNil(t, cc.Filters)
	assert.Equal(t, []string{"a"}, cc.Filters.AccountIDs)

	cfg.Filters.AccountIDs[0] = "mutated"
	assert.Equal(t, []string{"a"}, cc.Filters.AccountIDs)
}

func TestTransportConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Transport.UserAgent = "notifytail/test"

	tc := cfg.TransportConfig()
	assert.Equal(t, transport.DefaultConfig().HandshakeTimeout, tc.HandshakeTimeout)
	assert.Equal(t, transport.DefaultConfig().WriteTimeout, tc.WriteTimeout)
	assert.Equal(t, "notifytail/test", tc.UserAgent)
}

func TestSlogLevel(t *testing.T) {
	cfg := validConfig()
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		cfg.Log.Level = level
		assert.Equal(t, want, cfg.SlogLevel(), level)
	}
}
