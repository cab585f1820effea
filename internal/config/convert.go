package config

import (
	"log/slog"
	"strings"

	"github.com/rickgao/cloudcost-notify/internal/channel"
	"github.com/rickgao/cloudcost-notify/internal/transport"
)

// ChannelConfig builds the channel settings. The token is resolved by the
// caller since it may come from a file.
func (c *Config) ChannelConfig(token string) channel.Config {
	cfg := channel.DefaultConfig()
	cfg.URL = c.Server.URL
	cfg.Token = token
	if c.Filters != nil {
		f := c.Filters.Clone()
		cfg.Filters = &f
	}
	if c.Reconnect.MaxAttempts != nil {
		cfg.MaxReconnectAttempts = *c.Reconnect.MaxAttempts
	}
	if c.Reconnect.BaseDelay > 0 {
		cfg.ReconnectDelay = c.Reconnect.BaseDelay
	}
	if c.Heartbeat.Interval > 0 {
		cfg.HeartbeatInterval = c.Heartbeat.Interval
	}
	return cfg
}

// TransportConfig builds the WebSocket adapter settings.
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		HandshakeTimeout: c.Transport.HandshakeTimeout,
		WriteTimeout:     c.Transport.WriteTimeout,
		ReadTimeout:      c.Transport.ReadTimeout,
		UserAgent:        c.Transport.UserAgent,
	}
}

// SlogLevel maps log.level to a slog level. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
