package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server.url is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server.url scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.Server.Token != "" && c.Server.TokenPath != "" {
		return errors.New("server.token and server.token_path are mutually exclusive")
	}

	if c.Reconnect.MaxAttempts != nil && *c.Reconnect.MaxAttempts < 0 {
		return errors.New("reconnect.max_attempts must be >= 0")
	}
	if c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay must be > 0")
	}
	if c.Heartbeat.Interval <= 0 {
		return errors.New("heartbeat.interval must be > 0")
	}
	if c.Transport.ReadTimeout > 0 && c.Transport.ReadTimeout <= c.Heartbeat.Interval {
		return fmt.Errorf("transport.read_timeout (%s) must exceed heartbeat.interval (%s)",
			c.Transport.ReadTimeout, c.Heartbeat.Interval)
	}

	if c.Stats.Interval < 0 {
		return errors.New("stats.interval must be >= 0")
	}

	if c.Sinks.Postgres.Enabled {
		if err := c.Sinks.Postgres.Database.validate("sinks.postgres.database"); err != nil {
			return err
		}
		if err := c.Sinks.Postgres.Writer.validate("sinks.postgres.writer"); err != nil {
			return err
		}
	}
	if c.Sinks.Redis.Enabled {
		if c.Sinks.Redis.URL == "" {
			return errors.New("sinks.redis.url is required")
		}
		if err := c.Sinks.Redis.Writer.validate("sinks.redis.writer"); err != nil {
			return err
		}
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	switch strings.ToLower(c.Log.Level) {
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

func (w *WriterConfig) validate(prefix string) error {
	if w.BatchSize < 1 {
		return fmt.Errorf("%s.batch_size must be >= 1", prefix)
	}
	if w.FlushInterval <= 0 {
		return fmt.Errorf("%s.flush_interval must be > 0", prefix)
	}
	return nil
}
