package config

import (
	"time"

	"github.com/rickgao/cloudcost-notify/internal/transport"
)

// Default values for optional configuration fields.
const (
	DefaultMaxAttempts   = 5
	DefaultBaseDelay     = 5 * time.Second
	DefaultHeartbeat     = 30 * time.Second
	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 4
	DefaultMinConns      = 1
	DefaultBatchSize     = 100
	DefaultFlushInterval = 1 * time.Second
	DefaultRedisPrefix   = "notify"
	DefaultHealthPort    = 9090
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

func (c *Config) applyDefaults() {
	// Reconnect defaults
	if c.Reconnect.MaxAttempts == nil {
		n := DefaultMaxAttempts
		c.Reconnect.MaxAttempts = &n
	}
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultBaseDelay
	}
	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = DefaultHeartbeat
	}

	// Transport defaults
	td := transport.DefaultConfig()
	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = td.HandshakeTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = td.WriteTimeout
	}
	if c.Transport.ReadTimeout == 0 {
		c.Transport.ReadTimeout = td.ReadTimeout
	}

	// Sink defaults
	applyDBDefaults(&c.Sinks.Postgres.Database)
	applyWriterDefaults(&c.Sinks.Postgres.Writer)
	applyWriterDefaults(&c.Sinks.Redis.Writer)
	if c.Sinks.Redis.Prefix == "" {
		c.Sinks.Redis.Prefix = DefaultRedisPrefix
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

func applyWriterDefaults(w *WriterConfig) {
	if w.BatchSize == 0 {
		w.BatchSize = DefaultBatchSize
	}
	if w.FlushInterval == 0 {
		w.FlushInterval = DefaultFlushInterval
	}
}
