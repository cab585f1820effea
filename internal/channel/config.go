package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rickgao/cloudcost-notify/internal/envelope"
)

// Config is the immutable per-session configuration of a Channel.
type Config struct {
	URL     string              // Base endpoint, e.g. wss://api.example.com/api/v1/ws/connect
	Token   string              // Opaque credential passed as the "token" query parameter
	Filters *envelope.FilterSet // Initial filter set (nil = none declared)

	// MaxReconnectAttempts is the number of automatic retries after a loss.
	// The channel gives up on the abnormal closure that follows the last
	// retry, i.e. after MaxReconnectAttempts+1 consecutive closures counting
	// the loss that started the cycle. Zero gives up on the first loss.
	MaxReconnectAttempts int

	ReconnectDelay    time.Duration // Base backoff delay
	HeartbeatInterval time.Duration // Ping interval while connected
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxReconnectAttempts: 5,
		ReconnectDelay:       5 * time.Second,
		HeartbeatInterval:    30 * time.Second,
	}
}

// Validate checks that all required fields are set and values are valid.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("url is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("url scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.MaxReconnectAttempts < 0 {
		return errors.New("max_reconnect_attempts must be >= 0")
	}
	if c.ReconnectDelay <= 0 {
		return errors.New("reconnect_delay must be > 0")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat_interval must be > 0")
	}
	return nil
}

// BuildURL returns the connection address: base plus the token and the
// JSON-encoded filter set as query parameters.
func BuildURL(base, token string, filters *envelope.FilterSet) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	q := u.Query()
	if token != "" {
		q.Set("token", token)
	}
	if filters != nil && !filters.IsEmpty() {
		data, err := json.Marshal(filters)
		if err != nil {
			return "", fmt.Errorf("encode filters: %w", err)
		}
		q.Set("filters", string(data))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
