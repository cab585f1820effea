// Package transport implements the Transport Adapter component.
//
// A Transport owns exactly one socket. It exposes open/send/close and reports
// lifecycle through Handler callbacks; it holds no business logic and never
// reconnects on its own. Every Transport reports OnClose exactly once, after
// which no further callbacks arrive.
package transport

import (
	"errors"
	"time"
)

// Close codes used by the channel.
const (
	CloseNormal   = 1000 // RFC 6455 normal closure
	CloseAbnormal = 1006 // No close frame was received
)

// Errors
var (
	ErrNotOpen       = errors.New("transport not open")
	ErrAlreadyOpened = errors.New("transport already opened")
)

// Handler receives transport lifecycle callbacks. Callbacks may run on any
// goroutine; the receiver is responsible for serializing them.
type Handler struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnClose   func(code int, reason string)
	OnError   func(err error)
}

// Transport is the capability the connection state machine drives.
type Transport interface {
	// Open starts connecting to url and returns immediately. The outcome is
	// reported through OnOpen, or OnError followed by OnClose.
	Open(url string)

	// Send writes one text frame.
	Send(data []byte) error

	// Close requests closure with the given code. OnClose follows.
	Close(code int, reason string)

	// IsOpen reports whether the socket is currently usable for Send.
	IsOpen() bool
}

// Factory creates a fresh Transport bound to h. The channel calls it once per
// connection attempt.
type Factory func(h Handler) Transport

// Config configures the WebSocket transport.
type Config struct {
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	WriteTimeout     time.Duration // Write deadline for sends
	ReadTimeout      time.Duration // Max silence before the socket is declared dead (0 = never)
	UserAgent        string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadTimeout:      90 * time.Second, // Three missed heartbeats
	}
}
