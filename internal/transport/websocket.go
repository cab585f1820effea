package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// webSocket implements Transport over gorilla/websocket.
type webSocket struct {
	cfg    Config
	h      Handler
	logger *slog.Logger

	// Write serialization
	writeMu sync.Mutex

	// State
	mu        sync.RWMutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	opened    bool // Open has been called
	open      bool
	closing   bool
	closeCode int
	closeText string

	closeOnce sync.Once
}

// NewWebSocketFactory returns a Factory producing gorilla/websocket transports.
func NewWebSocketFactory(cfg Config, logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(h Handler) Transport {
		return NewWebSocket(cfg, h, logger)
	}
}

// NewWebSocket creates a single-use WebSocket transport.
func NewWebSocket(cfg Config, h Handler, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &webSocket{
		cfg:    cfg,
		h:      h,
		logger: logger,
	}
}

// Open dials in the background.
func (w *webSocket) Open(rawURL string) {
	w.mu.Lock()
	if w.opened {
		w.mu.Unlock()
		w.emitError(ErrAlreadyOpened)
		return
	}
	w.opened = true

	if w.closing {
		code, text := w.closeCode, w.closeText
		w.mu.Unlock()
		w.notifyClose(code, text)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.mu.Unlock()

	go w.dial(ctx, rawURL)
}

func (w *webSocket) dial(ctx context.Context, rawURL string) {
	header := http.Header{}
	header.Set("Accept", "application/json")
	if w.cfg.UserAgent != "" {
		header.Set("User-Agent", w.cfg.UserAgent)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: w.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	w.mu.Lock()
	if w.closing {
		// Close was requested while dialing
		code, text := w.closeCode, w.closeText
		w.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		w.notifyClose(code, text)
		return
	}
	if err != nil {
		w.mu.Unlock()
		if resp != nil {
			err = fmt.Errorf("dial %s: %w (status %d)", redact(rawURL), err, resp.StatusCode)
		} else {
			err = fmt.Errorf("dial %s: %w", redact(rawURL), err)
		}
		w.emitError(err)
		w.notifyClose(CloseAbnormal, "dial failed")
		return
	}
	w.conn = conn
	w.open = true
	w.mu.Unlock()

	// Server pings extend the read deadline just like data frames do
	conn.SetPingHandler(func(data string) error {
		w.extendReadDeadline(conn)
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		var ne net.Error
		if errors.Is(err, websocket.ErrCloseSent) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil
		}
		return err
	})
	conn.SetPongHandler(func(string) error {
		w.extendReadDeadline(conn)
		return nil
	})

	w.logger.Debug("websocket connected", "url", redact(rawURL))

	if w.h.OnOpen != nil {
		w.h.OnOpen()
	}

	go w.readLoop(conn)
}

// readLoop delivers frames until the socket fails or is closed.
func (w *webSocket) readLoop(conn *websocket.Conn) {
	for {
		w.extendReadDeadline(conn)

		_, data, err := conn.ReadMessage()
		if err != nil {
			w.handleReadError(conn, err)
			return
		}

		if w.h.OnMessage != nil {
			w.h.OnMessage(data)
		}
	}
}

func (w *webSocket) handleReadError(conn *websocket.Conn, err error) {
	w.mu.Lock()
	w.open = false
	closing, code, text := w.closing, w.closeCode, w.closeText
	w.mu.Unlock()

	conn.Close()

	var closeErr *websocket.CloseError
	switch {
	case closing:
		w.notifyClose(code, text)
	case errors.As(err, &closeErr):
		w.logger.Debug("websocket closed by peer", "code", closeErr.Code, "reason", closeErr.Text)
		if closeErr.Code == CloseAbnormal {
			// Connection dropped without a close frame
			w.emitError(fmt.Errorf("read: %w", err))
		}
		w.notifyClose(closeErr.Code, closeErr.Text)
	default:
		w.emitError(fmt.Errorf("read: %w", err))
		w.notifyClose(CloseAbnormal, err.Error())
	}
}

func (w *webSocket) extendReadDeadline(conn *websocket.Conn) {
	if w.cfg.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(w.cfg.ReadTimeout))
	}
}

// Send writes a text frame.
func (w *webSocket) Send(data []byte) error {
	w.mu.RLock()
	conn, open := w.conn, w.open
	w.mu.RUnlock()

	if !open {
		return ErrNotOpen
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close sends a close frame (when connected) and tears the socket down.
// An in-flight dial is cancelled.
func (w *webSocket) Close(code int, reason string) {
	w.mu.Lock()
	if w.closing {
		w.mu.Unlock()
		return
	}
	w.closing = true
	w.closeCode = code
	w.closeText = reason
	w.open = false
	conn, cancel, opened := w.conn, w.cancel, w.opened
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if conn == nil {
		if !opened {
			w.notifyClose(code, reason)
		}
		// Otherwise the dial goroutine reports the close
		return
	}

	if err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second),
	); err != nil {
		w.logger.Debug("failed to send close frame", "error", err)
	}
	conn.Close()
}

// IsOpen reports whether Send can currently succeed.
func (w *webSocket) IsOpen() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.open
}

func (w *webSocket) emitError(err error) {
	if w.h.OnError != nil {
		w.h.OnError(err)
	}
}

func (w *webSocket) notifyClose(code int, reason string) {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.open = false
		w.mu.Unlock()

		if w.h.OnClose != nil {
			w.h.OnClose(code, reason)
		}
	})
}

// redact strips the query string, which carries the credential token.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
