package channel

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/cloudcost-notify/internal/envelope"
	"github.com/rickgao/cloudcost-notify/internal/pubsub"
	"github.com/rickgao/cloudcost-notify/internal/queue"
	"github.com/rickgao/cloudcost-notify/internal/router"
	"github.com/rickgao/cloudcost-notify/internal/transport"
)

// Stats is a point-in-time view of the channel.
type Stats struct {
	State       State        `json:"state"`
	Epoch       string       `json:"epoch,omitempty"`
	RetryCount  int          `json:"retry_count"`
	MaxAttempts int          `json:"max_attempts"`
	ConnectedAt time.Time    `json:"connected_at,omitempty"`
	Mailbox     queue.Stats  `json:"mailbox"` // Event loop work queue
	Router      router.Stats `json:"router"`
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(c *Channel) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// Channel is a persistent, self-healing notification connection.
type Channel struct {
	cfg     Config
	factory transport.Factory
	clock   Clock
	logger  *slog.Logger
	router  *router.Router

	// Event loop
	mailbox   *queue.Queue[func()]
	done      chan struct{}
	closeOnce sync.Once

	// Loop-owned state
	state       State
	transport   transport.Transport
	epoch       uuid.UUID
	retries     int
	manualClose bool
	filters     *envelope.FilterSet
	connectedAt time.Time
	heartbeat   timerSlot
	reconnect   timerSlot

	// Snapshot for readers outside the loop
	snapMu sync.RWMutex
	snap   Stats

	// Lifecycle notifications
	connected       pubsub.Topic[ConnectedEvent]
	disconnected    pubsub.Topic[DisconnectedEvent]
	reconnecting    pubsub.Topic[ReconnectingEvent]
	reconnectFailed pubsub.Topic[ReconnectFailedEvent]
	errors          pubsub.Topic[ErrorEvent]
	stateChanged    pubsub.Topic[StateChange]
}

// New creates a Channel in the disconnected state and starts its event loop.
// Nothing is dialed until Connect.
func New(cfg Config, factory transport.Factory, opts ...Option) (*Channel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid channel config: %w", err)
	}
	if factory == nil {
		return nil, fmt.Errorf("invalid channel config: transport factory is required")
	}

	c := &Channel{
		cfg:     cfg,
		factory: factory,
		clock:   realClock{},
		logger:  slog.Default(),
		mailbox: queue.New[func()](64),
		done:    make(chan struct{}),
		state:   StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.Filters != nil {
		f := cfg.Filters.Clone()
		c.filters = &f
	}

	c.router = router.New(c.logger)
	c.router.SetControlHandler(c.handleControl)
	c.snap = Stats{State: StateDisconnected, MaxAttempts: cfg.MaxReconnectAttempts}

	go c.run()

	return c, nil
}

// Connect opens the channel. It is a no-op while connecting or connected.
// Calling Connect after Disconnect or after retries were exhausted starts
// over with a fresh retry budget.
func (c *Channel) Connect() {
	c.post(c.connect)
}

// Disconnect closes the channel and stops all automatic reconnection until
// the next Connect.
func (c *Channel) Disconnect() {
	c.post(c.disconnect)
}

// Send marshals v and writes it on the live transport. Marshal errors are
// returned; a channel that is not connected reports ErrNotConnected through
// OnError. Failed sends are not retried.
func (c *Channel) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	c.post(func() {
		if err := c.send(data); err != nil {
			c.emitError(err)
		}
	})
	return nil
}

// UpdateFilters replaces the filter set in full. The new set is announced
// immediately when connected, otherwise after the next successful open.
func (c *Channel) UpdateFilters(f envelope.FilterSet) {
	f = f.Clone()
	c.post(func() { c.updateFilters(f) })
}

// RequestStats asks the server for its view of this connection. The reply
// arrives on OnMessage with type "stats".
func (c *Channel) RequestStats() error {
	return c.Send(envelope.NewGetStats())
}

// Close disconnects and stops the event loop. After Close every method is a
// no-op and no further notifications are delivered. Close must not be called
// from a subscriber.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		c.post(c.shutdown)
		c.mailbox.Close()
		<-c.done
	})
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap.State
}

// Stats returns a snapshot of channel and router statistics.
func (c *Channel) Stats() Stats {
	c.snapMu.RLock()
	s := c.snap
	c.snapMu.RUnlock()

	s.Mailbox = c.mailbox.Stats()
	s.Router = c.router.Stats()
	return s
}

// post enqueues work for the event loop. Never blocks.
func (c *Channel) post(fn func()) {
	c.mailbox.Push(fn)
}

// run is the event loop goroutine.
func (c *Channel) run() {
	defer close(c.done)

	for {
		fn, ok := c.mailbox.Pop()
		if !ok {
			return
		}
		c.exec(fn)
		c.syncSnapshot()
	}
}

// exec runs one unit of loop work. A panicking subscriber is reported and
// the loop keeps going.
func (c *Channel) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("subscriber panicked", "panic", r)
			c.reportPanic(r)
		}
	}()
	fn()
}

func (c *Channel) reportPanic(r any) {
	defer func() {
		if r2 := recover(); r2 != nil {
			c.logger.Error("error subscriber panicked", "panic", r2)
		}
	}()
	c.errors.Publish(ErrorEvent{Cause: fmt.Errorf("%w: %v", ErrHandlerPanic, r)})
}

func (c *Channel) syncSnapshot() {
	c.snapMu.Lock()
	defer c.snapMu.Unlock()

	c.snap.State = c.state
	c.snap.RetryCount = c.retries
	c.snap.ConnectedAt = c.connectedAt
	if c.epoch != uuid.Nil {
		c.snap.Epoch = c.epoch.String()
	}
}

func (c *Channel) setState(s State) {
	if c.state == s {
		return
	}
	from := c.state
	c.state = s

	c.snapMu.Lock()
	c.snap.State = s
	c.snapMu.Unlock()

	c.logger.Debug("state change", "from", from, "to", s)
	c.stateChanged.Publish(StateChange{From: from, To: s})
}

func (c *Channel) emitError(err error) {
	c.errors.Publish(ErrorEvent{Cause: err})
}

func (c *Channel) connect() {
	if c.state == StateConnected || c.state == StateConnecting {
		c.logger.Debug("connect ignored", "state", c.state)
		return
	}

	c.manualClose = false
	c.retries = 0
	c.reconnect.stop()
	c.open()
}

// open discards any previous transport and dials a new one.
func (c *Channel) open() {
	url, err := BuildURL(c.cfg.URL, c.cfg.Token, c.filters)
	if err != nil {
		c.setState(StateDisconnected)
		c.emitError(err)
		return
	}

	epoch := uuid.New()
	c.epoch = epoch
	c.transport = c.factory(c.handlerFor(epoch))
	c.setState(StateConnecting)

	c.logger.Info("connecting", "epoch", epoch, "attempt", c.retries)
	c.transport.Open(url)
}

// handlerFor binds transport callbacks to one epoch so late callbacks from a
// discarded transport can be recognized and dropped.
func (c *Channel) handlerFor(epoch uuid.UUID) transport.Handler {
	return transport.Handler{
		OnOpen: func() {
			c.post(func() { c.onOpen(epoch) })
		},
		OnMessage: func(data []byte) {
			c.post(func() { c.onMessage(epoch, data) })
		},
		OnClose: func(code int, reason string) {
			c.post(func() { c.onClose(epoch, code, reason) })
		},
		OnError: func(err error) {
			c.post(func() { c.onError(epoch, err) })
		},
	}
}

func (c *Channel) current(epoch uuid.UUID) bool {
	return c.transport != nil && epoch == c.epoch
}

func (c *Channel) onOpen(epoch uuid.UUID) {
	if !c.current(epoch) || c.state != StateConnecting {
		c.logger.Debug("ignoring stale open", "epoch", epoch)
		return
	}

	c.retries = 0
	c.connectedAt = c.clock.Now()
	c.setState(StateConnected)
	c.logger.Info("connected", "epoch", epoch)

	c.startHeartbeat()
	c.announceFilters()

	c.connected.Publish(ConnectedEvent{Epoch: epoch, At: c.connectedAt})
}

func (c *Channel) onMessage(epoch uuid.UUID, data []byte) {
	if !c.current(epoch) || c.state != StateConnected {
		return
	}
	if err := c.router.Route(data); err != nil {
		c.emitError(err)
	}
}

func (c *Channel) onError(epoch uuid.UUID, err error) {
	if !c.current(epoch) {
		c.logger.Debug("ignoring stale transport error", "epoch", epoch, "error", err)
		return
	}

	c.logger.Warn("transport error", "epoch", epoch, "state", c.state, "error", err)
	c.emitError(err)

	if c.manualClose || (c.state != StateConnecting && c.state != StateConnected) {
		return
	}

	// Abandon the transport now; its own close callback becomes stale.
	t := c.transport
	c.lose(transport.CloseAbnormal, err.Error())
	t.Close(transport.CloseAbnormal, "transport error")
}

func (c *Channel) onClose(epoch uuid.UUID, code int, reason string) {
	if !c.current(epoch) {
		c.logger.Debug("ignoring stale close", "epoch", epoch, "code", code)
		return
	}
	c.lose(code, reason)
}

// lose handles the end of the live transport and decides what comes next.
func (c *Channel) lose(code int, reason string) {
	c.heartbeat.stop()
	c.transport = nil

	ev := DisconnectedEvent{
		Epoch:  c.epoch,
		Code:   code,
		Reason: reason,
		Manual: c.manualClose,
	}

	if c.manualClose || code == transport.CloseNormal {
		c.logger.Info("disconnected", "code", code, "reason", reason, "manual", c.manualClose)
		c.setState(StateDisconnected)
		c.disconnected.Publish(ev)
		return
	}

	c.logger.Warn("connection lost", "code", code, "reason", reason)
	c.scheduleReconnect(ev)
}

func (c *Channel) scheduleReconnect(ev DisconnectedEvent) {
	if c.retries >= c.cfg.MaxReconnectAttempts {
		c.setState(StateDisconnected)
		c.disconnected.Publish(ev)

		c.logger.Error("giving up reconnecting", "attempts", c.retries)
		c.reconnectFailed.Publish(ReconnectFailedEvent{
			Attempts: c.retries,
			Err:      fmt.Errorf("%w after %d attempts", ErrReconnectExhausted, c.retries),
		})
		return
	}

	c.retries++
	delay := Backoff(c.cfg.ReconnectDelay, c.retries)

	c.setState(StateReconnecting)
	c.disconnected.Publish(ev)

	c.logger.Info("reconnecting",
		"attempt", c.retries,
		"max_attempts", c.cfg.MaxReconnectAttempts,
		"delay", delay,
	)
	c.reconnecting.Publish(ReconnectingEvent{
		Attempt:     c.retries,
		MaxAttempts: c.cfg.MaxReconnectAttempts,
		Delay:       delay,
	})

	c.reconnect.arm(c, delay, c.retryConnect)
}

// retryConnect is the reconnect scheduler's entry point. It never overrides
// an explicit Disconnect.
func (c *Channel) retryConnect() {
	if c.manualClose || c.state != StateReconnecting {
		return
	}
	c.open()
}

func (c *Channel) disconnect() {
	c.manualClose = true
	c.heartbeat.stop()
	c.reconnect.stop()

	switch {
	case c.transport != nil:
		c.setState(StateClosing)
		c.transport.Close(transport.CloseNormal, "client disconnect")
	case c.state != StateDisconnected:
		c.setState(StateDisconnected)
		c.disconnected.Publish(DisconnectedEvent{
			Epoch:  c.epoch,
			Code:   transport.CloseNormal,
			Reason: "client disconnect",
			Manual: true,
		})
	}
}

// shutdown is the final disconnect. The transport's close callback can no
// longer be delivered, so the loss is settled here.
func (c *Channel) shutdown() {
	c.disconnect()
	if c.transport != nil {
		c.lose(transport.CloseNormal, "client closed")
	}
}

// send writes one frame on the live transport.
func (c *Channel) send(data []byte) error {
	if c.transport == nil || c.state != StateConnected || !c.transport.IsOpen() {
		return ErrNotConnected
	}
	if err := c.transport.Send(data); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

func (c *Channel) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return c.send(data)
}
