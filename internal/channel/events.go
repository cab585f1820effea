package channel

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/cloudcost-notify/internal/envelope"
	"github.com/rickgao/cloudcost-notify/internal/pubsub"
)

// Errors
var (
	ErrNotConnected       = errors.New("channel not connected")
	ErrSendFailed         = errors.New("send failed")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrHandlerPanic       = errors.New("subscriber panicked")
)

// ConnectedEvent is emitted when a transport opens.
type ConnectedEvent struct {
	Epoch uuid.UUID // Identifies the transport instance
	At    time.Time
}

// DisconnectedEvent is emitted when the live transport goes away.
type DisconnectedEvent struct {
	Epoch  uuid.UUID
	Code   int
	Reason string
	Manual bool // True if caused by Disconnect or Close
}

// ReconnectingEvent is emitted when a reconnect attempt is scheduled.
type ReconnectingEvent struct {
	Attempt     int
	MaxAttempts int
	Delay       time.Duration
}

// ReconnectFailedEvent is emitted once the retry budget is spent. The channel
// stays disconnected until Connect is called.
type ReconnectFailedEvent struct {
	Attempts int
	Err      error // Always wraps ErrReconnectExhausted
}

// ErrorEvent reports a non-fatal local error.
type ErrorEvent struct {
	Cause error
}

// StateChange is emitted on every lifecycle transition.
type StateChange struct {
	From State
	To   State
}

// OnConnected registers a handler for successful opens.
func (c *Channel) OnConnected(fn func(ConnectedEvent)) pubsub.Unsubscribe {
	return c.connected.Subscribe(fn)
}

// OnDisconnected registers a handler for transport loss or closure.
func (c *Channel) OnDisconnected(fn func(DisconnectedEvent)) pubsub.Unsubscribe {
	return c.disconnected.Subscribe(fn)
}

// OnReconnecting registers a handler for scheduled reconnect attempts.
func (c *Channel) OnReconnecting(fn func(ReconnectingEvent)) pubsub.Unsubscribe {
	return c.reconnecting.Subscribe(fn)
}

// OnReconnectFailed registers a handler for retry exhaustion.
func (c *Channel) OnReconnectFailed(fn func(ReconnectFailedEvent)) pubsub.Unsubscribe {
	return c.reconnectFailed.Subscribe(fn)
}

// OnError registers a handler for local errors: transport errors, malformed
// frames, failed sends.
func (c *Channel) OnError(fn func(ErrorEvent)) pubsub.Unsubscribe {
	return c.errors.Subscribe(fn)
}

// OnStateChange registers a handler for every lifecycle transition.
func (c *Channel) OnStateChange(fn func(StateChange)) pubsub.Unsubscribe {
	return c.stateChanged.Subscribe(fn)
}

// OnCostUpdate registers a handler for "cost_update" messages.
func (c *Channel) OnCostUpdate(fn func(envelope.CostUpdate)) pubsub.Unsubscribe {
	return c.router.OnCostUpdate(fn)
}

// OnWasteDetected registers a handler for "waste_detected" messages.
func (c *Channel) OnWasteDetected(fn func(envelope.WasteDetected)) pubsub.Unsubscribe {
	return c.router.OnWasteDetected(fn)
}

// OnRecommendationReady registers a handler for "recommendation_ready" messages.
func (c *Channel) OnRecommendationReady(fn func(envelope.RecommendationReady)) pubsub.Unsubscribe {
	return c.router.OnRecommendationReady(fn)
}

// OnJobStatus registers a handler for "job_status" messages.
func (c *Channel) OnJobStatus(fn func(envelope.JobStatus)) pubsub.Unsubscribe {
	return c.router.OnJobStatus(fn)
}

// OnAccountStatus registers a handler for "account_status" messages.
func (c *Channel) OnAccountStatus(fn func(envelope.AccountStatus)) pubsub.Unsubscribe {
	return c.router.OnAccountStatus(fn)
}

// OnServerError registers a handler for "error" messages from the server.
func (c *Channel) OnServerError(fn func(envelope.ServerError)) pubsub.Unsubscribe {
	return c.router.OnServerError(fn)
}

// OnMessage registers a handler for messages of unrecognized type.
func (c *Channel) OnMessage(fn func(envelope.Envelope)) pubsub.Unsubscribe {
	return c.router.OnMessage(fn)
}

// OnRaw registers a handler for every non-control message.
func (c *Channel) OnRaw(fn func(envelope.Envelope)) pubsub.Unsubscribe {
	return c.router.OnRaw(fn)
}
