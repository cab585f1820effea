package router

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/cloudcost-notify/internal/envelope"
	"github.com/rickgao/cloudcost-notify/internal/pubsub"
)

var (
	// ErrMalformedFrame wraps failures to parse the envelope itself. Such
	// frames reach no subscriber.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrPayloadMismatch wraps failures to decode the payload of a recognized
	// type. The envelope still reaches raw subscribers.
	ErrPayloadMismatch = errors.New("payload does not match type")
)

// Stats contains routing statistics.
type Stats struct {
	Received        int64                   `json:"received"`
	Routed          int64                   `json:"routed"`
	ControlMessages int64                   `json:"control_messages"`
	ParseErrors     int64                   `json:"parse_errors"`
	DecodeErrors    int64                   `json:"decode_errors"`
	UnknownMessages int64                   `json:"unknown_messages"`
	ByType          map[envelope.Type]int64 `json:"by_type"`
}

// Router classifies inbound frames and fans them out to subscribers.
// Route is not safe for concurrent use; callers serialize it (the channel
// calls it from its event loop). Subscription methods may be called from
// any goroutine.
type Router struct {
	logger  *slog.Logger
	control func(envelope.Envelope)

	costUpdate          pubsub.Topic[envelope.CostUpdate]
	wasteDetected       pubsub.Topic[envelope.WasteDetected]
	recommendationReady pubsub.Topic[envelope.RecommendationReady]
	jobStatus           pubsub.Topic[envelope.JobStatus]
	accountStatus       pubsub.Topic[envelope.AccountStatus]
	serverError         pubsub.Topic[envelope.ServerError]
	message             pubsub.Topic[envelope.Envelope]
	raw                 pubsub.Topic[envelope.Envelope]

	mu    sync.RWMutex
	stats Stats
}

// New creates a Message Router.
func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		logger: logger,
		stats:  Stats{ByType: make(map[envelope.Type]int64)},
	}
}

// SetControlHandler installs the receiver for ping/pong frames.
func (r *Router) SetControlHandler(fn func(envelope.Envelope)) {
	r.control = fn
}

// Route parses and dispatches a single frame. An error wrapping
// ErrMalformedFrame means no subscriber was notified. An error wrapping
// ErrPayloadMismatch means typed subscribers were skipped but raw
// subscribers still saw the envelope.
func (r *Router) Route(data []byte) error {
	r.mu.Lock()
	r.stats.Received++
	r.mu.Unlock()

	env, err := envelope.Parse(data)
	if err != nil {
		return r.malformed("", err)
	}

	if env.Type.IsControl() {
		r.mu.Lock()
		r.stats.ControlMessages++
		r.mu.Unlock()

		if r.control != nil {
			r.control(env)
		}
		return nil
	}

	switch env.Type {
	case envelope.TypeCostUpdate:
		err = dispatch(env, &r.costUpdate)
	case envelope.TypeWasteDetected:
		err = dispatch(env, &r.wasteDetected)
	case envelope.TypeRecommendationReady:
		err = dispatch(env, &r.recommendationReady)
	case envelope.TypeJobStatus:
		err = dispatch(env, &r.jobStatus)
	case envelope.TypeAccountStatus:
		err = dispatch(env, &r.accountStatus)
	case envelope.TypeError:
		err = dispatch(env, &r.serverError)
	default:
		r.logger.Debug("untyped message", "type", env.Type)
		r.mu.Lock()
		r.stats.UnknownMessages++
		r.mu.Unlock()
		r.message.Publish(env)
	}

	r.raw.Publish(env)

	r.mu.Lock()
	r.stats.Routed++
	r.stats.ByType[env.Type]++
	if err != nil {
		r.stats.DecodeErrors++
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("payload does not match type", "type", env.Type, "error", err)
		return fmt.Errorf("%w: %w", ErrPayloadMismatch, err)
	}
	return nil
}

// dispatch publishes the typed payload when it decodes.
func dispatch[T any](env envelope.Envelope, topic *pubsub.Topic[T]) error {
	var msg T
	if err := env.Decode(&msg); err != nil {
		return err
	}
	topic.Publish(msg)
	return nil
}

func (r *Router) malformed(msgType envelope.Type, err error) error {
	r.mu.Lock()
	r.stats.ParseErrors++
	r.mu.Unlock()

	r.logger.Warn("dropping malformed frame", "type", msgType, "error", err)
	return fmt.Errorf("%w: %w", ErrMalformedFrame, err)
}

// Stats returns a snapshot of routing statistics.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.stats
	s.ByType = make(map[envelope.Type]int64, len(r.stats.ByType))
	for k, v := range r.stats.ByType {
		s.ByType[k] = v
	}
	return s
}

// OnCostUpdate registers a handler for "cost_update" frames.
func (r *Router) OnCostUpdate(fn func(envelope.CostUpdate)) pubsub.Unsubscribe {
	return r.costUpdate.Subscribe(fn)
}

// OnWasteDetected registers a handler for "waste_detected" frames.
func (r *Router) OnWasteDetected(fn func(envelope.WasteDetected)) pubsub.Unsubscribe {
	return r.wasteDetected.Subscribe(fn)
}

// OnRecommendationReady registers a handler for "recommendation_ready" frames.
func (r *Router) OnRecommendationReady(fn func(envelope.RecommendationReady)) pubsub.Unsubscribe {
	return r.recommendationReady.Subscribe(fn)
}

// OnJobStatus registers a handler for "job_status" frames.
func (r *Router) OnJobStatus(fn func(envelope.JobStatus)) pubsub.Unsubscribe {
	return r.jobStatus.Subscribe(fn)
}

// OnAccountStatus registers a handler for "account_status" frames.
func (r *Router) OnAccountStatus(fn func(envelope.AccountStatus)) pubsub.Unsubscribe {
	return r.accountStatus.Subscribe(fn)
}

// OnServerError registers a handler for "error" frames sent by the server.
func (r *Router) OnServerError(fn func(envelope.ServerError)) pubsub.Unsubscribe {
	return r.serverError.Subscribe(fn)
}

// OnMessage registers a handler for frames of any unrecognized type.
func (r *Router) OnMessage(fn func(envelope.Envelope)) pubsub.Unsubscribe {
	return r.message.Subscribe(fn)
}

// OnRaw registers a handler that sees every parsed non-control envelope.
func (r *Router) OnRaw(fn func(envelope.Envelope)) pubsub.Unsubscribe {
	return r.raw.Subscribe(fn)
}
