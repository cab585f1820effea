package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/cloudcost-notify/internal/envelope"
)

// Event is one received notification as stored by a sink.
type Event struct {
	ID         uuid.UUID
	Type       envelope.Type
	Timestamp  string     // As sent by the server
	SentAt     *time.Time // Parsed Timestamp; nil when absent or unrecognized
	ReceivedAt time.Time
	Payload    json.RawMessage
}

// NewEvent stamps an envelope with a fresh id and the receive time.
func NewEvent(env envelope.Envelope, receivedAt time.Time) Event {
	e := Event{
		ID:         uuid.New(),
		Type:       env.Type,
		Timestamp:  env.Timestamp,
		ReceivedAt: receivedAt.UTC(),
		Payload:    env.Raw,
	}
	if sent, err := env.Time(); err == nil {
		e.SentAt = &sent
	}
	return e
}

// Writer persists a batch. It returns how many events were newly written;
// the rest were already present.
type Writer interface {
	Name() string
	Write(ctx context.Context, events []Event) (written int, err error)
}
