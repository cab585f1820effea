package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrInvalidJSON = errors.New("frame is not a JSON object")
	ErrMissingType = errors.New("frame has no type")
)

// Type is the envelope discriminator.
type Type string

// Inbound types.
const (
	TypePing                Type = "ping"
	TypePong                Type = "pong"
	TypeCostUpdate          Type = "cost_update"
	TypeWasteDetected       Type = "waste_detected"
	TypeRecommendationReady Type = "recommendation_ready"
	TypeJobStatus           Type = "job_status"
	TypeAccountStatus       Type = "account_status"
	TypeError               Type = "error"
)

// Outbound-only types.
const (
	TypeSubscribe Type = "subscribe"
	TypeGetStats  Type = "get_stats"
)

// IsControl reports whether t is heartbeat traffic that never reaches
// application subscribers.
func (t Type) IsControl() bool {
	return t == TypePing || t == TypePong
}

// Envelope is one parsed inbound frame.
type Envelope struct {
	Type      Type
	Timestamp string
	Raw       json.RawMessage // The complete frame as received
}

// header is the minimal shape needed to classify a frame.
type header struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// Parse classifies a raw text frame. Frames that are not JSON objects or that
// carry no type are rejected.
func Parse(data []byte) (Envelope, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if h.Type == "" {
		return Envelope{}, ErrMissingType
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)

	return Envelope{
		Type:      Type(h.Type),
		Timestamp: h.Timestamp,
		Raw:       raw,
	}, nil
}

// Decode unmarshals the full frame into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	return nil
}

// Time parses Timestamp. The server emits ISO 8601 without a zone, which is
// read as UTC.
func (e Envelope) Time() (time.Time, error) {
	return ParseTime(e.Timestamp)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTime parses a wire timestamp.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTime renders t the way outbound frames carry time.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
