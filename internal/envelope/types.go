package envelope

import (
	"encoding/json"
	"time"
)

// Header is embedded in every typed inbound payload.
type Header struct {
	Type      Type   `json:"type"`
	Timestamp string `json:"timestamp"`
}

// Ping is a liveness probe. Server probes carry server_time, client probes
// carry client_time.
type Ping struct {
	Header
	ServerTime string `json:"server_time,omitempty"`
	ClientTime string `json:"client_time,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Pong answers a Ping.
type Pong struct {
	Header
	ServerTime string `json:"server_time,omitempty"`
}

// CostUpdate is the message content for a "cost_update" frame.
type CostUpdate struct {
	Header
	AccountID string          `json:"account_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// WasteDetected is the message content for a "waste_detected" frame.
type WasteDetected struct {
	Header
	AccountID  string            `json:"account_id"`
	ItemsCount int               `json:"items_count"`
	Data       []json.RawMessage `json:"data,omitempty"` // First few items only
	Message    string            `json:"message,omitempty"`
}

// RecommendationReady is the message content for a "recommendation_ready" frame.
type RecommendationReady struct {
	Header
	AccountID             string            `json:"account_id"`
	RecommendationsCount  int               `json:"recommendations_count"`
	TotalPotentialSavings float64           `json:"total_potential_savings"`
	Data                  []json.RawMessage `json:"data,omitempty"` // Top recommendations only
	Message               string            `json:"message,omitempty"`
}

// JobStatus is the message content for a "job_status" frame.
type JobStatus struct {
	Header
	JobID    string          `json:"job_id"`
	Status   string          `json:"status"`
	Progress json.RawMessage `json:"progress,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// AccountStatus is the message content for an "account_status" frame.
type AccountStatus struct {
	Header
	AccountID  string          `json:"account_id"`
	Status     string          `json:"status"`
	HealthData json.RawMessage `json:"health_data,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// ServerError is the message content for an "error" frame.
type ServerError struct {
	Header
	Message string `json:"message"`
}

// FilterSet is the caller's declared interest. Empty lists mean "everything".
type FilterSet struct {
	MessageTypes []Type   `json:"message_types,omitempty" yaml:"message_types"`
	AccountIDs   []string `json:"account_ids,omitempty" yaml:"account_ids"`
}

// Clone returns a deep copy so a stored FilterSet never aliases caller slices.
func (f FilterSet) Clone() FilterSet {
	out := FilterSet{}
	if f.MessageTypes != nil {
		out.MessageTypes = append([]Type(nil), f.MessageTypes...)
	}
	if f.AccountIDs != nil {
		out.AccountIDs = append([]string(nil), f.AccountIDs...)
	}
	return out
}

// IsEmpty reports whether no filter is declared.
func (f FilterSet) IsEmpty() bool {
	return len(f.MessageTypes) == 0 && len(f.AccountIDs) == 0
}

// OutboundPing is sent by the heartbeat.
type OutboundPing struct {
	Type       Type   `json:"type"`
	ClientTime string `json:"client_time"`
}

// OutboundPong echoes the peer's declared time.
type OutboundPong struct {
	Type       Type   `json:"type"`
	ServerTime string `json:"server_time"`
}

// Subscribe replaces the server-side filter set in full.
type Subscribe struct {
	Type    Type      `json:"type"`
	Filters FilterSet `json:"filters"`
}

// GetStats asks the server for connection statistics.
type GetStats struct {
	Type Type `json:"type"`
}

// NewPing builds a heartbeat probe stamped with now.
func NewPing(now time.Time) OutboundPing {
	return OutboundPing{Type: TypePing, ClientTime: FormatTime(now)}
}

// NewPong answers a peer probe.
func NewPong(serverTime string) OutboundPong {
	return OutboundPong{Type: TypePong, ServerTime: serverTime}
}

// NewSubscribe builds a filter announcement.
func NewSubscribe(f FilterSet) Subscribe {
	return Subscribe{Type: TypeSubscribe, Filters: f.Clone()}
}

// NewGetStats builds a stats request.
func NewGetStats() GetStats {
	return GetStats{Type: TypeGetStats}
}
