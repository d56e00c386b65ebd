package history

import (
	"context"
	"time"
)

// EventType defines the kind of agent audit event.
type EventType string

const (
	EventChallenge EventType = "challenge"
	EventEarnings  EventType = "earnings"
	EventPin       EventType = "pin"
	EventUnpin     EventType = "unpin"
)

// Event is an audit record exported to external systems. Challenge events
// carry CID/proof/latency; earnings events carry the added amount; pin events
// carry the CID only.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	CID        string    `json:"cid,omitempty"`
	Blocks     int       `json:"blocks,omitempty"`
	Proof      string    `json:"proof,omitempty"`
	LatencyMS  int64     `json:"latency_ms,omitempty"`
	AmountHBD  float64   `json:"amount_hbd,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Sink is a destination for audit events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
