package events

import (
	"context"
	"time"
)

// Type names a row-change notification.
type Type string

const (
	MessageCreated   Type = "message.created"
	MessageRead      Type = "message.read"
	LocationRecorded Type = "location.recorded"
	ContractUpdated  Type = "contract.updated"
)

// Event is a realtime notification. Topic scopes delivery, e.g. "conversation:<id>"
// or "contract:<id>".
type Event struct {
	Type       Type      `json:"type"`
	Topic      string    `json:"topic"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers events to subscribers. Implementations must not block on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

func ConversationTopic(id string) string { return "conversation:" + id }
func ContractTopic(id string) string     { return "contract:" + id }

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
