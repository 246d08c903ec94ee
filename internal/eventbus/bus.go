// Package eventbus implements the Event Bus (spec §4.3, component C3): a
// channel-addressed publish/subscribe primitive every other component uses
// to announce state changes without taking a direct dependency on its
// listeners. The default broker is in-memory; internal/eventbus/kafkabus
// adapts the same Bus interface onto Kafka topics.
package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// Envelope is the payload every publisher sends and every handler receives.
type Envelope struct {
	EventType     string    `json:"event_type"`
	Data          any       `json:"data"`
	UserID        uuid.UUID `json:"user_id,omitempty"`
	TenantID      uuid.UUID `json:"tenant_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewEnvelope sets EventType and Data and stamps Timestamp for a publish
// call; CorrelationID is left for the caller to set from context.
func NewEnvelope(eventType string, data any) Envelope {
	return Envelope{
		EventType: eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Handler processes one delivered Envelope. A returned error is logged by
// the broker but never stops delivery to other subscribers.
type Handler func(Envelope) error

// Bus is the channel-addressed pub/sub contract every component depends on.
type Bus interface {
	Publish(channel string, env Envelope) error
	// Subscribe registers handler on channel and returns a function that
	// removes it. Multiple subscribers on one channel all receive every
	// published envelope.
	Subscribe(channel string, handler Handler) (unsubscribe func())
}

// Well-known channel names from spec §6.
const (
	ChannelAuth    = "integration:auth"
	ChannelPayment = "integration:payment"
	ChannelBonus   = "integration:bonus"
)
