// Package events publishes domain events to the shared message bus. Delivery
// is at-least-once and fire-and-forget relative to request handling: a failed
// publish never rolls back committed state, it is retried in the background.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"building-access-service/internal/types"
)

// Message is the wire format for bus messages
type Message struct {
	ID        string          `json:"id"`
	Type      types.EventType `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Retries   int             `json:"retries"`
}

// Publisher dispatches domain events to the bus. A single generic entry
// point covers the closed set of event types; callers pass the matching
// payload struct from the types package.
type Publisher interface {
	Publish(ctx context.Context, eventType types.EventType, payload interface{}) error
	Close() error
}

// NewMessage builds a bus message for the given event
func NewMessage(eventType types.EventType, payload interface{}) (*Message, error) {
	if !types.IsValidEventType(eventType) {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return &Message{
		ID:        uuid.NewString(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Multi fans one publish out to several publishers. Errors from secondary
// publishers are ignored so the primary bus result drives retry behavior.
type Multi struct {
	Primary   Publisher
	Secondary []Publisher
}

// Publish dispatches to the primary publisher, then best-effort to the rest
func (m *Multi) Publish(ctx context.Context, eventType types.EventType, payload interface{}) error {
	err := m.Primary.Publish(ctx, eventType, payload)
	for _, p := range m.Secondary {
		p.Publish(ctx, eventType, payload)
	}
	return err
}

// Close closes all wrapped publishers
func (m *Multi) Close() error {
	err := m.Primary.Close()
	for _, p := range m.Secondary {
		p.Close()
	}
	return err
}
