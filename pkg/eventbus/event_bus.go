// Package eventbus provides the publish/subscribe infrastructure for costing events.
package eventbus

import (
	"context"

	"github.com/dukex/costura/pkg/events"
)

// Event is any costing event that can travel on the bus.
type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes costing events. Services depend on this side only.
type EventPublisher interface {
	// Publish sends event keyed by key, usually the variant or flow it concerns,
	// so changes to one flow stay ordered on a partitioned broker.
	Publish(ctx context.Context, key string, event Event) error
}

// EventHandler receives the decoded event, e.g. *events.FlowChanged.
type EventHandler func(ctx context.Context, event any) error

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventBus is the full bus owned by a binary.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
