package outbox

import (
	"context"

	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
)

// Publisher delivers one event to an external destination.
// Publish must only return nil once the destination has confirmed the event;
// a nil return is what allows the pump to advance its cursor past the event.
type Publisher interface {
	Publish(ctx context.Context, destination string, event eventstore.SequencedEvent) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, destination string, event eventstore.SequencedEvent) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, destination string, event eventstore.SequencedEvent) error {
	return f(ctx, destination, event)
}

// CursorStore persists how far a consumer group has read the global event
// order. Load returns zero for an unknown group, meaning "start from the
// beginning". Implementations must never move a cursor backwards.
type CursorStore interface {
	Load(ctx context.Context, consumerGroup string) (eventstore.PositionUint, error)
	Save(ctx context.Context, consumerGroup string, position eventstore.PositionUint) error
}
