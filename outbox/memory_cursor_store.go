package outbox

import (
	"context"
	"sync"

	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
)

// MemoryCursorStore keeps consumer group cursors in process memory.
// Suitable for tests and single-process demos; cursors are lost on restart,
// which means a restarted pump republishes from the beginning.
type MemoryCursorStore struct {
	mu      sync.RWMutex
	cursors map[string]eventstore.PositionUint
}

var _ CursorStore = (*MemoryCursorStore)(nil)

// NewMemoryCursorStore creates an empty in-memory cursor store.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{
		cursors: make(map[string]eventstore.PositionUint),
	}
}

// Load returns the stored position for the consumer group, or zero when the
// group has no cursor yet.
func (s *MemoryCursorStore) Load(_ context.Context, consumerGroup string) (eventstore.PositionUint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cursors[consumerGroup], nil
}

// Save stores the position for the consumer group.
// A position behind the current cursor is ignored so the cursor only advances.
func (s *MemoryCursorStore) Save(_ context.Context, consumerGroup string, position eventstore.PositionUint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if position > s.cursors[consumerGroup] {
		s.cursors[consumerGroup] = position
	}

	return nil
}
