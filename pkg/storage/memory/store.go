package memory

import "github.com/nsyszr/relay/pkg/storage"

// DefaultMaxEvents bounds the memory event log.
const DefaultMaxEvents = 1000

// Store contains all memory-based sub-stores for managing the models
type store struct {
	events *eventStore
}

// NewStore creates a new memory-based Storage interface keeping at most
// maxEvents events. A value <= 0 uses DefaultMaxEvents.
func NewStore(maxEvents int) storage.Interface {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &store{
		events: newEventStore(maxEvents),
	}
}

// Events returns a sub-store for managing the event model
func (s *store) Events() storage.EventStore {
	return s.events
}
