package memory

import (
	"sync"
	"time"

	"github.com/nsyszr/relay/pkg/model"
	"github.com/nsyszr/relay/pkg/storage"
)

type eventStore struct {
	store     map[int32]model.Event
	nextID    int32
	maxEvents int
	sync.RWMutex
}

func newEventStore(maxEvents int) *eventStore {
	return &eventStore{
		store:     make(map[int32]model.Event),
		nextID:    1,
		maxEvents: maxEvents,
	}
}

func (s *eventStore) FetchAll() (models map[int32]model.Event, err error) {
	s.RLock()
	defer s.RUnlock()
	models = make(map[int32]model.Event, len(s.store))

	for id, m := range s.store {
		models[id] = m
	}

	return models, nil
}

func (s *eventStore) FindByID(id int32) (*model.Event, error) {
	s.RLock()
	defer s.RUnlock()
	if m, ok := s.store[id]; ok {
		return &m, nil
	}

	return nil, storage.ErrNotFound
}

func (s *eventStore) FindBySourceID(sourceID string) (map[int32]model.Event, error) {
	s.RLock()
	defer s.RUnlock()
	models := make(map[int32]model.Event)

	for id, m := range s.store {
		if m.SourceID == sourceID {
			models[id] = m
		}
	}

	return models, nil
}

func (s *eventStore) Create(m *model.Event) error {
	if err := storage.ValidateEvent(m); err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()

	m.ID = s.getNextID()
	m.CreatedAt = time.Now().Round(time.Second).UTC()
	m.UpdatedAt = m.CreatedAt
	if m.Timestamp.IsZero() {
		m.Timestamp = m.CreatedAt
	}

	s.store[m.ID] = *m

	// IDs are sequential, so the oldest event is always ID-maxEvents.
	delete(s.store, m.ID-int32(s.maxEvents))

	return nil
}

func (s *eventStore) getNextID() int32 {
	id := s.nextID
	s.nextID++
	return id
}
