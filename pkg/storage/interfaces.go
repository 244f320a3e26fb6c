package storage

import "github.com/nsyszr/relay/pkg/model"

// Interface is implemented by the storage
type Interface interface {
	Events() EventStore
}

// EventStore is responsible for managing the Event model
type EventStore interface {
	FetchAll() (map[int32]model.Event, error)
	FindByID(id int32) (*model.Event, error)
	FindBySourceID(sourceID string) (map[int32]model.Event, error)
	Create(m *model.Event) error
}
