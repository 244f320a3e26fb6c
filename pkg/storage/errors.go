package storage

import "github.com/nsyszr/relay/pkg/model"

type storageError string

const (
	ErrNotFound     = storageError("not found")
	ErrInvalidEvent = storageError("event requires a topic and a source id")
)

func (e storageError) Error() string {
	return string(e)
}

// ValidateEvent is called by every store before an event is written.
func ValidateEvent(m *model.Event) error {
	if m == nil || m.Topic == "" || m.SourceID == "" {
		return ErrInvalidEvent
	}
	return nil
}
