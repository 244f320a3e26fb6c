package model

import "time"

// Event records a broker state transition, e.g. a device going offline or a
// device being paired to a user.
type Event struct {
	ID         int32
	SourceType string
	SourceID   string
	Topic      string
	Timestamp  time.Time
	Details    string

	CreatedAt time.Time
	UpdatedAt time.Time
}
