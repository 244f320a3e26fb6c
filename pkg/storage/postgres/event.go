package postgres

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nsyszr/relay/pkg/model"
	"github.com/nsyszr/relay/pkg/storage"
	"github.com/pkg/errors"
)

// fetchLimit caps how many of the newest events a listing returns.
const fetchLimit = 1000

func newEventStore(db *sqlx.DB) *eventStore {
	return &eventStore{
		db: db,
	}
}

type eventStore struct {
	db *sqlx.DB
}

type sqlDataEvent struct {
	ID         int32     `db:"id"`
	SourceType string    `db:"source_type"`
	SourceID   string    `db:"source_id"`
	Topic      string    `db:"topic"`
	Timestamp  time.Time `db:"timestamp"`
	Details    string    `db:"details"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

var sqlParamsEvent = []string{
	"id",
	"source_type",
	"source_id",
	"topic",
	"timestamp",
	"details",
	"created_at",
	"updated_at",
}

func (d *sqlDataEvent) Scan(m *model.Event) {
	now := time.Now().Round(time.Second).UTC()

	d.ID = m.ID
	d.SourceType = m.SourceType
	d.SourceID = m.SourceID
	d.Topic = m.Topic
	d.Timestamp = m.Timestamp
	d.Details = m.Details
	d.CreatedAt = m.CreatedAt
	d.UpdatedAt = m.UpdatedAt

	if d.Timestamp.IsZero() {
		d.Timestamp = now
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}
}

func (d *sqlDataEvent) Model() *model.Event {
	return &model.Event{
		ID:         d.ID,
		SourceType: d.SourceType,
		SourceID:   d.SourceID,
		Topic:      d.Topic,
		Timestamp:  d.Timestamp,
		Details:    d.Details,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func (s *eventStore) FetchAll() (map[int32]model.Event, error) {
	query := fmt.Sprintf("SELECT * FROM relay_events ORDER BY id DESC LIMIT %d", fetchLimit)
	return selectEvents(s.db, query)
}

func (s *eventStore) FindByID(id int32) (*model.Event, error) {
	d := sqlDataEvent{}
	query := "SELECT * FROM relay_events WHERE id=$1"
	if err := s.db.Get(&d, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find event")
	}

	return d.Model(), nil
}

func (s *eventStore) FindBySourceID(sourceID string) (map[int32]model.Event, error) {
	query := fmt.Sprintf("SELECT * FROM relay_events WHERE source_id=$1 ORDER BY id DESC LIMIT %d", fetchLimit)
	return selectEvents(s.db, query, sourceID)
}

func (s *eventStore) Create(m *model.Event) error {
	if err := storage.ValidateEvent(m); err != nil {
		return err
	}

	d := sqlDataEvent{}
	d.Scan(m)

	// Remove the id column because it's of SQL type serial
	sqlParamsWithoutID := make([]string, 0, len(sqlParamsEvent)-1)
	for _, p := range sqlParamsEvent {
		if p != "id" {
			sqlParamsWithoutID = append(sqlParamsWithoutID, p)
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO relay_events (%s) VALUES (%s) RETURNING id",
		strings.Join(sqlParamsWithoutID, ", "),
		":"+strings.Join(sqlParamsWithoutID, ", :"),
	)
	rows, err := s.db.NamedQuery(query, d)
	if err != nil {
		return errors.Wrap(err, "failed to create event")
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&m.ID); err != nil {
			return errors.Wrap(err, "failed to read event id")
		}
	}
	m.Timestamp = d.Timestamp
	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt

	return rows.Err()
}

func selectEvents(db *sqlx.DB, query string, args ...interface{}) (map[int32]model.Event, error) {
	rows := make([]sqlDataEvent, 0)
	if err := db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to fetch events")
	}

	models := make(map[int32]model.Event, len(rows))
	for _, d := range rows {
		models[d.ID] = *d.Model()
	}

	return models, nil
}
