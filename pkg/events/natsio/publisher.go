package natsio

import (
	"encoding/json"
	"fmt"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/relay/pkg/model"
	"github.com/nsyszr/relay/pkg/relay/message"
)

// Publisher forwards stored broker events to NATS subscribers.
type Publisher struct {
	nc          *nats.Conn
	baseSubject string
}

func NewPublisher(nc *nats.Conn, baseSubject string) *Publisher {
	return &Publisher{
		nc:          nc,
		baseSubject: baseSubject,
	}
}

// Subject returns the subject an event topic is published on.
func (p *Publisher) Subject(topic string) string {
	return fmt.Sprintf("%s.events.%s", p.baseSubject, topic)
}

func (p *Publisher) PublishEvent(m *model.Event) error {
	if p.nc == nil {
		return fmt.Errorf("publisher: connection to nats is missing")
	}

	data, err := MarshalEvent(m)
	if err != nil {
		return err
	}

	return p.nc.Publish(p.Subject(m.Topic), data)
}

// MarshalEvent converts a stored event into the wire envelope. Details are
// stored as a JSON string and unmarshalled again, otherwise subscribers would
// receive them as an escaped string.
func MarshalEvent(m *model.Event) ([]byte, error) {
	var details interface{}
	if m.Details != "" {
		if err := json.Unmarshal([]byte(m.Details), &details); err != nil {
			return nil, err
		}
	}

	srcType, err := message.SourceTypeFromString(m.SourceType)
	if err != nil {
		return nil, err
	}

	return json.Marshal(message.EventMessage{
		SourceType:    srcType,
		SourceID:      m.SourceID,
		PublicationID: m.ID,
		Topic:         m.Topic,
		Timestamp:     m.Timestamp,
		Details:       details,
	})
}
