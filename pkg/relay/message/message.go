package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

//
// SourceType definition
//

type SourceType int

const (
	SourceTypeSystem SourceType = iota
	SourceTypeDevice
	SourceTypeFrontend
)

func (t SourceType) String() string {
	return sourceTypeToString[t]
}

var sourceTypeToString = map[SourceType]string{
	SourceTypeSystem:   "SYSTEM",
	SourceTypeDevice:   "DEVICE",
	SourceTypeFrontend: "FRONTEND",
}

var stringToSourceType = map[string]SourceType{
	"SYSTEM":   SourceTypeSystem,
	"DEVICE":   SourceTypeDevice,
	"FRONTEND": SourceTypeFrontend,
}

func (t SourceType) MarshalJSON() ([]byte, error) {
	buffer := bytes.NewBufferString(`"`)
	buffer.WriteString(sourceTypeToString[t])
	buffer.WriteString(`"`)
	return buffer.Bytes(), nil
}

func (t *SourceType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	// Unknown names fall back to the zero value, SYSTEM.
	*t = stringToSourceType[s]
	return nil
}

func SourceTypeFromString(s string) (SourceType, error) {
	t, ok := stringToSourceType[s]
	if !ok {
		return 0, fmt.Errorf("invalid source type '%s'", s)
	}
	return t, nil
}

// Event topics emitted by the broker.
const (
	TopicDeviceStatus   = "devicestatus"
	TopicFrontendStatus = "frontendstatus"
	TopicPairing        = "pairing"
	TopicEviction       = "eviction"
)

// EventMessage is the envelope of an event published to subscribers.
type EventMessage struct {
	SourceType    SourceType  `json:"source_type"`
	SourceID      string      `json:"source_id,omitempty"`
	PublicationID int32       `json:"publication_id"`
	Topic         string      `json:"topic"`
	Timestamp     time.Time   `json:"timestamp"`
	Details       interface{} `json:"details"`
}

type DeviceStatusDetails struct {
	Status      string `json:"status"`
	OwnerUserID string `json:"owner_user_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type FrontendStatusDetails struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type PairingDetails struct {
	UserID        string `json:"user_id"`
	PreviousOwner string `json:"previous_owner,omitempty"`
	Accepted      bool   `json:"accepted"`
}

type EvictionDetails struct {
	ConnectionID string `json:"connection_id"`
}
