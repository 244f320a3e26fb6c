package proto

import (
	"github.com/tidwall/gjson"
)

// UnmarshalMessage decodes an inbound envelope. It fails only if the payload
// is not a JSON object or carries no string "type". Unknown types are
// returned as-is and left to the router.
func UnmarshalMessage(data []byte) (*Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidPayload
	}

	envelope := gjson.ParseBytes(data)
	if !envelope.IsObject() {
		return nil, ErrInvalidPayload
	}

	msgType := envelope.Get("type")
	if msgType.Type != gjson.String || msgType.Str == "" {
		return nil, ErrMissingType
	}

	return &Message{
		Type:       MessageType(msgType.Str),
		SSID:       stringField(envelope, "ssid"),
		UserID:     stringField(envelope, "userID"),
		DeviceName: stringField(envelope, "deviceName"),
		UID:        stringField(envelope, "uid"),
	}, nil
}

// stringField reads a scalar field leniently: numbers are rendered as text,
// null, objects and arrays count as absent.
func stringField(envelope gjson.Result, key string) string {
	v := envelope.Get(key)
	switch v.Type {
	case gjson.String, gjson.Number, gjson.True, gjson.False:
		return v.String()
	}
	return ""
}
