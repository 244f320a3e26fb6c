package proto

// MessageType is the value of the "type" field of every envelope.
type MessageType string

// Inbound message types.
const (
	MessageTypeReconnect      MessageType = "reconnect"
	MessageTypeHeartbeat      MessageType = "heartbeat"
	MessageTypeAccStatus      MessageType = "accStatus"
	MessageTypeLogout         MessageType = "logout"
	MessageTypeDeviceSelected MessageType = "deviceSelected"
	MessageTypePairDevice     MessageType = "pairDevice"
	MessageTypeConnection     MessageType = "connection"
	MessageTypeNFC            MessageType = "nfc"
)

// Outbound message types. MessageTypeConnection doubles as the handshake
// acknowledgement sent to devices.
const (
	MessageTypeStatus            MessageType = "status"
	MessageTypeDeviceLinked      MessageType = "deviceLinked"
	MessageTypeDeviceUnavailable MessageType = "deviceUnavailable"
	MessageTypeDeviceConnection  MessageType = "deviceConnection"
	MessageTypeNFCEvent          MessageType = "nfcEvent"
	MessageTypeSignup            MessageType = "signup"
)

func (t MessageType) String() string {
	return string(t)
}

// Message is a decoded inbound envelope. Absent fields are empty strings.
type Message struct {
	Type       MessageType
	SSID       string
	UserID     string
	DeviceName string
	UID        string
}

// DeviceID returns the device identifier a message refers to. Pairing
// requests name the device in deviceName, everything else uses ssid.
func (m *Message) DeviceID() string {
	if m.DeviceName != "" {
		return m.DeviceName
	}
	return m.SSID
}

// Status values carried by status notices.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Replies to a connection query.
const (
	ConnectionConnected    = "Connected"
	ConnectionNotConnected = "Not connected"
)

const actionSayHello = "sayHello"

type HelloAckMessage struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"`
	UserID string      `json:"userID"`
}

type StatusMessage struct {
	Type   MessageType `json:"type"`
	SSID   string      `json:"ssid,omitempty"`
	UserID string      `json:"userID,omitempty"`
	Status string      `json:"status"`
}

type DeviceLinkedMessage struct {
	Type       MessageType `json:"type"`
	DeviceName string      `json:"deviceName"`
	UserID     string      `json:"userID"`
}

type DeviceUnavailableMessage struct {
	Type       MessageType `json:"type"`
	DeviceName string      `json:"deviceName"`
	Message    string      `json:"message"`
}

type DeviceConnectionMessage struct {
	Type       MessageType `json:"type"`
	DeviceName string      `json:"deviceName"`
	Message    string      `json:"message"`
}

type NFCEventMessage struct {
	Type       MessageType `json:"type"`
	UID        string      `json:"uid"`
	DeviceName string      `json:"deviceName,omitempty"`
}

type SignupMessage struct {
	Type       MessageType `json:"type"`
	FullName   string      `json:"fullName"`
	Department string      `json:"department"`
}
