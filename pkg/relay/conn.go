package relay

// Conn is a duplex channel to a device or frontend. Implementations must
// never block and must fail silently once the underlying transport is gone.
type Conn interface {
	ID() string
	// Send queues data for delivery. It returns false if the connection is
	// closed or its outbox is full.
	Send(data []byte) bool
	// Ping queues a liveness ping frame. A Pong is reported back to the broker.
	Ping() bool
	// Close starts a graceful shutdown of the connection.
	Close()
}

// Role is the declared kind of peer on a connection.
type Role int

const (
	RoleUnknown Role = iota
	RoleDevice
	RoleFrontend
)

func (r Role) String() string {
	names := []string{
		"UNKNOWN",
		"DEVICE",
		"FRONTEND"}

	if r < RoleUnknown || r > RoleFrontend {
		return "UNKNOWN"
	}

	return names[r]
}

// Status of a device or frontend session.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

type relayError string

const (
	ErrConnNotFound = relayError("relay: connection not found")
	ErrSendFailed   = relayError("relay: connection did not accept message")
)

func (e relayError) Error() string {
	return string(e)
}
