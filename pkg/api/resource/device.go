package resource

import (
	"time"

	"github.com/nsyszr/relay/pkg/relay"
)

type DeviceResource struct {
	DeviceID      string     `json:"deviceId"`
	Status        string     `json:"status"`
	OwnerUserID   string     `json:"ownerUserId,omitempty"`
	ConnectionID  string     `json:"connectionId,omitempty"`
	LastHeartbeat *time.Time `json:"lastHeartbeat,omitempty"`
}

type DeviceListResource struct {
	Members []*DeviceResource `json:"members"`
}

func NewDevice(m *relay.DeviceSession) (out *DeviceResource) {
	out = &DeviceResource{
		DeviceID:     m.DeviceID,
		Status:       string(m.Status),
		OwnerUserID:  m.OwnerUserID,
		ConnectionID: m.ConnID,
	}

	if !m.LastHeartbeat.IsZero() {
		out.LastHeartbeat = &time.Time{}
		*out.LastHeartbeat = m.LastHeartbeat.Round(time.Second)
	}

	return // out
}

// NewDeviceList keeps the order of m, the broker snapshot is sorted by
// device ID.
func NewDeviceList(m []relay.DeviceSession) (out *DeviceListResource) {
	out = &DeviceListResource{
		Members: make([]*DeviceResource, 0, len(m)),
	}

	for i := range m {
		out.Members = append(out.Members, NewDevice(&m[i]))
	}

	return // out
}
