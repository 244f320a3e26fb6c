package relay

import (
	"sort"
	"time"
)

// DeviceSession is the directory entry of one device identifier. ConnID is
// empty while the device is offline; OwnerUserID survives reconnects.
type DeviceSession struct {
	DeviceID      string
	ConnID        string
	OwnerUserID   string
	Status        Status
	LastHeartbeat time.Time
}

type deviceDirectory struct {
	sessions map[string]*DeviceSession
}

func newDeviceDirectory() *deviceDirectory {
	return &deviceDirectory{
		sessions: make(map[string]*DeviceSession),
	}
}

func (d *deviceDirectory) get(deviceID string) (*DeviceSession, bool) {
	sess, ok := d.sessions[deviceID]
	return sess, ok
}

// getOrCreate returns the session for deviceID, creating an offline one if
// the identifier is unseen. created reports whether a record was added.
func (d *deviceDirectory) getOrCreate(deviceID string) (sess *DeviceSession, created bool) {
	if sess, ok := d.sessions[deviceID]; ok {
		return sess, false
	}
	sess = &DeviceSession{
		DeviceID: deviceID,
		Status:   StatusOffline,
	}
	d.sessions[deviceID] = sess
	return sess, true
}

// bind attaches connID to the session and marks it online.
func (d *deviceDirectory) bind(sess *DeviceSession, connID string, now time.Time) {
	sess.ConnID = connID
	sess.Status = StatusOnline
	sess.LastHeartbeat = now
}

// release clears the connection of deviceID if it is still connID. The
// record and its owner are kept. It returns the session if it went offline.
func (d *deviceDirectory) release(deviceID, connID string) (*DeviceSession, bool) {
	sess, ok := d.sessions[deviceID]
	if !ok || sess.ConnID != connID {
		return nil, false
	}
	sess.ConnID = ""
	sess.Status = StatusOffline
	return sess, true
}

// ownedBy returns the device owned by userID. With several owned devices an
// online one wins, then the most recent heartbeat, then the lowest ID.
func (d *deviceDirectory) ownedBy(userID string) (*DeviceSession, bool) {
	if userID == "" {
		return nil, false
	}
	var best *DeviceSession
	for _, sess := range d.sessions {
		if sess.OwnerUserID != userID {
			continue
		}
		if best == nil || betterOwned(sess, best) {
			best = sess
		}
	}
	return best, best != nil
}

func betterOwned(a, b *DeviceSession) bool {
	if (a.Status == StatusOnline) != (b.Status == StatusOnline) {
		return a.Status == StatusOnline
	}
	if !a.LastHeartbeat.Equal(b.LastHeartbeat) {
		return a.LastHeartbeat.After(b.LastHeartbeat)
	}
	return a.DeviceID < b.DeviceID
}

func (d *deviceDirectory) online() int {
	n := 0
	for _, sess := range d.sessions {
		if sess.Status == StatusOnline {
			n++
		}
	}
	return n
}

// snapshot returns copies of all sessions ordered by device ID.
func (d *deviceDirectory) snapshot() []DeviceSession {
	out := make([]DeviceSession, 0, len(d.sessions))
	for _, sess := range d.sessions {
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeviceID < out[j].DeviceID
	})
	return out
}
