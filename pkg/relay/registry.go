package relay

import "time"

// connRecord is the transient bookkeeping of one open connection.
type connRecord struct {
	conn         Conn
	alive        bool
	role         Role
	lastActivity time.Time
	deviceID     string
	userID       string
}

// registry owns every open connection, keyed by connection ID. Directories
// only hold IDs and resolve them here at send time.
type registry struct {
	conns map[string]*connRecord
}

func newRegistry() *registry {
	return &registry{
		conns: make(map[string]*connRecord),
	}
}

func (r *registry) register(conn Conn, now time.Time) *connRecord {
	rec := &connRecord{
		conn:         conn,
		alive:        true,
		role:         RoleUnknown,
		lastActivity: now,
	}
	r.conns[conn.ID()] = rec
	return rec
}

func (r *registry) lookup(connID string) (*connRecord, bool) {
	if connID == "" {
		return nil, false
	}
	rec, ok := r.conns[connID]
	return rec, ok
}

// touch records that connID proved to belong to deviceID.
func (r *registry) touch(connID, deviceID string, now time.Time) {
	if rec, ok := r.conns[connID]; ok {
		rec.lastActivity = now
		rec.deviceID = deviceID
	}
}

// remove drops connID and returns its last record so the caller can
// reconcile the directories.
func (r *registry) remove(connID string) (*connRecord, bool) {
	rec, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
	}
	return rec, ok
}

// boundTo returns the IDs of all connections bound to deviceID.
func (r *registry) boundTo(deviceID string) []string {
	var ids []string
	for id, rec := range r.conns {
		if rec.deviceID == deviceID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *registry) send(connID string, data []byte) error {
	rec, ok := r.lookup(connID)
	if !ok {
		return ErrConnNotFound
	}
	if !rec.conn.Send(data) {
		return ErrSendFailed
	}
	return nil
}

// broadcast sends data to every connection except the one with ID except
// and returns the number of connections that accepted it.
func (r *registry) broadcast(data []byte, except string) int {
	n := 0
	for id, rec := range r.conns {
		if id == except {
			continue
		}
		if rec.conn.Send(data) {
			n++
		}
	}
	return n
}

func (r *registry) len() int {
	return len(r.conns)
}
