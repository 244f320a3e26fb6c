package relay

import (
	"sort"
	"time"
)

// FrontendSession is the directory entry of one user identifier. Records
// are never removed.
type FrontendSession struct {
	UserID   string
	ConnID   string
	Status   Status
	LastSeen time.Time
}

type frontendDirectory struct {
	sessions map[string]*FrontendSession
}

func newFrontendDirectory() *frontendDirectory {
	return &frontendDirectory{
		sessions: make(map[string]*FrontendSession),
	}
}

func (d *frontendDirectory) get(userID string) (*FrontendSession, bool) {
	sess, ok := d.sessions[userID]
	return sess, ok
}

// register upserts the session of userID and binds it to connID.
func (d *frontendDirectory) register(userID, connID string, now time.Time) *FrontendSession {
	sess, ok := d.sessions[userID]
	if !ok {
		sess = &FrontendSession{UserID: userID}
		d.sessions[userID] = sess
	}
	sess.ConnID = connID
	sess.Status = StatusOnline
	sess.LastSeen = now
	return sess
}

// logout marks userID offline. It reports whether the session changed.
func (d *frontendDirectory) logout(userID string) bool {
	sess, ok := d.sessions[userID]
	if !ok || sess.Status == StatusOffline {
		return false
	}
	sess.ConnID = ""
	sess.Status = StatusOffline
	return true
}

// markOffline is logout for the close and ping-timeout paths. It only
// applies while the session is still bound to connID, so a stale connection
// cannot take down a newer one.
func (d *frontendDirectory) markOffline(userID, connID string, now time.Time) bool {
	sess, ok := d.sessions[userID]
	if !ok || sess.ConnID != connID {
		return false
	}
	sess.ConnID = ""
	sess.Status = StatusOffline
	sess.LastSeen = now
	return true
}

// isOnline reports whether userID has an online session.
func (d *frontendDirectory) isOnline(userID string) bool {
	sess, ok := d.sessions[userID]
	return ok && sess.Status == StatusOnline
}

func (d *frontendDirectory) online() int {
	n := 0
	for _, sess := range d.sessions {
		if sess.Status == StatusOnline {
			n++
		}
	}
	return n
}

func (d *frontendDirectory) snapshot() []FrontendSession {
	out := make([]FrontendSession, 0, len(d.sessions))
	for _, sess := range d.sessions {
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UserID < out[j].UserID
	})
	return out
}
