package relay

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeConn records everything the broker sends to it.
type fakeConn struct {
	mu     sync.Mutex
	id     string
	sent   [][]byte
	pings  int
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string {
	return c.id
}

func (c *fakeConn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return true
}

func (c *fakeConn) Ping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.pings++
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pings
}

// messages decodes everything sent so far and forgets it.
func (c *fakeConn) messages(t *testing.T) []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[string]interface{}, 0, len(c.sent))
	for _, data := range c.sent {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &m))
		out = append(out, m)
	}
	c.sent = nil
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newTestBroker(opts Options) (*Broker, *testClock) {
	clock := newTestClock()
	opts.Now = clock.Now
	return NewBroker(opts), clock
}

func connect(b *Broker, id string) *fakeConn {
	c := newFakeConn(id)
	b.Register(c)
	return c
}

func deliver(b *Broker, c *fakeConn, payload string) {
	b.HandleMessage(c.ID(), []byte(payload))
}
