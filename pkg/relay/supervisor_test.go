package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepDevices(t *testing.T) {
	b, clock := newTestBroker(Options{DeviceTimeout: 15 * time.Second})
	f := connect(b, "f1")
	d := connect(b, "d1")
	deliver(b, d, `{"type":"reconnect","ssid":"D1","userID":"U1"}`)

	clock.Advance(10 * time.Second)
	assert.Equal(t, 0, b.SweepDevices())

	// A heartbeat refreshes the deadline.
	deliver(b, d, `{"type":"heartbeat","ssid":"D1"}`)
	clock.Advance(10 * time.Second)
	assert.Equal(t, 0, b.SweepDevices())
	assert.False(t, d.isClosed())
	f.messages(t)

	clock.Advance(6 * time.Second)
	assert.Equal(t, 1, b.SweepDevices())
	assert.True(t, d.isClosed())
	assert.Equal(t, 1, b.Connections())

	sess, ok := b.Device("D1")
	require.True(t, ok)
	assert.Equal(t, StatusOffline, sess.Status)
	assert.Equal(t, "U1", sess.OwnerUserID)

	msgs := f.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "D1", msgs[0]["ssid"])
	assert.Equal(t, "offline", msgs[0]["status"])

	// The late close of the reclaimed connection changes nothing.
	b.Disconnect("d1")
	assert.Empty(t, f.messages(t))
}

func TestSweepDevicesIgnoresUnboundConnections(t *testing.T) {
	b, clock := newTestBroker(Options{DeviceTimeout: time.Second})
	f := connect(b, "f1")
	deliver(b, f, `{"type":"accStatus","userID":"U1"}`)

	clock.Advance(time.Minute)
	assert.Equal(t, 0, b.SweepDevices())
	assert.False(t, f.isClosed())
}

func TestSweepFrontends(t *testing.T) {
	b, _ := newTestBroker(Options{})
	f := connect(b, "f1")
	d := connect(b, "d1")
	deliver(b, f, `{"type":"accStatus","userID":"U1"}`)
	deliver(b, d, `{"type":"heartbeat","ssid":"D1"}`)
	d.messages(t)

	assert.Equal(t, 0, b.SweepFrontends())
	assert.Equal(t, 1, f.pingCount())
	assert.Equal(t, 0, d.pingCount())

	b.Pong("f1")
	assert.Equal(t, 0, b.SweepFrontends())
	assert.Equal(t, 2, f.pingCount())

	// No pong for the second ping.
	assert.Equal(t, 1, b.SweepFrontends())
	assert.True(t, f.isClosed())

	sess, ok := b.Frontend("U1")
	require.True(t, ok)
	assert.Equal(t, StatusOffline, sess.Status)

	msgs := d.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "U1", msgs[0]["userID"])
	assert.Equal(t, "offline", msgs[0]["status"])
}

func TestSweepFrontendsReclaimsUnannouncedConnections(t *testing.T) {
	b, _ := newTestBroker(Options{})
	silent := connect(b, "u1")
	answering := connect(b, "u2")

	assert.Equal(t, 0, b.SweepFrontends())
	assert.Equal(t, 1, silent.pingCount())
	assert.Equal(t, 1, answering.pingCount())

	b.Pong("u2")
	assert.Equal(t, 1, b.SweepFrontends())
	assert.True(t, silent.isClosed())
	assert.False(t, answering.isClosed())
	assert.Equal(t, 1, b.Connections())

	// The evicted connection closing later is a no-op.
	b.Disconnect("u1")
	assert.Equal(t, 1, b.Connections())
}

func TestSweepFrontendsReleasesHeldDevice(t *testing.T) {
	b, _ := newTestBroker(Options{})
	c := connect(b, "c1")
	deliver(b, c, `{"type":"reconnect","ssid":"D1","userID":"U1"}`)
	deliver(b, c, `{"type":"accStatus","userID":"U1"}`)

	assert.Equal(t, 0, b.SweepFrontends())
	assert.Equal(t, 1, b.SweepFrontends())
	assert.True(t, c.isClosed())

	sess, ok := b.Device("D1")
	require.True(t, ok)
	assert.Equal(t, StatusOffline, sess.Status)
	assert.Empty(t, sess.ConnID)
	assert.Equal(t, "U1", sess.OwnerUserID)
}

func TestRunSupervisesDevicesInRealTime(t *testing.T) {
	b := NewBroker(Options{
		DeviceTimeout:        50 * time.Millisecond,
		DeviceSweepInterval:  10 * time.Millisecond,
		FrontendPingInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Run(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	silent := connect(b, "d1")
	deliver(b, silent, `{"type":"reconnect","ssid":"D1","userID":"U1"}`)
	beating := connect(b, "d2")
	deliver(b, beating, `{"type":"reconnect","ssid":"D2","userID":"U2"}`)

	done := make(chan struct{})
	var beats sync.WaitGroup
	beats.Add(1)
	go func() {
		defer beats.Done()
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deliver(b, beating, `{"type":"heartbeat","ssid":"D2"}`)
			case <-done:
				return
			}
		}
	}()

	assert.Eventually(t, func() bool {
		sess, ok := b.Device("D1")
		return ok && sess.Status == StatusOffline
	}, 500*time.Millisecond, 5*time.Millisecond)
	assert.True(t, silent.isClosed())

	sess, ok := b.Device("D2")
	require.True(t, ok)
	assert.Equal(t, StatusOnline, sess.Status)
	assert.False(t, beating.isClosed())

	close(done)
	beats.Wait()
}
