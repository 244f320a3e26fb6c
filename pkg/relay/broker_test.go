package relay

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nsyszr/relay/pkg/relay/message"
	"github.com/nsyszr/relay/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconnectSaysHello(t *testing.T) {
	b, _ := newTestBroker(Options{})
	d := connect(b, "c1")

	deliver(b, d, `{"type":"reconnect","ssid":"D1","userID":"U1"}`)

	msgs := d.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "connection", msgs[0]["type"])
	assert.Equal(t, "sayHello", msgs[0]["action"])
	assert.Equal(t, "U1", msgs[0]["userID"])

	sess, ok := b.Device("D1")
	require.True(t, ok)
	assert.Equal(t, StatusOnline, sess.Status)
	assert.Equal(t, "c1", sess.ConnID)
	assert.Equal(t, "U1", sess.OwnerUserID)
}

func TestOwnerSurvivesCloseAndReconnect(t *testing.T) {
	b, _ := newTestBroker(Options{})
	d := connect(b, "c1")
	deliver(b, d, `{"type":"reconnect","ssid":"D1","userID":"U1"}`)

	b.Disconnect("c1")

	sess, ok := b.Device("D1")
	require.True(t, ok)
	assert.Equal(t, StatusOffline, sess.Status)
	assert.Empty(t, sess.ConnID)
	assert.Equal(t, "U1", sess.OwnerUserID)

	d2 := connect(b, "c2")
	deliver(b, d2, `{"type":"reconnect","ssid":"D1"}`)

	msgs := d2.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "U1", msgs[0]["userID"])

	sess, _ = b.Device("D1")
	assert.Equal(t, StatusOnline, sess.Status)
	assert.Equal(t, "U1", sess.OwnerUserID)
}

func TestDuplicateReconnectEvictsOlderConnection(t *testing.T) {
	b, _ := newTestBroker(Options{})
	d1 := connect(b, "c1")
	d2 := connect(b, "c2")

	deliver(b, d1, `{"type":"reconnect","ssid":"D1","userID":"U1"}`)
	deliver(b, d2, `{"type":"reconnect","ssid":"D1"}`)

	assert.True(t, d1.isClosed())
	assert.False(t, d2.isClosed())
	assert.Equal(t, 1, b.Connections())

	sess, _ := b.Device("D1")
	assert.Equal(t, "c2", sess.ConnID)
	assert.Equal(t, StatusOnline, sess.Status)

	// The close of the evicted connection must not take the device down.
	b.Disconnect("c1")
	sess, _ = b.Device("D1")
	assert.Equal(t, "c2", sess.ConnID)
	assert.Equal(t, StatusOnline, sess.Status)
}

func TestReconnectUnderNewIdentityReleasesOldDevice(t *testing.T) {
	b, _ := newTestBroker(Options{})
	d := connect(b, "c1")

	deliver(b, d, `{"type":"reconnect","ssid":"D1","userID":"U1"}`)
	deliver(b, d, `{"type":"reconnect","ssid":"D2","userID":"U1"}`)

	d1, _ := b.Device("D1")
	assert.Equal(t, StatusOffline, d1.Status)
	d2, _ := b.Device("D2")
	assert.Equal(t, StatusOnline, d2.Status)
	assert.Equal(t, "c1", d2.ConnID)
}

func TestHeartbeatBroadcastsOnlineToOthers(t *testing.T) {
	b, _ := newTestBroker(Options{})
	f := connect(b, "f1")
	d := connect(b, "c1")

	deliver(b, d, `{"type":"heartbeat","ssid":"D1"}`)

	assert.Empty(t, d.messages(t))

	msgs := f.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "status", msgs[0]["type"])
	assert.Equal(t, "D1", msgs[0]["ssid"])
	assert.Equal(t, "online", msgs[0]["status"])

	sess, ok := b.Device("D1")
	require.True(t, ok)
	assert.Equal(t, StatusOnline, sess.Status)
	assert.Empty(t, sess.OwnerUserID)
}

func TestDisconnectBroadcastsDeviceOffline(t *testing.T) {
	b, _ := newTestBroker(Options{})
	f := connect(b, "f1")
	d := connect(b, "c1")
	deliver(b, d, `{"type":"reconnect","ssid":"D1","userID":"U1"}`)
	f.messages(t)

	b.Disconnect("c1")

	msgs := f.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "status", msgs[0]["type"])
	assert.Equal(t, "D1", msgs[0]["ssid"])
	assert.Equal(t, "offline", msgs[0]["status"])
	assert.Equal(t, 1, b.Connections())
}

func TestDisconnectBroadcastsFrontendOffline(t *testing.T) {
	b, _ := newTestBroker(Options{})
	f := connect(b, "f1")
	other := connect(b, "f2")
	deliver(b, f, `{"type":"accStatus","userID":"U1"}`)

	b.Disconnect("f1")

	sess, ok := b.Frontend("U1")
	require.True(t, ok)
	assert.Equal(t, StatusOffline, sess.Status)

	msgs := other.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "U1", msgs[0]["userID"])
	assert.Equal(t, "offline", msgs[0]["status"])
}

func TestStaleFrontendCloseKeepsNewerSession(t *testing.T) {
	b, _ := newTestBroker(Options{})
	f1 := connect(b, "f1")
	f2 := connect(b, "f2")
	deliver(b, f1, `{"type":"accStatus","userID":"U1"}`)
	deliver(b, f2, `{"type":"accStatus","userID":"U1"}`)

	b.Disconnect("f1")

	sess, _ := b.Frontend("U1")
	assert.Equal(t, StatusOnline, sess.Status)
	assert.Equal(t, "f2", sess.ConnID)
}

func TestLogoutIsIdempotent(t *testing.T) {
	b, _ := newTestBroker(Options{})
	f := connect(b, "f1")
	deliver(b, f, `{"type":"accStatus","userID":"U1"}`)

	deliver(b, f, `{"type":"logout","userID":"U1"}`)
	deliver(b, f, `{"type":"logout","userID":"U1"}`)
	deliver(b, f, `{"type":"logout","userID":"U9"}`)

	sess, ok := b.Frontend("U1")
	require.True(t, ok)
	assert.Equal(t, StatusOffline, sess.Status)
	assert.Empty(t, sess.ConnID)

	_, ok = b.Frontend("U9")
	assert.False(t, ok)
}

func TestPairingConflict(t *testing.T) {
	b, _ := newTestBroker(Options{})
	d := connect(b, "d1")
	fa := connect(b, "fa")
	fb := connect(b, "fb")

	deliver(b, d, `{"type":"reconnect","ssid":"D1"}`)
	deliver(b, fa, `{"type":"accStatus","userID":"A"}`)
	deliver(b, fb, `{"type":"accStatus","userID":"B"}`)
	d.messages(t)
	fa.messages(t)
	fb.messages(t)

	deliver(b, fa, `{"type":"pairDevice","userID":"A","deviceName":"D1"}`)

	for _, c := range []*fakeConn{d, fa} {
		msgs := c.messages(t)
		require.Len(t, msgs, 1, c.ID())
		assert.Equal(t, "deviceLinked", msgs[0]["type"])
		assert.Equal(t, "D1", msgs[0]["deviceName"])
		assert.Equal(t, "A", msgs[0]["userID"])
	}
	assert.Empty(t, fb.messages(t))

	deliver(b, fb, `{"type":"deviceSelected","userID":"B","deviceName":"D1"}`)

	msgs := fb.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "deviceUnavailable", msgs[0]["type"])
	assert.Equal(t, "D1", msgs[0]["deviceName"])
	assert.Empty(t, fa.messages(t))
	assert.Empty(t, d.messages(t))

	sess, _ := b.Device("D1")
	assert.Equal(t, "A", sess.OwnerUserID)

	// Once A is gone the device can be taken over.
	deliver(b, fa, `{"type":"logout","userID":"A"}`)
	deliver(b, fb, `{"type":"pairDevice","userID":"B","deviceName":"D1"}`)

	sess, _ = b.Device("D1")
	assert.Equal(t, "B", sess.OwnerUserID)
	msgs = fb.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "deviceLinked", msgs[0]["type"])
}

func TestPairingUnknownDeviceCreatesOfflineRecord(t *testing.T) {
	b, _ := newTestBroker(Options{})
	f := connect(b, "f1")
	deliver(b, f, `{"type":"accStatus","userID":"U1"}`)

	deliver(b, f, `{"type":"pairDevice","userID":"U1","ssid":"D7"}`)

	sess, ok := b.Device("D7")
	require.True(t, ok)
	assert.Equal(t, StatusOffline, sess.Status)
	assert.Equal(t, "U1", sess.OwnerUserID)

	msgs := f.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "deviceLinked", msgs[0]["type"])
}

func TestConnectionQuery(t *testing.T) {
	b, _ := newTestBroker(Options{})
	f := connect(b, "f1")
	deliver(b, f, `{"type":"accStatus","userID":"U1"}`)

	deliver(b, f, `{"type":"connection","userID":"U1"}`)

	msgs := f.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "deviceConnection", msgs[0]["type"])
	assert.Equal(t, "Not connected", msgs[0]["message"])

	d := connect(b, "d1")
	deliver(b, d, `{"type":"reconnect","ssid":"D1","userID":"U1"}`)
	f.messages(t)

	// The reply goes to the frontend of the user, not to the asking device.
	deliver(b, d, `{"type":"connection","userID":"U1"}`)

	msgs = f.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Connected", msgs[0]["message"])
	assert.Equal(t, "D1", msgs[0]["deviceName"])
}

func TestNFCIsForwardedToFrontend(t *testing.T) {
	b, _ := newTestBroker(Options{})
	f := connect(b, "f1")
	d := connect(b, "d1")
	deliver(b, f, `{"type":"accStatus","userID":"U1"}`)
	deliver(b, d, `{"type":"reconnect","ssid":"D1","userID":"U1"}`)
	f.messages(t)
	d.messages(t)

	deliver(b, d, `{"type":"nfc","userID":"U1","uid":"04A1B2"}`)
	deliver(b, d, `{"type":"nfc","userID":"U2","uid":"04A1B2"}`)

	msgs := f.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "nfcEvent", msgs[0]["type"])
	assert.Equal(t, "04A1B2", msgs[0]["uid"])
	assert.Equal(t, "D1", msgs[0]["deviceName"])
	assert.Empty(t, d.messages(t))
}

func TestMalformedMessagesAreDropped(t *testing.T) {
	b, _ := newTestBroker(Options{})
	f := connect(b, "f1")
	d := connect(b, "d1")

	for _, payload := range []string{
		``,
		`not json`,
		`[1,2,3]`,
		`{"ssid":"D1"}`,
		`{"type":"bogus","ssid":"D1"}`,
		`{"type":"reconnect"}`,
		`{"type":"heartbeat","ssid":""}`,
		`{"type":"pairDevice","userID":"U1"}`,
		`{"type":"accStatus"}`,
	} {
		deliver(b, d, payload)
	}
	b.HandleMessage("unknown", []byte(`{"type":"heartbeat","ssid":"D1"}`))

	assert.Empty(t, f.messages(t))
	assert.Empty(t, d.messages(t))
	assert.Empty(t, b.Devices())
	assert.Empty(t, b.Frontends())
	assert.Equal(t, 2, b.Connections())
}

func TestBroadcastSignup(t *testing.T) {
	b, _ := newTestBroker(Options{})
	conns := []*fakeConn{connect(b, "a"), connect(b, "b"), connect(b, "c")}

	n := b.BroadcastSignup("Ada Lovelace", "R&D")
	assert.Equal(t, 3, n)

	for _, c := range conns {
		msgs := c.messages(t)
		require.Len(t, msgs, 1)
		assert.Equal(t, "signup", msgs[0]["type"])
		assert.Equal(t, "Ada Lovelace", msgs[0]["fullName"])
		assert.Equal(t, "R&D", msgs[0]["department"])
	}
}

func TestEventsAreStored(t *testing.T) {
	store := memory.NewStore(0)
	b, _ := newTestBroker(Options{Store: store})

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

	d := connect(b, "d1")
	deliver(b, d, `{"type":"reconnect","ssid":"D1","userID":"U1"}`)

	assert.Eventually(t, func() bool {
		events, err := store.Events().FindBySourceID("D1")
		if err != nil || len(events) != 1 {
			return false
		}
		for _, ev := range events {
			return ev.Topic == message.TopicDeviceStatus && ev.SourceType == "DEVICE"
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestPairAndQueryAcrossDeviceClose(t *testing.T) {
	b, _ := newTestBroker(Options{})
	d := connect(b, "d1")
	f := connect(b, "f1")

	deliver(b, d, `{"type":"reconnect","ssid":"D1"}`)
	sess, ok := b.Device("D1")
	require.True(t, ok)
	assert.Equal(t, StatusOnline, sess.Status)
	assert.Empty(t, sess.OwnerUserID)

	deliver(b, f, `{"type":"accStatus","userID":"U1"}`)
	fs, ok := b.Frontend("U1")
	require.True(t, ok)
	assert.Equal(t, StatusOnline, fs.Status)
	d.messages(t)
	f.messages(t)

	deliver(b, f, `{"type":"deviceSelected","deviceName":"D1","userID":"U1"}`)
	sess, _ = b.Device("D1")
	assert.Equal(t, "U1", sess.OwnerUserID)
	for _, c := range []*fakeConn{d, f} {
		msgs := c.messages(t)
		require.Len(t, msgs, 1, c.ID())
		assert.Equal(t, "deviceLinked", msgs[0]["type"])
	}

	deliver(b, f, `{"type":"connection","userID":"U1"}`)
	msgs := f.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "deviceConnection", msgs[0]["type"])
	assert.Equal(t, "D1", msgs[0]["deviceName"])
	assert.Equal(t, "Connected", msgs[0]["message"])

	b.Disconnect("d1")
	f.messages(t)

	deliver(b, f, `{"type":"connection","userID":"U1"}`)
	msgs = f.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "D1", msgs[0]["deviceName"])
	assert.Equal(t, "Not connected", msgs[0]["message"])

	sess, _ = b.Device("D1")
	assert.Equal(t, "U1", sess.OwnerUserID)
}

func TestConcurrentReconnectsAndSweepsKeepOneBinding(t *testing.T) {
	b, clock := newTestBroker(Options{DeviceTimeout: time.Second})

	const workers = 8
	const rounds = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				c := connect(b, fmt.Sprintf("c-%d-%d", w, i))
				deliver(b, c, `{"type":"reconnect","ssid":"D1","userID":"U1"}`)
				deliver(b, c, `{"type":"accStatus","userID":"U1"}`)
				deliver(b, c, `{"type":"heartbeat","ssid":"D1"}`)
				b.Pong(c.ID())
				if i%3 == 0 {
					b.Disconnect(c.ID())
				}
			}
		}(w)
	}

	stop := make(chan struct{})
	var sweepers sync.WaitGroup
	sweepers.Add(1)
	go func() {
		defer sweepers.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			clock.Advance(300 * time.Millisecond)
			b.SweepDevices()
			b.SweepFrontends()
		}
	}()

	wg.Wait()
	close(stop)
	sweepers.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	bound := 0
	for connID, rec := range b.registry.conns {
		assert.False(t, rec.conn.(*fakeConn).isClosed(), "closed connection %s left in registry", connID)
		if rec.deviceID == "D1" {
			bound++
		}
	}
	assert.LessOrEqual(t, bound, 1)

	sess, ok := b.devices.get("D1")
	require.True(t, ok)
	assert.Equal(t, "U1", sess.OwnerUserID)
	if sess.Status == StatusOnline {
		rec, ok := b.registry.lookup(sess.ConnID)
		require.True(t, ok, "online device bound to unknown connection %s", sess.ConnID)
		assert.Equal(t, "D1", rec.deviceID)
	} else {
		assert.Empty(t, sess.ConnID)
	}

	if fs, ok := b.frontends.get("U1"); ok && fs.Status == StatusOnline {
		rec, ok := b.registry.lookup(fs.ConnID)
		require.True(t, ok, "online frontend bound to unknown connection %s", fs.ConnID)
		assert.Equal(t, "U1", rec.userID)
	}
}
