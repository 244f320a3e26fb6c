package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nsyszr/relay/pkg/model"
	"github.com/nsyszr/relay/pkg/relay/message"
	"github.com/nsyszr/relay/pkg/relay/proto"
	"github.com/nsyszr/relay/pkg/storage"
	log "github.com/sirupsen/logrus"
)

// EventPublisher forwards stored broker events, e.g. to NATS.
type EventPublisher interface {
	PublishEvent(m *model.Event) error
}

// Options configures a Broker. Zero values fall back to the defaults below.
type Options struct {
	DeviceTimeout        time.Duration
	DeviceSweepInterval  time.Duration
	FrontendPingInterval time.Duration

	// Store and Publisher receive the audit events of the broker. Both are
	// optional.
	Store       storage.Interface
	Publisher   EventPublisher
	EventBuffer int

	// Now is the clock of the broker, time.Now by default.
	Now func() time.Time
}

const (
	DefaultDeviceTimeout        = 15 * time.Second
	DefaultDeviceSweepInterval  = 5 * time.Second
	DefaultFrontendPingInterval = 15 * time.Second
	DefaultEventBuffer          = 256
)

func (o *Options) setDefaults() {
	if o.DeviceTimeout <= 0 {
		o.DeviceTimeout = DefaultDeviceTimeout
	}
	if o.DeviceSweepInterval <= 0 {
		o.DeviceSweepInterval = DefaultDeviceSweepInterval
	}
	if o.FrontendPingInterval <= 0 {
		o.FrontendPingInterval = DefaultFrontendPingInterval
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = DefaultEventBuffer
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Broker is the single in-memory authority over the connection registry and
// the device and frontend directories. Every mutation runs under mu, so
// message handlers, sweeps and close reconciliation never interleave.
type Broker struct {
	mu        sync.Mutex
	registry  *registry
	devices   *deviceDirectory
	frontends *frontendDirectory
	handlers  map[proto.MessageType]messageHandler

	opts   Options
	events chan *model.Event
}

func NewBroker(opts Options) *Broker {
	opts.setDefaults()

	b := &Broker{
		registry:  newRegistry(),
		devices:   newDeviceDirectory(),
		frontends: newFrontendDirectory(),
		opts:      opts,
		events:    make(chan *model.Event, opts.EventBuffer),
	}
	b.handlers = b.routes()

	return b
}

// Register adds a freshly accepted connection to the registry.
func (b *Broker) Register(conn Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.registry.register(conn, b.opts.Now())
	b.updateGauges()
	log.WithField("conn", conn.ID()).Debug("relay registered connection")
}

// Pong records the answer of a connection to a liveness ping.
func (b *Broker) Pong(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if rec, ok := b.registry.lookup(connID); ok {
		rec.alive = true
	}
}

// Disconnect reconciles the registry and the directories after a connection
// closed. Sessions bound to it go offline; owners are kept. Connections that
// were already evicted are ignored.
func (b *Broker) Disconnect(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.registry.remove(connID)
	if !ok {
		return
	}

	log.WithFields(log.Fields{
		"conn":   connID,
		"role":   rec.role.String(),
		"device": rec.deviceID,
		"user":   rec.userID,
	}).Info("relay connection closed")

	if rec.deviceID != "" && b.releaseDevice(rec.deviceID, connID, "closed") {
		b.broadcastDeviceStatus(rec.deviceID, StatusOffline, "")
	}
	if rec.userID != "" {
		b.releaseFrontend(rec.userID, connID, "closed")
	}
	b.updateGauges()
}

// BroadcastSignup fans a signup notification out to every open connection
// and returns how many accepted it.
func (b *Broker) BroadcastSignup(fullName, department string) int {
	data := mustMarshal(proto.MarshalNewSignupMessage(fullName, department))
	if data == nil {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.registry.broadcast(data, "")
}

// Devices returns a snapshot of the device directory.
func (b *Broker) Devices() []DeviceSession {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.devices.snapshot()
}

// Device returns a copy of the session of deviceID.
func (b *Broker) Device(deviceID string) (DeviceSession, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sess, ok := b.devices.get(deviceID)
	if !ok {
		return DeviceSession{}, false
	}
	return *sess, true
}

// Frontends returns a snapshot of the frontend directory.
func (b *Broker) Frontends() []FrontendSession {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.frontends.snapshot()
}

// Frontend returns a copy of the session of userID.
func (b *Broker) Frontend(userID string) (FrontendSession, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sess, ok := b.frontends.get(userID)
	if !ok {
		return FrontendSession{}, false
	}
	return *sess, true
}

// Connections returns the number of open connections.
func (b *Broker) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.registry.len()
}

// Run starts the liveness sweeps and the event worker and blocks until ctx
// is done.
func (b *Broker) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		b.superviseDevices(ctx)
	}()
	go func() {
		defer wg.Done()
		b.superviseFrontends(ctx)
	}()
	go func() {
		defer wg.Done()
		b.eventWorker(ctx)
	}()

	log.WithFields(log.Fields{
		"device_timeout":         b.opts.DeviceTimeout.String(),
		"device_sweep_interval":  b.opts.DeviceSweepInterval.String(),
		"frontend_ping_interval": b.opts.FrontendPingInterval.String(),
	}).Info("relay broker started")

	wg.Wait()
	log.Info("relay broker stopped")
}

// releaseDevice clears the connection of deviceID if it is still connID and
// records the transition. The caller decides whether to broadcast it.
func (b *Broker) releaseDevice(deviceID, connID, reason string) bool {
	sess, ok := b.devices.release(deviceID, connID)
	if !ok {
		return false
	}

	log.WithFields(log.Fields{
		"device": deviceID,
		"owner":  sess.OwnerUserID,
		"reason": reason,
	}).Info("relay device went offline")

	b.emit(message.TopicDeviceStatus, message.SourceTypeDevice, deviceID, &message.DeviceStatusDetails{
		Status:      string(StatusOffline),
		OwnerUserID: sess.OwnerUserID,
		Reason:      reason,
	})
	return true
}

// releaseFrontend marks userID offline if its session is still bound to
// connID and tells every other connection about it.
func (b *Broker) releaseFrontend(userID, connID, reason string) bool {
	if !b.frontends.markOffline(userID, connID, b.opts.Now()) {
		return false
	}

	log.WithFields(log.Fields{
		"user":   userID,
		"reason": reason,
	}).Info("relay frontend went offline")

	b.broadcastFrontendStatus(userID, StatusOffline, connID)
	b.emit(message.TopicFrontendStatus, message.SourceTypeFrontend, userID, &message.FrontendStatusDetails{
		Status: string(StatusOffline),
		Reason: reason,
	})
	return true
}

func (b *Broker) broadcastDeviceStatus(deviceID string, status Status, except string) {
	data := mustMarshal(proto.MarshalNewDeviceStatusMessage(deviceID, string(status)))
	if data != nil {
		b.registry.broadcast(data, except)
	}
}

func (b *Broker) broadcastFrontendStatus(userID string, status Status, except string) {
	data := mustMarshal(proto.MarshalNewFrontendStatusMessage(userID, string(status)))
	if data != nil {
		b.registry.broadcast(data, except)
	}
}

// sendTo delivers data to a single connection. Failures are logged only.
func (b *Broker) sendTo(connID string, data []byte, what string) bool {
	if data == nil {
		return false
	}
	if err := b.registry.send(connID, data); err != nil {
		log.WithFields(log.Fields{
			"conn":    connID,
			"message": what,
		}).Warnf("relay could not deliver message: %v", err)
		return false
	}
	return true
}

// emit queues an audit event for the event worker. It never blocks.
func (b *Broker) emit(topic string, srcType message.SourceType, srcID string, details interface{}) {
	if b.opts.Store == nil && b.opts.Publisher == nil {
		return
	}

	data, err := json.Marshal(details)
	if err != nil {
		log.Errorf("relay could not marshal event details: %v", err)
		return
	}

	ev := &model.Event{
		SourceType: srcType.String(),
		SourceID:   srcID,
		Topic:      topic,
		Timestamp:  b.opts.Now().Round(time.Second).UTC(),
		Details:    string(data),
	}

	select {
	case b.events <- ev:
	default:
		log.WithField("topic", topic).Warn("relay event buffer is full, dropping event")
	}
}

func (b *Broker) eventWorker(ctx context.Context) {
	for {
		select {
		case ev := <-b.events:
			b.storeEvent(ev)
		case <-ctx.Done():
			b.drainEvents()
			return
		}
	}
}

// drainEvents flushes whatever was queued before shutdown.
func (b *Broker) drainEvents() {
	for {
		select {
		case ev := <-b.events:
			b.storeEvent(ev)
		default:
			return
		}
	}
}

func (b *Broker) storeEvent(ev *model.Event) {
	if b.opts.Store != nil {
		if err := b.opts.Store.Events().Create(ev); err != nil {
			log.Errorf("relay failed to store event: %v", err)
		}
	}
	if b.opts.Publisher != nil {
		if err := b.opts.Publisher.PublishEvent(ev); err != nil {
			log.Errorf("relay failed to publish event: %v", err)
		}
	}
}

// mustMarshal unwraps the result of a proto.MarshalNew* call. Outbound
// messages are flat structs of strings, so err is expected to be nil.
func mustMarshal(out []byte, err error) []byte {
	if err != nil {
		log.Errorf("relay could not marshal message: %v", err)
		return nil
	}
	return out
}
