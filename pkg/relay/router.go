package relay

import (
	"github.com/nsyszr/relay/pkg/relay/proto"
	log "github.com/sirupsen/logrus"
)

// messageHandler handles one decoded inbound message. Handlers run with the
// broker lock held and must not block.
type messageHandler interface {
	Handle(rec *connRecord, msg *proto.Message)
}

type messageHandlerFunc func(rec *connRecord, msg *proto.Message)

func (f messageHandlerFunc) Handle(rec *connRecord, msg *proto.Message) {
	f(rec, msg)
}

// routes is the dispatch table of the router.
func (b *Broker) routes() map[proto.MessageType]messageHandler {
	pair := requireUserID(requireDeviceID(b.pairDeviceHandler()))

	return map[proto.MessageType]messageHandler{
		proto.MessageTypeReconnect:      requireSSID(b.reconnectHandler()),
		proto.MessageTypeHeartbeat:      requireSSID(b.heartbeatHandler()),
		proto.MessageTypeAccStatus:      requireUserID(b.registerFrontendHandler()),
		proto.MessageTypeLogout:         requireUserID(b.logoutHandler()),
		proto.MessageTypeDeviceSelected: pair,
		proto.MessageTypePairDevice:     pair,
		proto.MessageTypeConnection:     requireUserID(b.queryConnectionHandler()),
		proto.MessageTypeNFC:            requireUserID(b.nfcHandler()),
	}
}

// HandleMessage parses data received on connID and dispatches it. Payloads
// that cannot be parsed, carry an unknown type or arrive on a connection that
// is no longer registered are dropped without reply.
func (b *Broker) HandleMessage(connID string, data []byte) {
	msg, err := proto.UnmarshalMessage(data)
	if err != nil {
		droppedCounter.WithLabelValues("malformed").Inc()
		log.WithField("conn", connID).Debugf("relay dropped message: %v", err)
		return
	}

	h, ok := b.handlers[msg.Type]
	if !ok {
		droppedCounter.WithLabelValues("unknown_type").Inc()
		log.WithField("conn", connID).Debugf("relay dropped message of unknown type '%s'", msg.Type)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.registry.lookup(connID)
	if !ok {
		droppedCounter.WithLabelValues("unregistered").Inc()
		log.WithField("conn", connID).Debugf("relay dropped '%s' from unregistered connection", msg.Type)
		return
	}

	messagesCounter.WithLabelValues(msg.Type.String()).Inc()
	h.Handle(rec, msg)
	b.updateGauges()
}

func requireSSID(next messageHandler) messageHandler {
	return requireField("ssid", func(msg *proto.Message) string { return msg.SSID }, next)
}

func requireUserID(next messageHandler) messageHandler {
	return requireField("userID", func(msg *proto.Message) string { return msg.UserID }, next)
}

func requireDeviceID(next messageHandler) messageHandler {
	return requireField("deviceName", func(msg *proto.Message) string { return msg.DeviceID() }, next)
}

// requireField turns a message without the given identifier into a no-op.
func requireField(name string, field func(*proto.Message) string, next messageHandler) messageHandler {
	return messageHandlerFunc(func(rec *connRecord, msg *proto.Message) {
		if field(msg) == "" {
			droppedCounter.WithLabelValues("missing_field").Inc()
			log.WithField("conn", rec.conn.ID()).Debugf("relay ignored '%s' without %s", msg.Type, name)
			return
		}
		next.Handle(rec, msg)
	})
}
