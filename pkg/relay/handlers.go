package relay

import (
	"time"

	"github.com/nsyszr/relay/pkg/relay/message"
	"github.com/nsyszr/relay/pkg/relay/proto"
	log "github.com/sirupsen/logrus"
)

func (b *Broker) reconnectHandler() messageHandlerFunc {
	return messageHandlerFunc(func(rec *connRecord, msg *proto.Message) {
		now := b.opts.Now()

		sess, created := b.devices.getOrCreate(msg.SSID)
		if created || sess.OwnerUserID == "" {
			sess.OwnerUserID = msg.UserID
		}

		b.bindDevice(rec, sess, now)

		log.WithFields(log.Fields{
			"conn":   rec.conn.ID(),
			"device": sess.DeviceID,
			"owner":  sess.OwnerUserID,
		}).Info("relay device reconnected")

		b.sendTo(rec.conn.ID(), mustMarshal(proto.MarshalNewHelloAckMessage(sess.OwnerUserID)), "sayHello")
	})
}

func (b *Broker) heartbeatHandler() messageHandlerFunc {
	return messageHandlerFunc(func(rec *connRecord, msg *proto.Message) {
		sess, _ := b.devices.getOrCreate(msg.SSID)
		b.bindDevice(rec, sess, b.opts.Now())

		b.broadcastDeviceStatus(sess.DeviceID, StatusOnline, rec.conn.ID())
	})
}

// bindDevice makes rec the only connection of sess. Every other connection
// claiming the same device is closed and evicted, the newest always wins.
func (b *Broker) bindDevice(rec *connRecord, sess *DeviceSession, now time.Time) {
	connID := rec.conn.ID()

	for _, id := range b.registry.boundTo(sess.DeviceID) {
		if id != connID {
			b.evict(id, sess.DeviceID)
		}
	}

	// The connection switches identity, release the device it spoke for.
	if rec.deviceID != "" && rec.deviceID != sess.DeviceID {
		if b.releaseDevice(rec.deviceID, connID, "rebound") {
			b.broadcastDeviceStatus(rec.deviceID, StatusOffline, connID)
		}
	}

	wasOnline := sess.Status == StatusOnline
	b.registry.touch(connID, sess.DeviceID, now)
	rec.role = RoleDevice
	b.devices.bind(sess, connID, now)

	if !wasOnline {
		b.emit(message.TopicDeviceStatus, message.SourceTypeDevice, sess.DeviceID, &message.DeviceStatusDetails{
			Status:      string(StatusOnline),
			OwnerUserID: sess.OwnerUserID,
		})
	}
}

// evict closes a duplicate connection of deviceID and drops it from the
// registry. Its later Disconnect is a no-op.
func (b *Broker) evict(connID, deviceID string) {
	rec, ok := b.registry.remove(connID)
	if !ok {
		return
	}
	rec.conn.Close()
	evictionsCounter.Inc()

	log.WithFields(log.Fields{
		"conn":   connID,
		"device": deviceID,
	}).Warn("relay evicted duplicate device connection")

	b.emit(message.TopicEviction, message.SourceTypeDevice, deviceID, &message.EvictionDetails{
		ConnectionID: connID,
	})

	if rec.userID != "" {
		b.releaseFrontend(rec.userID, connID, "evicted")
	}
}

func (b *Broker) registerFrontendHandler() messageHandlerFunc {
	return messageHandlerFunc(func(rec *connRecord, msg *proto.Message) {
		connID := rec.conn.ID()

		if rec.userID != "" && rec.userID != msg.UserID {
			b.releaseFrontend(rec.userID, connID, "rebound")
		}

		wasOnline := b.frontends.isOnline(msg.UserID)
		b.frontends.register(msg.UserID, connID, b.opts.Now())
		rec.role = RoleFrontend
		rec.userID = msg.UserID
		rec.alive = true

		log.WithFields(log.Fields{
			"conn": connID,
			"user": msg.UserID,
		}).Info("relay frontend registered")

		if !wasOnline {
			b.emit(message.TopicFrontendStatus, message.SourceTypeFrontend, msg.UserID, &message.FrontendStatusDetails{
				Status: string(StatusOnline),
			})
		}
	})
}

func (b *Broker) logoutHandler() messageHandlerFunc {
	return messageHandlerFunc(func(rec *connRecord, msg *proto.Message) {
		if !b.frontends.logout(msg.UserID) {
			return
		}

		log.WithField("user", msg.UserID).Info("relay frontend logged out")
		b.emit(message.TopicFrontendStatus, message.SourceTypeFrontend, msg.UserID, &message.FrontendStatusDetails{
			Status: string(StatusOffline),
			Reason: "logout",
		})
	})
}

func (b *Broker) pairDeviceHandler() messageHandlerFunc {
	return messageHandlerFunc(func(rec *connRecord, msg *proto.Message) {
		deviceID, userID := msg.DeviceID(), msg.UserID

		sess, created := b.devices.getOrCreate(deviceID)
		previous := sess.OwnerUserID

		if previous != "" && previous != userID && b.frontends.isOnline(previous) {
			log.WithFields(log.Fields{
				"device": deviceID,
				"owner":  previous,
				"user":   userID,
			}).Warn("relay rejected pairing, device is in use")

			b.sendTo(rec.conn.ID(), mustMarshal(proto.MarshalNewDeviceUnavailableMessage(deviceID)), "deviceUnavailable")
			b.emit(message.TopicPairing, message.SourceTypeDevice, deviceID, &message.PairingDetails{
				UserID:        userID,
				PreviousOwner: previous,
				Accepted:      false,
			})
			return
		}

		sess.OwnerUserID = userID

		log.WithFields(log.Fields{
			"device":   deviceID,
			"user":     userID,
			"previous": previous,
			"created":  created,
		}).Info("relay paired device")

		b.emit(message.TopicPairing, message.SourceTypeDevice, deviceID, &message.PairingDetails{
			UserID:        userID,
			PreviousOwner: previous,
			Accepted:      true,
		})

		linked := mustMarshal(proto.MarshalNewDeviceLinkedMessage(deviceID, userID))

		if sess.ConnID != "" {
			b.sendTo(sess.ConnID, linked, "deviceLinked")
		} else {
			log.WithField("device", deviceID).Info("relay device is offline, link confirmation not delivered")
		}

		if fs, ok := b.frontends.get(userID); ok && fs.ConnID != "" {
			b.sendTo(fs.ConnID, linked, "deviceLinked")
		} else {
			log.WithField("user", userID).Info("relay frontend is offline, link confirmation not delivered")
		}
	})
}

func (b *Broker) queryConnectionHandler() messageHandlerFunc {
	return messageHandlerFunc(func(rec *connRecord, msg *proto.Message) {
		deviceID, connected := "", false
		if sess, ok := b.devices.ownedBy(msg.UserID); ok {
			deviceID = sess.DeviceID
			connected = sess.Status == StatusOnline
		}

		out := mustMarshal(proto.MarshalNewDeviceConnectionMessage(deviceID, connected))

		// Reply to the frontend of the user, or to the asking connection if
		// the user has not announced a frontend.
		target := rec.conn.ID()
		if fs, ok := b.frontends.get(msg.UserID); ok && fs.ConnID != "" {
			target = fs.ConnID
		}
		b.sendTo(target, out, "deviceConnection")
	})
}

func (b *Broker) nfcHandler() messageHandlerFunc {
	return messageHandlerFunc(func(rec *connRecord, msg *proto.Message) {
		fs, ok := b.frontends.get(msg.UserID)
		if !ok || fs.ConnID == "" {
			log.WithFields(log.Fields{
				"user": msg.UserID,
				"uid":  msg.UID,
			}).Info("relay has no frontend for nfc event")
			return
		}

		b.sendTo(fs.ConnID, mustMarshal(proto.MarshalNewNFCEventMessage(msg.UID, rec.deviceID)), "nfcEvent")
	})
}
