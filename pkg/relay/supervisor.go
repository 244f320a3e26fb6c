package relay

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// SweepDevices reclaims every device connection whose last heartbeat or
// reconnect is older than the device timeout. It returns the number of
// reclaimed connections.
func (b *Broker) SweepDevices() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.opts.Now()
	reclaimed := 0

	for connID, rec := range b.registry.conns {
		if rec.deviceID == "" || now.Sub(rec.lastActivity) <= b.opts.DeviceTimeout {
			continue
		}

		log.WithFields(log.Fields{
			"conn":          connID,
			"device":        rec.deviceID,
			"last_activity": rec.lastActivity.Format(time.RFC3339),
		}).Warn("relay device timed out")

		b.registry.remove(connID)
		b.broadcastDeviceStatus(rec.deviceID, StatusOffline, "")
		rec.conn.Close()
		b.releaseDevice(rec.deviceID, connID, "timeout")
		if rec.userID != "" {
			b.releaseFrontend(rec.userID, connID, "timeout")
		}

		timeoutsCounter.WithLabelValues("device").Inc()
		reclaimed++
	}

	b.updateGauges()
	return reclaimed
}

// SweepFrontends closes every frontend or unannounced connection that did
// not answer the previous ping and pings all others. Device connections are
// left to SweepDevices. It returns the number of closed connections.
func (b *Broker) SweepFrontends() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	reclaimed := 0

	for connID, rec := range b.registry.conns {
		if rec.role == RoleDevice {
			continue
		}

		if !rec.alive {
			log.WithFields(log.Fields{
				"conn": connID,
				"role": rec.role,
				"user": rec.userID,
			}).Warn("relay connection did not answer ping")

			b.registry.remove(connID)
			// A connection that spoke for a device before announcing a
			// frontend still holds that device.
			if rec.deviceID != "" && b.releaseDevice(rec.deviceID, connID, "timeout") {
				b.broadcastDeviceStatus(rec.deviceID, StatusOffline, "")
			}
			if rec.userID != "" {
				b.releaseFrontend(rec.userID, connID, "timeout")
			}
			rec.conn.Close()

			label := "frontend"
			if rec.role == RoleUnknown {
				label = "unannounced"
			}
			timeoutsCounter.WithLabelValues(label).Inc()
			reclaimed++
			continue
		}

		rec.alive = false
		if !rec.conn.Ping() {
			log.WithField("conn", connID).Debug("relay could not queue ping")
		}
	}

	b.updateGauges()
	return reclaimed
}

func (b *Broker) superviseDevices(ctx context.Context) {
	ticker := time.NewTicker(b.opts.DeviceSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.SweepDevices()
		case <-ctx.Done():
			return
		}
	}
}

func (b *Broker) superviseFrontends(ctx context.Context) {
	ticker := time.NewTicker(b.opts.FrontendPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.SweepFrontends()
		case <-ctx.Done():
			return
		}
	}
}
