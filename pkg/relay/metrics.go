package relay

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "relay"

var (
	connectionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "registry",
		Name:      "connections",
		Help:      "Number of open connections",
	})
	devicesOnlineGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "directory",
		Name:      "devices_online",
		Help:      "Number of online device sessions",
	})
	frontendsOnlineGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "directory",
		Name:      "frontends_online",
		Help:      "Number of online frontend sessions",
	})
	messagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "router",
		Name:      "messages_total",
		Help:      "Number of routed inbound messages",
	}, []string{"type"})
	droppedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "router",
		Name:      "dropped_total",
		Help:      "Number of inbound messages dropped without reply",
	}, []string{"reason"})
	evictionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "registry",
		Name:      "evictions_total",
		Help:      "Number of connections closed because a newer one claimed the same device",
	})
	timeoutsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "supervisor",
		Name:      "timeouts_total",
		Help:      "Number of sessions reclaimed by a liveness sweep",
	}, []string{"role"})
)

func init() {
	prometheus.MustRegister(
		connectionsGauge,
		devicesOnlineGauge,
		frontendsOnlineGauge,
		messagesCounter,
		droppedCounter,
		evictionsCounter,
		timeoutsCounter,
	)
}

// updateGauges must be called with the broker lock held.
func (b *Broker) updateGauges() {
	connectionsGauge.Set(float64(b.registry.len()))
	devicesOnlineGauge.Set(float64(b.devices.online()))
	frontendsOnlineGauge.Set(float64(b.frontends.online()))
}
