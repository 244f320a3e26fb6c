package api

import (
	"github.com/labstack/echo"
	"github.com/nats-io/nats.go"
	"github.com/nsyszr/relay/pkg/relay"
	"github.com/nsyszr/relay/pkg/storage"
	log "github.com/sirupsen/logrus"
)

// Broker is the part of the relay broker the API reads from.
type Broker interface {
	Devices() []relay.DeviceSession
	Device(deviceID string) (relay.DeviceSession, bool)
	Frontends() []relay.FrontendSession
	Frontend(userID string) (relay.FrontendSession, bool)
	BroadcastSignup(fullName, department string) int
}

// Handler contains all properties to serve the API
type Handler struct {
	broker  Broker
	store   storage.Interface
	nc      *nats.Conn
	subject string
}

// NewHandler create a new API handler. nc may be nil, the realtime event
// stream is unavailable then.
func NewHandler(broker Broker, store storage.Interface, nc *nats.Conn, subject string) *Handler {
	return &Handler{
		broker:  broker,
		store:   store,
		nc:      nc,
		subject: subject,
	}
}

// RegisterRoutes attaches the handlers to the echo web server
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	log.Debug("Register API routes")
	api := e.Group("/api/v1")
	api.GET("/devices", h.handleFetchDevices)
	api.GET("/devices/:id", h.handleGetDeviceByID)

	api.GET("/frontends", h.handleFetchFrontends)
	api.GET("/frontends/:id", h.handleGetFrontendByID)

	api.GET("/events", h.handleFetchEvents)
	api.GET("/events/:id", h.handleGetEventByID)

	api.POST("/signup", h.handleSignup)

	api.GET("/realtime-events", h.realtimeEventsHandler())
}
