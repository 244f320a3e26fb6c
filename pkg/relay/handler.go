package relay

import (
	"github.com/gobwas/ws"
	"github.com/google/uuid"
	"github.com/labstack/echo"
	"github.com/nsyszr/relay/pkg/relay/websocket"
	log "github.com/sirupsen/logrus"
)

// Handler serves the relay websocket endpoint.
type Handler struct {
	broker         *Broker
	outboxSize     int
	maxMessageSize int64
}

// NewHandler creates a websocket handler for broker. outboxSize bounds the
// queue of every connection, maxMessageSize the size of an inbound message.
func NewHandler(broker *Broker, outboxSize int, maxMessageSize int64) *Handler {
	return &Handler{
		broker:         broker,
		outboxSize:     outboxSize,
		maxMessageSize: maxMessageSize,
	}
}

// RegisterRoutes attaches the handlers to the echo web server
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	log.Debug("Register relay routes")
	g := e.Group("/relay")
	g.GET("/v1", h.relayHandler())
}

func (h *Handler) relayHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, _, _, err := ws.UpgradeHTTP(c.Request(), c.Response())
		if err != nil {
			return err
		}

		id := uuid.NewString()
		terminateCh := make(chan struct{})
		driver := websocket.NewWebSocketDriver(id, conn, h.outboxSize, h.maxMessageSize, func() {
			h.broker.Pong(id)
		}, terminateCh)
		driver.Start()

		h.broker.Register(driver)
		log.WithFields(log.Fields{
			"conn":   id,
			"remote": c.RealIP(),
		}).Info("relay connection opened")

	loop:
		for {
			select {
			case msg := <-driver.Inbox:
				h.broker.HandleMessage(id, msg.Data)
			case <-terminateCh:
				break loop
			}
		}

		h.broker.Disconnect(id)
		driver.Close()
		driver.Wait()

		// We should not return an error here because echo doesn't expect one
		// on a hijacked connection.
		return nil
	}
}
