package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gobwas/ws"
	"github.com/google/uuid"
	"github.com/labstack/echo"
	"github.com/nats-io/nats.go"
	"github.com/nsyszr/relay/pkg/api/resource"
	"github.com/nsyszr/relay/pkg/relay/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var errNoEventBus = errors.New("realtime events require a NATS connection")

// realtimeEventsHandler streams every broker event published on NATS to a
// websocket client.
func (h *Handler) realtimeEventsHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.nc == nil {
			return c.JSON(http.StatusServiceUnavailable, resource.NewError(errNoEventBus))
		}

		conn, _, _, err := ws.UpgradeHTTP(c.Request(), c.Response())
		if err != nil {
			log.Error("api: failed to upgrade to websocket: ", err)
			return nil
		}

		id := uuid.NewString()
		terminateCh := make(chan struct{})
		driver := websocket.NewWebSocketDriver(id, conn, 0, 0, nil, terminateCh)
		driver.Start()
		defer driver.Wait()
		defer driver.Close()

		prefix := h.subject + ".events."
		sub, err := h.nc.Subscribe(prefix+"*", func(msg *nats.Msg) {
			topic := strings.TrimPrefix(msg.Subject, prefix)

			var data interface{}
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				log.Warnf("api: skipping undecodable event on %s: %v", msg.Subject, err)
				return
			}

			out, err := json.Marshal(resource.NewRealtimeEvent(topic, data))
			if err != nil {
				return
			}
			if !driver.Send(out) {
				log.WithField("conn", id).Debug("api: realtime event not delivered")
			}
		})
		if err != nil {
			log.Errorf("api: failed to subscribe to %s: %v", prefix+"*", err)
			return nil
		}
		defer sub.Unsubscribe()

		// Frames from the client carry nothing, drain them until it leaves.
		for {
			select {
			case <-driver.Inbox:
			case <-terminateCh:
				return nil
			}
		}
	}
}
