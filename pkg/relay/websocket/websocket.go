package websocket

import (
	"io"
	"io/ioutil"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	log "github.com/sirupsen/logrus"
)

const writeTimeout = 10 * time.Second

// DefaultOutboxSize is used when a driver is created with a size <= 0.
const DefaultOutboxSize = 100

// DefaultMaxMessageSize bounds an inbound message when a driver is created
// with a limit <= 0.
const DefaultMaxMessageSize = 64 * 1024

type OutboxMessage struct {
	OpCode ws.OpCode
	Data   []byte
}

type InboxMessage struct {
	Data []byte
}

type driverError string

const (
	errClosedByPeer    = driverError("websocket: connection closed by peer")
	ErrMessageTooLarge = driverError("websocket: message exceeds size limit")
)

func (e driverError) Error() string {
	return string(e)
}

// WebSocketDriver pumps frames between a server side websocket connection
// and its Inbox / outbox channels. All writes happen on the outbox worker,
// so frames are never interleaved.
type WebSocketDriver struct {
	id     string
	conn   net.Conn
	Inbox  chan *InboxMessage
	outbox chan *OutboxMessage
	onPong func()

	maxMessageSize int64

	terminateCh    chan<- struct{}
	terminatedOnce sync.Once

	stopCh   chan struct{}
	stopOnce sync.Once

	wg sync.WaitGroup
}

// NewWebSocketDriver creates a driver for conn. terminateCh is closed once
// either worker exits. onPong is called for every pong frame received. A
// peer sending a message larger than maxMessageSize bytes is disconnected.
func NewWebSocketDriver(id string, conn net.Conn, outboxSize int, maxMessageSize int64, onPong func(), terminateCh chan<- struct{}) *WebSocketDriver {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &WebSocketDriver{
		id:             id,
		conn:           conn,
		Inbox:          make(chan *InboxMessage, outboxSize),
		outbox:         make(chan *OutboxMessage, outboxSize),
		onPong:         onPong,
		maxMessageSize: maxMessageSize,
		terminateCh:    terminateCh,
		stopCh:         make(chan struct{}),
	}
}

func (driver *WebSocketDriver) Start() {
	driver.wg.Add(2)
	go driver.inboxHandler()
	go driver.outboxHandler()
}

// ID returns the connection ID of the driver.
func (driver *WebSocketDriver) ID() string {
	return driver.id
}

// Send queues a text frame. It never blocks and returns false once the
// driver is stopped or the outbox is full.
func (driver *WebSocketDriver) Send(data []byte) bool {
	return driver.push(NewOutboxMessage(ws.OpText, data))
}

// Ping queues a ping frame.
func (driver *WebSocketDriver) Ping() bool {
	return driver.push(NewOutboxMessage(ws.OpPing, nil))
}

// Close starts a graceful close. It does not wait for the workers, see Wait.
func (driver *WebSocketDriver) Close() {
	log.WithField("conn", driver.id).Debug("websocketdriver close called")
	driver.safeCloseStopChannel()
}

// Wait blocks until both workers exited.
func (driver *WebSocketDriver) Wait() {
	driver.wg.Wait()
	log.WithField("conn", driver.id).Debug("websocketdriver closed")
}

func (driver *WebSocketDriver) push(msg *OutboxMessage) bool {
	select {
	case <-driver.stopCh:
		return false
	default:
	}

	select {
	case driver.outbox <- msg:
		return true
	default:
		log.WithField("conn", driver.id).Warn("websocketdriver outbox is full")
		return false
	}
}

func (driver *WebSocketDriver) closeHandler() {
	defer driver.wg.Done()
	driver.safeCloseTerminateChannel()
	driver.safeCloseStopChannel()
}

func (driver *WebSocketDriver) safeCloseTerminateChannel() {
	driver.terminatedOnce.Do(func() {
		close(driver.terminateCh)
	})
}

func (driver *WebSocketDriver) safeCloseStopChannel() {
	driver.stopOnce.Do(func() {
		close(driver.stopCh)
	})
}

func (driver *WebSocketDriver) inboxHandler() {
	defer driver.closeHandler()

	r := &wsutil.Reader{
		Source:         driver.conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		MaxFrameSize:   driver.maxMessageSize,
		OnIntermediate: driver.handleControlFrame,
	}

	for {
		h, err := r.NextFrame()
		if err != nil {
			log.WithField("conn", driver.id).Debugf("websocket read frame error: %v", err)
			return
		}

		if h.OpCode.IsControl() {
			if err := driver.handleControlFrame(h, r); err != nil {
				log.WithField("conn", driver.id).Debugf("websocket control frame: %v", err)
				return
			}
			continue
		}

		// Fragmented messages can exceed the limit across several frames.
		data, err := ioutil.ReadAll(io.LimitReader(r, driver.maxMessageSize+1))
		if err != nil {
			log.WithField("conn", driver.id).Errorf("websocket read error: %v", err)
			return
		}
		if int64(len(data)) > driver.maxMessageSize {
			log.WithField("conn", driver.id).Warn(ErrMessageTooLarge.Error())
			return
		}

		select {
		case driver.Inbox <- NewInboxMessage(data):
		case <-driver.stopCh:
			return
		}
	}
}

// handleControlFrame answers pings, reports pongs and stops on close. Pong
// replies go through the outbox like every other write.
func (driver *WebSocketDriver) handleControlFrame(h ws.Header, r io.Reader) error {
	payload, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}

	switch h.OpCode {
	case ws.OpClose:
		return errClosedByPeer
	case ws.OpPing:
		driver.push(NewOutboxMessage(ws.OpPong, payload))
	case ws.OpPong:
		if driver.onPong != nil {
			driver.onPong()
		}
	}
	return nil
}

func (driver *WebSocketDriver) outboxHandler() {
	defer driver.closeHandler()
	defer driver.conn.Close()

	for {
		select {
		case msg := <-driver.outbox:
			if err := driver.write(msg.OpCode, msg.Data); err != nil {
				log.WithField("conn", driver.id).Errorf("websocket terminates because of write error: %v", err)
				return
			}
		case <-driver.stopCh:
			if err := driver.write(ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, "")); err != nil {
				log.WithField("conn", driver.id).Debugf("websocket close frame not sent: %v", err)
			}
			return
		}
	}
}

func (driver *WebSocketDriver) write(op ws.OpCode, data []byte) error {
	if err := driver.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return wsutil.WriteServerMessage(driver.conn, op, data)
}

func NewOutboxMessage(op ws.OpCode, data []byte) *OutboxMessage {
	m := &OutboxMessage{
		OpCode: op,
	}
	if data != nil {
		m.Data = make([]byte, len(data))
		copy(m.Data, data)
	}
	return m
}

func NewInboxMessage(data []byte) *InboxMessage {
	m := &InboxMessage{}
	if data != nil {
		m.Data = make([]byte, len(data))
		copy(m.Data, data)
	}
	return m
}
