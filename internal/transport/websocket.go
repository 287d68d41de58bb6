// Package transport adapts a gorilla/websocket connection to the
// signaling.Transport interface, with a read pump and write pump goroutine
// pair per connection, grounded on the pack's signaling-hub examples
// (notably Dropicx-qopyapp's readPump/writePump and ping/pong deadline
// handling).
package transport

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/diltdicker/redot-signalling-server/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 32 * 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WS is the production Transport: one per accepted connection, backed by a
// *websocket.Conn and a buffered outbound queue drained by writePump.
type WS struct {
	conn   *websocket.Conn
	send   chan wsFrame
	closed chan struct{}
	log    *zap.SugaredLogger
}

type wsFrame struct {
	close  bool
	code   int
	reason string
	data   []byte
}

// Upgrade promotes an HTTP request to a WebSocket connection and returns a
// Transport wired to it. Callers still need to register it with a Hub via
// Hub.Connect and start the pumps with Serve.
func Upgrade(w http.ResponseWriter, r *http.Request, log *zap.SugaredLogger) (*WS, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &WS{
		conn:   conn,
		send:   make(chan wsFrame, sendBuffer),
		closed: make(chan struct{}),
		log:    log,
	}, nil
}

func (t *WS) Send(data []byte) error {
	select {
	case t.send <- wsFrame{data: data}:
		return nil
	case <-t.closed:
		return websocket.ErrCloseSent
	}
}

func (t *WS) Close(code int, reason string) error {
	select {
	case t.send <- wsFrame{close: true, code: code, reason: reason}:
	case <-t.closed:
	}
	return nil
}

func (t *WS) Ping() error {
	select {
	case t.send <- wsFrame{data: nil}:
		// writePump treats a nil data frame with no close flag as a plain
		// ping; see the switch in writePump.
		return nil
	case <-t.closed:
		return websocket.ErrCloseSent
	}
}

// Reject flushes whatever frames are already queued via Send/Close (an
// ERR envelope followed by a close, typically) and tears the raw connection
// down. It's for a connection Hub.Connect rejected before Serve ever ran:
// there is no read pump and no hub to notify, so the ordinary write pump
// would otherwise never be started to drain the queued frames.
func (t *WS) Reject() {
	done := make(chan struct{})
	t.writePump(done)
	close(t.closed)
}

// Serve runs the read and write pumps for this connection until it closes,
// delivering frames to hub and telling hub about the disconnect. It blocks
// until the connection is gone, so callers run it in its own goroutine.
func (t *WS) Serve(hub *signaling.Hub, peerID int) {
	done := make(chan struct{})
	go t.writePump(done)
	t.readPump(hub, peerID)
	close(done)
	close(t.closed)
	hub.Disconnect(peerID)
}

func (t *WS) readPump(hub *signaling.Hub, peerID int) {
	t.conn.SetReadLimit(maxMessageSize)
	t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				t.log.Debugw("websocket read error", "peerId", peerID, "err", err)
			}
			return
		}
		hub.HandleFrame(peerID, message)
	}
}

func (t *WS) writePump(done <-chan struct{}) {
	defer t.conn.Close()

	for {
		select {
		case <-done:
			return
		case frame := <-t.send:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if frame.close {
				closeMsg := websocket.FormatCloseMessage(frame.code, frame.reason)
				t.conn.WriteMessage(websocket.CloseMessage, closeMsg)
				return
			}
			if frame.data == nil {
				if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
				continue
			}
			if err := t.conn.WriteMessage(websocket.TextMessage, frame.data); err != nil {
				return
			}
		}
	}
}
