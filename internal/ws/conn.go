package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hallwerk/groupchat-relay/internal/protocol"
)

var errConnClosed = errors.New("connection closed")

// conn is the outbound half of one WebSocket connection. gorilla permits a
// single concurrent writer, so all writes are serialized through writeMu;
// each write carries a deadline so a stalled peer cannot wedge a broadcast.
type conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
	closed  bool
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *conn {
	return &conn{ws: ws, writeTimeout: writeTimeout}
}

func (c *conn) Send(f protocol.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return errConnClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) close() {
	c.writeMu.Lock()
	c.closed = true
	c.writeMu.Unlock()
	_ = c.ws.Close()
}
