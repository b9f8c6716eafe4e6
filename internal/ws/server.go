// Package ws binds the relay's event protocol to a WebSocket endpoint.
//
// One goroutine per connection reads frames serially and feeds the
// connection's dispatcher, preserving the per-connection event order.
package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hallwerk/groupchat-relay/internal/config"
	"github.com/hallwerk/groupchat-relay/internal/protocol"
	"github.com/hallwerk/groupchat-relay/internal/relay"
)

const wsCloseWait = 1 * time.Second

// Server accepts WebSocket connections and runs their lifecycle: mint a
// connection ID, bind a sender and dispatcher to the hub, pump inbound
// frames, and release all memberships when the transport closes.
type Server struct {
	log      *slog.Logger
	hub      *relay.Hub
	upgrader websocket.Upgrader

	maxEventBytes int64
	writeTimeout  time.Duration
}

func NewServer(cfg config.Config, log *slog.Logger, hub *relay.Hub) *Server {
	return &Server{
		log: log,
		hub: hub,
		upgrader: websocket.Upgrader{
			// The relay accepts connections from any origin; cross-origin policy
			// for the rest of the HTTP surface lives in the httpserver middleware.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		maxEventBytes: cfg.MaxEventBytes,
		writeTimeout:  cfg.WriteTimeout,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsc, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	connID := uuid.NewString()
	c := newConn(wsc, s.writeTimeout)

	if err := s.hub.Bind(connID, c); err != nil {
		// Duplicate transport-minted IDs should be impossible.
		s.log.Error("failed to bind connection", "conn_id", connID, "err", err)
		c.close()
		return
	}

	s.log.Debug("connection opened", "conn_id", connID, "remote_addr", r.RemoteAddr)
	s.run(connID, c)
}

func (s *Server) run(connID string, c *conn) {
	defer func() {
		s.hub.Release(connID)
		c.close()
		s.log.Debug("connection closed", "conn_id", connID)
	}()

	c.ws.SetReadLimit(s.maxEventBytes)
	dispatcher := relay.NewDispatcher(s.log, s.hub, connID)

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			writeClose(c.ws, websocket.CloseUnsupportedData, "expected text message")
			return
		}

		frame, err := protocol.ParseFrame(data)
		if err != nil {
			// A frame that isn't even an event envelope is dropped; the
			// connection stays open.
			s.log.Debug("dropping unparseable frame", "conn_id", connID, "err", err)
			continue
		}

		dispatcher.Dispatch(frame)
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsCloseWait))
}
