package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/uhyunpark/marketfeed/pkg/hub"
	"github.com/uhyunpark/marketfeed/pkg/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (CORS handled by the outer server)
		return true
	},
}

// Client is one WebSocket connection bridged into the hub. Outbound frames
// pass through a buffered channel; when it fills, frames are dropped rather
// than letting this connection stall the hub.
type Client struct {
	hub   *hub.Hub
	codec *protocol.Codec
	conn  *websocket.Conn
	log   *zap.SugaredLogger

	id   uuid.UUID
	send chan protocol.ServerMessage
	// done is closed by the read pump; the write pump exits on it. The
	// send channel itself is never closed, so Send stays race-free.
	done chan struct{}
}

func newClient(h *hub.Hub, codec *protocol.Codec, conn *websocket.Conn, log *zap.SugaredLogger) *Client {
	return &Client{
		hub:   h,
		codec: codec,
		conn:  conn,
		log:   log,
		id:    uuid.New(),
		send:  make(chan protocol.ServerMessage, sendBuffer),
		done:  make(chan struct{}),
	}
}

func (c *Client) ID() uuid.UUID { return c.id }

// Send queues a frame without blocking. Reports false when the buffer is
// full or the connection is closing.
func (c *Client) Send(msg protocol.ServerMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// readPump decodes inbound control frames and dispatches them to the hub.
// It owns connection teardown: on exit the hub drops every subscription this
// connection holds.
func (c *Client) readPump() {
	defer func() {
		close(c.done)
		c.hub.Disconnect(c.id)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debugw("ws_read_error", "client", c.id, "err", err)
			}
			return
		}

		req, wireErr := c.codec.Decode(data)
		if wireErr != nil {
			c.Send(*wireErr)
			continue
		}

		switch req.Kind {
		case protocol.RequestSubscribe:
			c.hub.Subscribe(c, req)
		case protocol.RequestUnsubscribe:
			c.hub.Unsubscribe(c, req.StreamID)
		case protocol.RequestPing:
			c.Send(protocol.NewHeartBeat(time.Now()))
		}
	}
}

// writePump serializes queued frames onto the socket and keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleWebSocket upgrades the request and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("ws_upgrade_failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	client := newClient(s.hub, s.codec, conn, s.log)
	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}
