package main

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one live websocket connection. Its id is connection-scoped;
// identity across connections lives in the session registry.
type client struct {
	id       string
	conn     *websocket.Conn
	send     chan outboundMessage
	closeSnd sync.Once
}

// enqueue hands a message to the write pump. Must be called with the
// server's mutex held and only while the client is still registered; a
// full buffer drops the connection rather than block a lobby handler.
func (c *client) enqueue(msg outboundMessage) {
	select {
	case c.send <- msg:
	default:
		_ = c.conn.Close()
	}
}

// close shuts the send channel exactly once, ending the write pump.
func (c *client) close() {
	c.closeSnd.Do(func() {
		close(c.send)
	})
}

func (c *client) readPump(cfg *Config, srv *GameServer) {
	defer func() {
		srv.disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(64 << 10)

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		srv.dispatch(c, msg)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func serveWebsocket(cfg *Config, srv *GameServer) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: websocket upgrade from %s: %v", realIP(r), err)
			return
		}

		c := &client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan outboundMessage, 32),
		}

		srv.register(c)
		logf(cfg, "SERVE: Websocket client %s connected from %s", c.id, realIP(r))

		go c.writePump()
		c.readPump(cfg, srv)
	}
}
