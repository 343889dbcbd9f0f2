package fanout

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// client is one WebSocket subscriber.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	ticker string // empty means all tickers
	queue  *queue[[]byte]

	done      chan struct{}
	closeOnce sync.Once
}

func (h *Hub) newClient(conn *websocket.Conn, ticker string) *client {
	initial := initialBuffer
	if initial > h.cfg.ClientBuffer {
		initial = h.cfg.ClientBuffer
	}
	return &client{
		hub:    h,
		conn:   conn,
		ticker: ticker,
		queue:  newQueue[[]byte](initial, h.cfg.ClientBuffer),
		done:   make(chan struct{}),
	}
}

// writePump is the only goroutine that writes data frames.
func (c *client) writePump() {
	for {
		batch, ok := c.queue.PopBatch(maxWriteBatch)
		if !ok {
			return
		}
		for _, payload := range batch {
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.logger.Debug("write failed", "error", err)
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}

func (c *client) pingLoop() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.hub.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.hub.logger.Debug("ping failed", "error", err)
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}

// readPump discards client frames and detects disconnects. A client that
// stops answering pings is closed once the read deadline passes.
func (c *client) readPump() {
	defer c.close(websocket.CloseNormalClosure, "")

	pongWait := 2 * c.hub.cfg.PingInterval
	c.conn.SetReadLimit(maxReadSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		c.queue.Close()
		c.hub.unregister(c)

		if code != websocket.CloseAbnormalClosure {
			deadline := time.Now().Add(time.Second)
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(code, reason),
				deadline,
			)
		}
		c.conn.Close()
	})
}
