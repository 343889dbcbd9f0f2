package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/trade-events/internal/consumer"
)

const (
	maxReadSize   = 512
	maxWriteBatch = 32
	initialBuffer = 16
)

// Config holds hub settings.
type Config struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	ClientBuffer int // max queued messages per client
}

// DefaultConfig returns the default hub configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		ClientBuffer: 256,
	}
}

// Message is the JSON frame sent to clients for each trade.
type Message struct {
	EventID       string    `json:"event_id"`
	TradeID       string    `json:"trade_id"`
	Ticker        string    `json:"ticker"`
	Price         string    `json:"price"`
	Shares        string    `json:"shares"`
	TradeTime     time.Time `json:"trade_time"`
	BrokerID      string    `json:"broker_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Partition     int       `json:"partition"`
	Offset        int64     `json:"offset"`
}

// NewMessage converts a delivery into its wire form.
func NewMessage(d consumer.Delivery) Message {
	det := d.Event.Details
	return Message{
		EventID:       d.Event.EventID.String(),
		TradeID:       det.TradeID.String(),
		Ticker:        det.Ticker,
		Price:         det.Price.String(),
		Shares:        det.Shares.String(),
		TradeTime:     det.TradeTime,
		BrokerID:      det.BrokerID,
		CorrelationID: d.Event.Metadata.CorrelationID,
		Partition:     d.Partition,
		Offset:        d.Offset,
	}
}

// Stats contains hub statistics.
type Stats struct {
	Clients      int
	Connected    int64
	Disconnected int64
	Dropped      int64 // disconnected for falling behind
	Broadcasts   int64
	Queued       int64
}

// Hub fans trade events out to connected WebSocket clients.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	connected    atomic.Int64
	disconnected atomic.Int64
	dropped      atomic.Int64
	broadcasts   atomic.Int64
	queued       atomic.Int64
}

var _ consumer.Handler = (*Hub)(nil)

// NewHub creates a hub with no clients.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = def.ClientBuffer
	}
	return &Hub{
		cfg:    cfg,
		logger: logger.With("component", "fanout"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "fanout closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug("upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	c := h.newClient(conn, r.URL.Query().Get("ticker"))
	if !h.register(c) {
		c.close(websocket.CloseGoingAway, "shutting down")
		return
	}

	go c.writePump()
	go c.pingLoop()
	c.readPump()
}

// OnEvent queues the trade for every matching client. It always returns nil.
func (h *Hub) OnEvent(_ context.Context, d consumer.Delivery) error {
	payload, err := json.Marshal(NewMessage(d))
	if err != nil {
		h.logger.Error("failed to encode trade message",
			"event_id", d.Event.EventID,
			"error", err,
		)
		return nil
	}
	h.broadcasts.Add(1)

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if c.ticker != "" && c.ticker != d.Event.Details.Ticker {
			continue
		}
		if err := c.queue.Push(payload); err != nil {
			if errors.Is(err, ErrQueueFull) {
				slow = append(slow, c)
			}
			continue
		}
		h.queued.Add(1)
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.dropped.Add(1)
		h.logger.Warn("dropping slow client",
			"remote_addr", c.conn.RemoteAddr().String(),
			"ticker", c.ticker,
		)
		c.close(websocket.ClosePolicyViolation, "client too slow")
	}
	return nil
}

// OnError logs consumer errors.
func (h *Hub) OnError(_ context.Context, err error) {
	h.logger.Debug("consumer error", "error", err)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close(websocket.CloseGoingAway, "shutting down")
	}
	h.logger.Info("fanout closed", "clients", len(clients))
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns a snapshot of hub statistics.
func (h *Hub) Stats() Stats {
	return Stats{
		Clients:      h.Clients(),
		Connected:    h.connected.Load(),
		Disconnected: h.disconnected.Load(),
		Dropped:      h.dropped.Load(),
		Broadcasts:   h.broadcasts.Load(),
		Queued:       h.queued.Load(),
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.connected.Add(1)
	h.logger.Info("client connected",
		"remote_addr", c.conn.RemoteAddr().String(),
		"ticker", c.ticker,
		"clients", len(h.clients),
	)
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.disconnected.Add(1)
	h.logger.Info("client disconnected",
		"remote_addr", c.conn.RemoteAddr().String(),
		"clients", len(h.clients),
	)
}
