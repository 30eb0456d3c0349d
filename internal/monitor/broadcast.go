package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/trust-delta/tmai/internal/tmailog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
)

// Hub fans out every published Snapshot to subscribed websocket
// clients, generalized from a per-task subscription hub (this stream
// has exactly one topic: the full agent snapshot) down to plain
// broadcast-to-all.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *tmailog.Logger

	mu      sync.RWMutex
	clients map[*hubClient]bool

	register   chan *hubClient
	unregister chan *hubClient
	broadcast  chan Snapshot
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub builds a Hub. Call Run in a goroutine, then Upgrade per HTTP
// request and Feed with the monitor's Subscribe channel.
func NewHub(logger *tmailog.Logger) *Hub {
	if logger == nil {
		logger = tmailog.New(nil, "monitor")
	}
	return &Hub{
		upgrader:   websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
		logger:     logger,
		clients:    make(map[*hubClient]bool),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		broadcast:  make(chan Snapshot, 16),
	}
}

// Run drives the hub's register/unregister/broadcast loop until
// stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*hubClient]bool)
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case snap := <-h.broadcast:
			data, err := json.Marshal(snap)
			if err != nil {
				h.logger.Errorf("marshal snapshot: %v", err)
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					h.logger.Errorf("client send buffer full, dropping")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Feed drains a monitor's Subscribe channel into the hub's broadcast
// channel until the source channel closes or stop fires.
func (h *Hub) Feed(snapshots <-chan Snapshot, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			h.broadcast <- snap
		}
	}
}

// Upgrade promotes an HTTP request to a websocket connection and
// spawns its read/write pumps.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &hubClient{conn: conn, send: make(chan []byte, 8)}
	h.register <- c
	go h.writePump(c)
	go h.readPump(c)
	return nil
}

// readPump only drains control frames (pong/close); the snapshot
// stream is one-directional, so any application data frame is ignored.
func (h *Hub) readPump(c *hubClient) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
