package adminapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/taskmesh/coordinator/internal/events"
	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// subscriber is a connected dashboard client, reachable via a buffered
// send channel so a slow reader never blocks the hub's broadcast loop.
type subscriber struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// hub fans lifecycle events out to every connected dashboard client. It
// subscribes to the publisher once, not once per client.
type hub struct {
	mu      sync.RWMutex
	clients map[*subscriber]bool

	source   <-chan *events.Event
	stopCh   chan struct{}
	wg       sync.WaitGroup
	register chan *subscriber
}

func newHub(source <-chan *events.Event) *hub {
	return &hub{
		clients:  make(map[*subscriber]bool),
		source:   source,
		stopCh:   make(chan struct{}),
		register: make(chan *subscriber),
	}
}

func (h *hub) run(ctx context.Context) {
	log := logger.WithComponent("adminapi")
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				h.closeAll()
				return
			case <-h.stopCh:
				h.closeAll()
				return
			case s := <-h.register:
				h.mu.Lock()
				h.clients[s] = true
				h.mu.Unlock()
				metrics.SetWebSocketConnections(float64(h.count()))
			case event, ok := <-h.source:
				if !ok {
					return
				}
				h.broadcast(event)
			}
		}
	}()
	log.Info().Msg("dashboard hub started")
}

func (h *hub) stop() {
	close(h.stopCh)
	h.wg.Wait()
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) broadcast(event *events.Event) {
	data, err := event.ToJSON()
	if err != nil {
		logger.WithComponent("adminapi").Error().Err(err).Msg("failed to serialize event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
			metrics.RecordWebSocketMessage(string(event.Type))
		default:
			go h.drop(c)
		}
	}
}

func (h *hub) drop(c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.SetWebSocketConnections(float64(len(h.clients)))
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// serveWS upgrades the request and spawns the client's read/write pumps.
// Inbound client messages are drained and discarded; the feed is
// one-directional.
func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("adminapi").Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &subscriber{
		id:   uuid.New().String()[:8],
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	h.register <- c

	go h.writePump(c)
	go h.readPump(c)
}

func (h *hub) readPump(c *subscriber) {
	defer func() {
		h.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
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

func (h *hub) writePump(c *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
