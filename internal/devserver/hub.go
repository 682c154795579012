package devserver

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// client is one websocket connection. Writes are serialized by mu.
type client struct {
	conn    *websocket.Conn
	session string

	mu   sync.Mutex
	subs map[string]struct{}
}

func (c *client) send(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (c *client) subscribe(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[path] = struct{}{}
}

func (c *client) unsubscribe(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, path)
}

func (c *client) subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for p := range c.subs {
		out = append(out, p)
	}
	return out
}

// hub tracks the connected clients.
type hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *Metrics
}

func newHub(logger *zap.Logger, metrics *Metrics) *hub {
	return &hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				// Localhost only.
				return strings.HasPrefix(origin, "http://localhost") ||
					strings.HasPrefix(origin, "https://localhost") ||
					strings.HasPrefix(origin, "http://127.0.0.1") ||
					strings.HasPrefix(origin, "https://127.0.0.1")
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.Connections.Inc()
	h.logger.Info("client connected", zap.String("session", c.session), zap.Int("total", n))
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		_ = c.conn.Close()
		h.metrics.Connections.Dec()
		h.logger.Info("client disconnected", zap.String("session", c.session), zap.Int("total", n))
	}
}

func (h *hub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// count returns the number of active connections.
func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) close() {
	for _, c := range h.snapshot() {
		h.unregister(c)
	}
}
