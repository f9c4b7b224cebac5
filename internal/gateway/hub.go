package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"toursync/internal/events"
	"toursync/internal/metrics"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

const (
	eventsPath      = "/api/v1/events"
	sendBuffer      = 32
	writeTimeout    = 5 * time.Second
	slowClientClose = "event stream client too slow"
)

// Hub fans bus events out to connected WebSocket clients.
type Hub struct {
	logger         zerolog.Logger
	originPatterns []string

	mu     sync.RWMutex
	conns  map[*conn]struct{}
	closed bool

	unsubscribe func()
}

type conn struct {
	send   chan []byte
	cancel context.CancelFunc
	slow   atomic.Bool
}

// NewHub subscribes to every event on bus. Close releases the subscription.
func NewHub(bus *events.EventBus, allowedOrigins []string, logger *zerolog.Logger) *Hub {
	h := &Hub{
		logger:         zerolog.Nop(),
		originPatterns: originPatterns(allowedOrigins),
		conns:          make(map[*conn]struct{}),
	}
	if logger != nil {
		h.logger = logger.With().Str("component", "event-hub").Logger()
	}
	if bus != nil {
		h.unsubscribe = bus.Subscribe(events.AllEvents, func(e *events.Event) error {
			h.Broadcast(e)
			return nil
		})
	}
	return h
}

// HandleWS upgrades the request and streams events until the client leaves.
// The client is registered before the handshake completes, so a caller
// whose dial returned sees every event published afterwards.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	c := &conn{send: make(chan []byte, sendBuffer), cancel: cancel}
	if !h.add(c) {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.remove(c)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket accept failed")
		return
	}

	h.logger.Debug().Str("remote", r.RemoteAddr).Str("client", clientName(r.Context())).Msg("event stream connected")

	// Clients never send data; CloseRead handles pings and close frames.
	ctx = ws.CloseRead(ctx)
	for {
		select {
		case <-ctx.Done():
			if c.slow.Load() {
				_ = ws.Close(websocket.StatusPolicyViolation, slowClientClose)
			} else {
				_ = ws.Close(websocket.StatusNormalClosure, "")
			}
			return
		case msg := <-c.send:
			writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
			err := ws.Write(writeCtx, websocket.MessageText, msg)
			cancelWrite()
			if err != nil {
				h.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

// Broadcast queues the event for every client. A client whose buffer is
// full is disconnected.
func (h *Hub) Broadcast(e *events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error().Err(err).Str("event", e.Type).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		select {
		case c.send <- data:
		default:
			c.slow.Store(true)
			c.cancel()
		}
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close unsubscribes from the bus and disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	for _, c := range conns {
		c.cancel()
	}
}

func (h *Hub) add(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	metrics.EventClientConnected()
	return true
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		metrics.EventClientDisconnected()
		h.logger.Debug().Msg("event stream disconnected")
	}
}

// originPatterns turns configured origins ("http://localhost:5173") into
// the host patterns websocket.Accept matches against.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
