// Package realtime pushes curriculum events to websocket subscribers.
package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
)

const (
	defaultBuffer = 16
	writeTimeout  = 5 * time.Second
)

// Hub fans curriculum events out to connected websocket clients. It implements
// curriculum.EventPublisher and http.Handler.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	buffer  int
	origins []string
}

type client struct {
	outbound chan curriculum.Event
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBuffer sets how many events may queue for one client before new events are
// dropped for it.
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithOriginPatterns allows cross-origin websocket connections from the given hosts.
func WithOriginPatterns(patterns ...string) HubOption {
	return func(h *Hub) { h.origins = patterns }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{clients: make(map[*client]struct{}), buffer: defaultBuffer}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues event for every client. A client whose queue is full misses the
// event; publishing never blocks on a slow reader.
func (h *Hub) Publish(_ context.Context, event curriculum.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.outbound <- event:
		default:
			slog.Warn("dropping event for slow subscriber", "type", event.Type)
		}
	}
	return nil
}

// ServeHTTP upgrades the request to a websocket and streams events until the client
// goes away or the hub is closed. Messages from the client are discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	c := h.subscribe()
	defer h.unsubscribe(c)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.outbound:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, event)
			cancel()
			if err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.outbound)
	}
}

func (h *Hub) subscribe() *client {
	c := &client{outbound: make(chan curriculum.Event, h.buffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.outbound)
	}
}
