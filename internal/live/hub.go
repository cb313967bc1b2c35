// Package live fans the raw machine-readable stream out to watchers. It is a
// pass-through side effect of a run: subscribers see lines verbatim, and a
// slow subscriber is dropped behind rather than allowed to block the
// aggregation path.
package live

import (
	"log/slog"
	"strings"
	"sync"
)

// Client represents one subscriber to the live stream.
type Client struct {
	ID    string
	Lines chan string
	Done  chan struct{}
}

// Hub manages subscribers and broadcasts raw lines to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a new hub with no subscribers.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Register adds a subscriber.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	slog.Info("live client registered", "clientID", client.ID)
}

// Unregister removes a subscriber. The client's Done channel is closed by the
// handler that created the client, not by this method.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[clientID]; ok {
		delete(h.clients, clientID)
		slog.Info("live client unregistered", "clientID", clientID)
	}
}

// Broadcast sends one raw line to every subscriber. Sends never block:
// a subscriber whose channel is full misses the line.
func (h *Hub) Broadcast(line string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.Lines <- line:
		case <-client.Done:
			// Client disconnected
		default:
			// Channel full, skip
			slog.Warn("live client channel full, dropping line", "clientID", client.ID)
		}
	}
}

// Write makes the hub usable as a session's live sink. Each write is one raw
// line (with its trailing newline).
func (h *Hub) Write(p []byte) (int, error) {
	h.Broadcast(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
