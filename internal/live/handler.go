package live

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler returns an HTTP handler that upgrades to a WebSocket and streams
// every broadcast line to the peer as one text message.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(h.handleWS)
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to WebSocket", "error", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Error("failed to close WebSocket connection", "error", err)
		}
	}()

	client := &Client{
		ID:    fmt.Sprintf("%s-%d", r.RemoteAddr, time.Now().UnixNano()),
		Lines: make(chan string, 100),
		Done:  make(chan struct{}),
	}

	h.Register(client)
	defer h.Unregister(client.ID)

	// Writer goroutine owns the connection's write side.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for {
			select {
			case line := <-client.Lines:
				if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
					slog.Error("failed to write WebSocket message", "error", err)
					return
				}
			case <-client.Done:
				return
			}
		}
	}()

	// Read loop only detects the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(client.Done)
	<-writeDone
}

// Serve starts an HTTP server streaming the hub on /stream. The listener is
// bound synchronously so a busy port fails the command up front; serving
// happens in the background.
func Serve(addr string, hub *Hub) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/stream", hub.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("live stream listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("live stream server failed", "error", err)
		}
	}()
	return srv, nil
}
