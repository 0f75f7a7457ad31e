// Package wshub broadcasts position lifecycle events to websocket clients.
package wshub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"
)

// EventsPath is the websocket endpoint served by ListenAndServe.
const EventsPath = "/events"

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub implements ports.EventPublisher. Each published event is sent to every
// connected client as one JSON text message; clients that fail a write are dropped.
type Hub struct {
	clients map[*websocket.Conn]bool
	lock    sync.Mutex
	logger  ports.Logger
}

// NewHub creates an empty hub.
func NewHub(logger ports.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "Websocket upgrade failed", map[string]interface{}{"error": err.Error(), "remote": r.RemoteAddr})
		return
	}
	h.lock.Lock()
	h.clients[conn] = true
	h.lock.Unlock()
	h.logger.Debug(r.Context(), "Event client connected", map[string]interface{}{"remote": r.RemoteAddr})

	// Clients only listen; reading detects the close.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// Publish broadcasts the event to every connected client.
func (h *Hub) Publish(ctx context.Context, event domain.LifecycleEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Warn(ctx, "Dropping event client", map[string]interface{}{"error": err.Error()})
			client.Close()
			delete(h.clients, client)
		}
	}
	return nil
}

// ListenAndServe serves EventsPath on addr until ctx is cancelled.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(EventsPath, h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	h.logger.Info(ctx, "Event hub listening", map[string]interface{}{"addr": addr, "path": EventsPath})

	select {
	case err := <-errCh:
		return fmt.Errorf("event hub on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	h.lock.Lock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
	h.lock.Unlock()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
