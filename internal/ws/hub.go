// Package ws pushes detection results to WebSocket subscribers.
package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hazlabel/internal/pipeline"
)

// Hub manages WebSocket connections for real-time detection streaming
type Hub struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewHub creates a new detection hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
	}
}

// Register adds a connection
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[conn] = true
	fmt.Printf("[WS] Client registered (total: %d)\n", len(h.clients))
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		fmt.Printf("[WS] Client unregistered (total: %d)\n", len(h.clients))
	}
}

// HasClients returns true if any clients are connected
func (h *Hub) HasClients() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Attach subscribes the hub to pipeline results. Broadcasting happens on a
// dedicated goroutine so a slow client's write deadline never stalls the
// processing worker; frames the consumer cannot keep up with are skipped.
// Returns an unsubscribe function.
func (h *Hub) Attach(bus *pipeline.EventBus) func() {
	results, unsubscribe := bus.SubscribeChannel(16)
	go func() {
		for result := range results {
			h.BroadcastDetection(NewDetectionMessage(result))
		}
	}()
	return unsubscribe
}

// Broadcast sends a raw message to all connected clients
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		err := conn.WriteMessage(websocket.TextMessage, message)
		if err != nil {
			fmt.Printf("[WS] Error sending to client: %v\n", err)
			h.Unregister(conn)
			conn.Close()
		}
	}
}

// BroadcastDetection sends a detection message to all subscribers
func (h *Hub) BroadcastDetection(msg *DetectionMessage) {
	if !h.HasClients() {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		fmt.Printf("[WS] Error marshaling detection message: %v\n", err)
		return
	}
	h.Broadcast(data)
}

// BroadcastState sends a pipeline state change to all subscribers
func (h *Hub) BroadcastState(msg *StateMessage) {
	if !h.HasClients() {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		fmt.Printf("[WS] Error marshaling state message: %v\n", err)
		return
	}
	h.Broadcast(data)
}
