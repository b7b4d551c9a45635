package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Message is an ops feed event pushed to connected staff dashboards.
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Client represents a connected dashboard
type Client struct {
	Hub    *Hub
	UserID uint
	Conn   connWriter
	Send   chan []byte
}

// Hub manages all ops feed connections
type Hub struct {
	// Registered clients, keyed by user id (one live connection per
	// staff user; a reconnect replaces the old one)
	Clients map[uint]*Client

	// Broadcast channel for messages to all clients
	Broadcast chan *Message

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates a new ops feed hub
func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[uint]*Client),
		Broadcast:  make(chan *Message, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if old, ok := h.Clients[client.UserID]; ok {
				close(old.Send)
			}
			h.Clients[client.UserID] = client
			h.mu.Unlock()
			log.Printf("🔌 Ops feed client registered: user=%d", client.UserID)

		case client := <-h.Unregister:
			h.mu.Lock()
			if current, ok := h.Clients[client.UserID]; ok && current == client {
				delete(h.Clients, client.UserID)
				close(client.Send)
			}
			h.mu.Unlock()
			log.Printf("🔌 Ops feed client unregistered: user=%d", client.UserID)

		case message := <-h.Broadcast:
			payload, err := json.Marshal(message)
			if err != nil {
				log.Printf("❌ Failed to marshal ops feed message: %v", err)
				continue
			}
			h.mu.RLock()
			for _, client := range h.Clients {
				select {
				case client.Send <- payload:
				default:
					// Slow consumer: drop the message rather than
					// stall the hub.
					log.Printf("⚠️ Ops feed buffer full for user %d, dropping message", client.UserID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues a message for all connected dashboards without
// blocking the caller.
func (h *Hub) Publish(m *Message) {
	select {
	case h.Broadcast <- m:
	default:
		log.Printf("⚠️ Ops feed broadcast channel full, dropping %s", m.Type)
	}
}
