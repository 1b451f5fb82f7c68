// Package gateway bridges a workspace's real-time traffic to browser
// clients over websockets: presence and change events flow from Redis out
// to every connected browser, and presence events from browsers are
// republished into the workspace.
package gateway

import (
	"context"
	"log"
)

// frame is one outbound message together with the session it originated
// from, so fan-out can skip the sender.
type frame struct {
	payload        []byte
	excludeSession string
}

// Hub maintains the set of connected browser clients and fans frames out
// to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan frame
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a new hub instance.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan frame, 32),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Register adds a client to the hub. A registration racing hub shutdown is
// dropped rather than blocking the caller; the upgrade handler's connection
// is torn down with the server anyway.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub. No-op after shutdown.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast fans a payload out to every connected client except the one
// whose session originated it. An empty excludeSession reaches everyone.
func (h *Hub) Broadcast(payload []byte, excludeSession string) {
	select {
	case h.broadcast <- frame{payload: payload, excludeSession: excludeSession}:
	case <-h.done:
	}
}

// Run is the hub's main loop; it returns when the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			log.Printf("[Gateway] client connected: session=%s", client.sessionID)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("[Gateway] client disconnected: session=%s", client.sessionID)
			}

		case f := <-h.broadcast:
			for client := range h.clients {
				if f.excludeSession != "" && client.sessionID == f.excludeSession {
					continue
				}
				select {
				case client.send <- f.payload:
				default:
					// Send buffer full; assume the client is gone
					log.Printf("[Gateway] send buffer full, dropping client: session=%s", client.sessionID)
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}
