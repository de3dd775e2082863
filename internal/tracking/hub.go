// Package tracking pushes order status changes to connected websocket clients.
package tracking

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Event is one status change as seen by subscribers.
type Event struct {
	OrderID   int64     `json:"order_id"`
	Status    string    `json:"status"`
	Reason    string    `json:"motivo,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// Hub keeps one room of clients per order and fans events into it.
type Hub struct {
	rooms map[int64]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub loop. It returns when ctx is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for orderID, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, orderID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.orderID] == nil {
				h.rooms[client.orderID] = make(map[*Client]bool)
			}
			h.rooms[client.orderID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for client := range h.rooms[event.OrderID] {
				select {
				case client.send <- message:
				default:
					// Slow consumer.
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues an event for the subscribers of its order.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	}
}

func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribers returns the number of clients watching an order.
func (h *Hub) Subscribers(orderID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[orderID])
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.orderID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.orderID)
	}
}
