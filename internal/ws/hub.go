// Package ws pushes moderation events (newly approved records and comments)
// to connected live-feed clients.
package ws

// Hub fans broadcast messages out to all registered clients.
type Hub struct {
	// Broadcast accepts pre-marshalled JSON messages for all clients.
	Broadcast chan []byte

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
}

// NewHub returns a hub ready for Run.
func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan []byte, 256),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes registration and broadcast events. Call it in its own
// goroutine; it loops forever.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer: drop it rather than block the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}
