package ws

import "sync"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans report payloads out to every connected subscriber. Membership and
// delivery are serialized on the run loop, so no lock is needed.
type Hub struct {
	clients   map[Subscriber]struct{}
	register  chan Subscriber
	unreg     chan Subscriber
	broadcast chan []byte
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewHub creates a Hub with its run loop started. Stop releases it.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[Subscriber]struct{}),
		register:  make(chan Subscriber),
		unreg:     make(chan Subscriber),
		broadcast: make(chan []byte),
		stop:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unreg:
			delete(h.clients, client)
		case payload := <-h.broadcast:
			for c := range h.clients {
				if err := c.Send(payload); err != nil {
					c.Close()
					delete(h.clients, c)
				}
			}
		case <-h.stop:
			for c := range h.clients {
				c.Close()
				delete(h.clients, c)
			}
			return
		}
	}
}

// Register adds a client to the feed.
func (h *Hub) Register(client Subscriber) {
	select {
	case h.register <- client:
	case <-h.stop:
		client.Close()
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(client Subscriber) {
	select {
	case h.unreg <- client:
	case <-h.stop:
	}
}

// Broadcast sends payload to all connected clients.
func (h *Hub) Broadcast(payload []byte) {
	select {
	case h.broadcast <- payload:
	case <-h.stop:
	}
}

// Stop closes every subscriber and ends the run loop. Calls arriving after
// Stop return without blocking.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}
