// Package hub is the broadcast bus: it keeps the registry of connected
// websocket clients and fans chat lines and the connected-user list out to
// every open connection. Delivery is best-effort; clients that cannot keep
// up are dropped, never waited on.
package hub

import (
	"context"
	"encoding/json"
	"log"

	"github.com/forumboard/server/internal/bus"
)

// Hub owns the client registry. The registry is only touched from the Run
// loop, so registration, removal and fan-out never race.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	events     *bus.Bus

	// done is closed when Run returns, so clients registering or
	// detaching afterwards never block on an undrained channel.
	done chan struct{}
}

// New constructs a Hub on top of the chat event bus. Every chat line goes
// through the bus, so instances sharing a broker fan out each other's
// messages too.
func New(events *bus.Bus) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		events:     events,
		done:       make(chan struct{}),
	}
}

// Run drives the hub until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	go h.consumeEvents(ctx)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("client connected: %s (%d online)", client.Username(), len(h.clients))
			h.broadcastUserList()
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("client disconnected: %s (%d online)", client.Username(), len(h.clients))
				h.broadcastUserList()
			}
		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// PublishChat puts a chat line on the event bus. The username must already
// be the authenticated session's user.
func (h *Hub) PublishChat(ctx context.Context, user, text string) error {
	data, err := json.Marshal(ChatEvent{User: user, Text: text})
	if err != nil {
		return err
	}
	_, err = h.events.Publish(ctx, bus.ChatChannel, data, nil)
	return err
}

func (h *Hub) consumeEvents(ctx context.Context) {
	err := h.events.Subscribe(ctx, bus.ChatChannel, func(_ context.Context, msg bus.Message) error {
		select {
		case h.broadcast <- msg.Data:
		default:
			// Best-effort: drop rather than stall the subscription.
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("chat event subscription ended: %v", err)
	}
}

// fanOut sends a message to every connected client. A client with a full
// buffer has disconnected or stalled; it is dropped and skipped, not
// faulted on.
func (h *Hub) fanOut(message []byte) {
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *Hub) broadcastUserList() {
	list := make([]string, 0, len(h.clients))
	for client := range h.clients {
		list = append(list, client.Username())
	}

	data, err := json.Marshal(UserListEvent{List: list})
	if err != nil {
		log.Printf("marshal user list: %v", err)
		return
	}
	h.fanOut(data)
}

func (h *Hub) closeAll() {
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}
