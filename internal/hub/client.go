package hub

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound buffer per client. A client whose buffer is full is
	// dropped rather than blocking the broadcast.
	sendBufferSize = 256
)

// Client is one websocket connection bound to an authenticated username.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	username string
}

// NewClient wraps an upgraded connection. The username must come from the
// HTTP session or a verified ticket, never from the socket itself.
func NewClient(h *Hub, conn *websocket.Conn, username string) *Client {
	return &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		username: username,
	}
}

// Username returns the authenticated username bound to this connection.
func (c *Client) Username() string {
	return c.username
}

// Start registers the client and runs its pumps. A hub that has already
// shut down refuses the connection.
func (c *Client) Start() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		c.conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// detach hands the client back to the hub, or gives up if the hub has
// already shut down.
func (c *Client) detach() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// readPump reads frames from the socket, validates them at the boundary,
// and dispatches them to the hub.
func (c *Client) readPump() {
	defer func() {
		c.detach()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error for %s: %v", c.username, err)
			}
			return
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			c.sendError("invalid frame")
			continue
		}

		switch frame.Kind {
		case FrameRename:
			// The display name is already bound to the session user.
			// A claim for any other name is not trusted.
			if frame.Name != c.username {
				c.sendError("name does not match authenticated user")
			}
		case FrameChat:
			if err := c.hub.PublishChat(context.Background(), c.username, frame.Text); err != nil {
				log.Printf("publish chat from %s: %v", c.username, err)
				c.sendError("message not delivered")
			}
		}
	}
}

// writePump writes queued messages and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendError(message string) {
	data, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
