package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum message size allowed
	maxMessageSize = 512 * 1024 // 512KB covers preview frames
)

// Conn is the subset of the websocket connection the client pumps
// need. *websocket.Conn satisfies it.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	ReadMessage() (int, []byte, error)
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single websocket connection attached to a hub.
type Client struct {
	id   string
	hub  *Hub
	conn Conn
	send chan Message
}

// NewClient creates a client and registers it with the hub.
func NewClient(hub *Hub, conn Conn) *Client {
	client := &Client{
		id:   uuid.NewString()[:8],
		hub:  hub,
		conn: conn,
		send: make(chan Message, 256),
	}
	hub.register <- client
	return client
}

// Run starts the client's read and write pumps. It blocks until the
// connection closes, so call it from the websocket handler.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump drains the connection to detect disconnects and receive
// pong responses. Inbound payloads are ignored; hubs are one-way.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump is the only goroutine that writes to the connection.
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
				// Hub closed the channel - send close frame
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// A backlog of preview frames means the client fell
			// behind; only the newest frame is worth delivering.
			var followUp *Message
			open := true
			if message.Type == BinaryMessage {
				message, followUp, open = c.collapseFrames(message)
			}

			if err := c.write(message); err != nil {
				return
			}
			if followUp != nil {
				if err := c.write(*followUp); err != nil {
					return
				}
			}
			if !open {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
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

// collapseFrames drains consecutively queued binary frames and keeps
// the newest. A JSON message ends the drain and is returned as a
// follow-up so ordered payloads are never skipped. The final result
// reports false when the hub closed the channel mid-drain.
func (c *Client) collapseFrames(frame Message) (Message, *Message, bool) {
	for {
		select {
		case next, open := <-c.send:
			if !open {
				return frame, nil, false
			}
			if next.Type == BinaryMessage {
				frame = next
				continue
			}
			return frame, &next, true
		default:
			return frame, nil, true
		}
	}
}

func (c *Client) write(m Message) error {
	wsType := websocket.TextMessage
	if m.Type == BinaryMessage {
		wsType = websocket.BinaryMessage
	}
	return c.conn.WriteMessage(wsType, m.Data)
}
