package gateway

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/waggleboard/waggle/pkg/board"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Client represents one connected browser session.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string

	// republish pushes a browser-originated presence event into the
	// workspace channel.
	republish func(ctx context.Context, ev board.Event) error
}

// ReadPump pumps presence events from the websocket into the workspace.
// Inbound frames are parsed as board events, stamped with this client's
// session ID, and republished to Redis; the Redis subscription then fans
// them back out to every other connected session, so ordering has a single
// source and nobody hears their own echo.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] websocket error: %v", err)
			}
			break
		}

		var ev board.Event
		if err := json.Unmarshal(message, &ev); err != nil {
			log.Printf("[Gateway] malformed frame from session %s: %v", c.sessionID, err)
			continue
		}

		ev.SessionID = c.sessionID
		if err := ev.Validate(); err != nil {
			log.Printf("[Gateway] invalid event from session %s: %v", c.sessionID, err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		if err := c.republish(ctx, ev); err != nil {
			log.Printf("[Gateway] republish failed for session %s: %v", c.sessionID, err)
		}
		cancel()
	}
}

// WritePump pumps frames from the hub to the websocket connection.
func (c *Client) WritePump() {
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
				// The hub closed the channel
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
