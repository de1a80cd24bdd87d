package ws

import (
	"crypto/rand"
	"encoding/hex"

	"nhooyr.io/websocket"
)

// Client is one live WebSocket connection. Its ID is the opaque identity
// every registry and moderation lookup is keyed by; it is never reused
// after the connection closes.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// newClient wraps an accepted connection with a fresh connection ID.
func newClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn, id: generateConnID()}
}

// ID returns the connection identity.
func (c *Client) ID() string {
	return c.id
}

func generateConnID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
