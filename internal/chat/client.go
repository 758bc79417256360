package chat

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gofiber/contrib/websocket"
)

// Client is one live socket. A user may hold several.
type Client struct {
	Id   string
	Conn ConnLike
	Send chan []byte

	mu      sync.RWMutex
	name    string
	manager *Manager
}

type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// Name is the identified username; empty until identify.
func (c *Client) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// bindName sets the username of an anonymous connection. It reports false
// when the connection already belongs to a different user.
func (c *Client) bindName(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.name != "" && c.name != name {
		return false
	}
	c.name = name
	return true
}

func (c *Client) origin() Origin {
	return Origin{Username: c.Name(), ConnID: c.Id}
}

// ReadPump dispatches inbound frames until the connection fails.
func (c *Client) ReadPump(ctx context.Context) {
	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			log.Debug("Connection read ended", "conn", c.Id, "user", c.Name(), "err", err)
			return
		}
		c.manager.Dispatch(ctx, c, data)
	}
}

// WritePump drains Send until the manager closes it.
func (c *Client) WritePump() {
	for data := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug("Write failed", "conn", c.Id, "err", err)
		}
	}
	_ = c.Conn.Close()
}
