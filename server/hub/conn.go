package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendQueueSize = 256
	writeWait     = 5 * time.Second
)

// socket is the slice of *websocket.Conn the hub needs. Tests inject fakes.
type socket interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is one registered client connection. The channel tag is last-write-
// wins; an empty tag means the connection receives every broadcast.
type Conn struct {
	ID string

	mu      sync.RWMutex
	channel string

	sock socket
	send chan []byte
	done chan struct{}
	once sync.Once

	log *zap.Logger
}

// Subscribe replaces the connection's channel tag.
func (c *Conn) Subscribe(channel string) {
	c.mu.Lock()
	c.channel = channel
	c.mu.Unlock()
}

// Channel returns the current channel tag ("" if never subscribed).
func (c *Conn) Channel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// wants reports whether a broadcast targeting ch should reach this
// connection. Untagged connections are wildcard receivers.
func (c *Conn) wants(ch string) bool {
	tag := c.Channel()
	return tag == "" || tag == ch
}

// enqueue hands payload to the writer goroutine without blocking. A full
// queue means the client is not keeping up; the payload is dropped for this
// connection only.
func (c *Conn) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		c.log.Warn("dropping payload for slow client", zap.String("conn", c.ID))
		return false
	}
}

// SendJSON queues a single-connection response (error replies and the like).
func (c *Conn) SendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !c.enqueue(payload) {
		return errors.New("send queue full")
	}
	return nil
}

func (c *Conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}

// writePump drains the send queue onto the socket. It exits on write error
// or when the connection is closed.
func (c *Conn) writePump() {
	for {
		select {
		case payload := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("write failed", zap.String("conn", c.ID), zap.Error(err))
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
