package hub

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"focusrelay/server/model"
)

// Peer is a side channel for broadcasts that originated on this node,
// typically the NATS bridge. Envelopes that arrived from a peer carry an
// origin id and are not published again.
type Peer interface {
	Publish(env *model.Envelope) error
}

// Hub owns the set of live connections and fans envelopes out to the
// subset whose channel tag matches (or is unset).
type Hub struct {
	log *zap.Logger

	mu     sync.RWMutex
	conns  map[*Conn]struct{}
	peer   Peer
	closed bool
}

func New(log *zap.Logger) *Hub {
	return &Hub{
		log:   log,
		conns: make(map[*Conn]struct{}),
	}
}

// SetPeer installs the cross-node bridge. Must be called before serving.
func (h *Hub) SetPeer(p Peer) {
	h.mu.Lock()
	h.peer = p
	h.mu.Unlock()
}

// Register adds a connection and starts its writer. The caller owns the
// read side.
func (h *Hub) Register(sock socket) *Conn {
	c := &Conn{
		ID:   uuid.NewString(),
		sock: sock,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
		log:  h.log,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close()
		return c
	}
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	h.log.Debug("connection registered", zap.String("conn", c.ID))
	return c
}

// Unregister removes and closes a connection. Safe to call twice.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	c.close()
	h.log.Debug("connection removed", zap.String("conn", c.ID))
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast fans env out to every connection subscribed to env.Channel or
// to no channel at all, and forwards locally-originated envelopes to the
// peer bridge. It returns the number of connections the envelope was
// queued for.
func (h *Hub) Broadcast(env *model.Envelope) int {
	payload, err := json.Marshal(env)
	if err != nil {
		h.log.Error("marshal envelope", zap.Error(err))
		return 0
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		if c.wants(env.Channel) {
			targets = append(targets, c)
		}
	}
	peer := h.peer
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if c.enqueue(payload) {
			n++
		}
	}

	if peer != nil && env.Origin == "" {
		if err := peer.Publish(env); err != nil {
			h.log.Warn("peer publish failed",
				zap.String("channel", env.Channel), zap.Error(err))
		}
	}

	h.log.Debug("broadcast",
		zap.String("event", env.Event),
		zap.String("channel", env.Channel),
		zap.Int("delivered", n))
	return n
}

// Close shuts every connection down. New registrations are closed
// immediately afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[*Conn]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}
