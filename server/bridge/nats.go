package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"focusrelay/server/hub"
	"focusrelay/server/model"
)

const subjectPrefix = "relay"

// Nats links multiple relay nodes: locally-originated envelopes are
// published to relay.<channel> and every node fans remote envelopes out to
// its own connections. The node id stamped on published envelopes keeps a
// node from re-delivering its own broadcasts.
type Nats struct {
	nc     *nats.Conn
	hub    *hub.Hub
	nodeID string
	sub    *nats.Subscription
	log    *zap.Logger
}

func New(url string, h *hub.Hub, log *zap.Logger) (*Nats, error) {
	nc, err := nats.Connect(url,
		nats.Name("focusrelay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect to NATS")
	}
	return &Nats{
		nc:     nc,
		hub:    h,
		nodeID: uuid.NewString(),
		log:    log,
	}, nil
}

// NodeID returns the id stamped onto published envelopes.
func (b *Nats) NodeID() string { return b.nodeID }

// Start subscribes to the relay subject tree and begins fanning remote
// envelopes out locally.
func (b *Nats) Start() error {
	sub, err := b.nc.Subscribe(subjectPrefix+".>", func(m *nats.Msg) {
		env, ok := b.Inbound(m.Data)
		if !ok {
			return
		}
		b.hub.Broadcast(env)
	})
	if err != nil {
		return errors.Wrap(err, "subscribe to relay subjects")
	}
	b.sub = sub
	b.log.Info("bridge started", zap.String("node", b.nodeID))
	return nil
}

// Publish implements hub.Peer for envelopes that originated on this node.
func (b *Nats) Publish(env *model.Envelope) error {
	out := *env
	out.Origin = b.nodeID
	data, err := json.Marshal(&out)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	return b.nc.Publish(Subject(env.Channel), data)
}

// Inbound decodes a bridged envelope and filters out this node's own
// publishes. The returned envelope keeps its origin set so the hub does not
// publish it a second time.
func (b *Nats) Inbound(data []byte) (*model.Envelope, bool) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.log.Warn("bridge: bad envelope", zap.Error(err))
		return nil, false
	}
	if env.Origin == b.nodeID {
		return nil, false
	}
	if env.Origin == "" {
		// Peers always stamp an origin; reject the frame rather than
		// risk a publish loop.
		b.log.Warn("bridge: envelope without origin", zap.String("channel", env.Channel))
		return nil, false
	}
	return &env, true
}

// Subject maps a channel to its bridge subject.
func Subject(channel string) string {
	if channel == "" {
		channel = "all"
	}
	return fmt.Sprintf("%s.%s", subjectPrefix, channel)
}

func (b *Nats) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	if b.nc != nil {
		_ = b.nc.Drain()
	}
}
