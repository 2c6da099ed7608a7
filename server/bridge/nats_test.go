package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"focusrelay/server/model"
)

func TestSubject(t *testing.T) {
	require.Equal(t, "relay.task-updates", Subject(model.ChannelTasks))
	require.Equal(t, "relay.message-channel", Subject(model.ChannelMessages))
	require.Equal(t, "relay.all", Subject(""))
}

func TestInbound_AcceptsRemoteOrigin(t *testing.T) {
	b := &Nats{nodeID: "node-a", log: zap.NewNop()}

	data, err := json.Marshal(&model.Envelope{
		Event:   model.EventTaskUpdated,
		Channel: model.ChannelTasks,
		Data:    json.RawMessage(`{"id":1}`),
		Origin:  "node-b",
	})
	require.NoError(t, err)

	env, ok := b.Inbound(data)
	require.True(t, ok)
	require.Equal(t, "node-b", env.Origin, "origin must survive so the hub does not re-publish")
	require.Equal(t, model.EventTaskUpdated, env.Event)
}

func TestInbound_DropsOwnPublishes(t *testing.T) {
	b := &Nats{nodeID: "node-a", log: zap.NewNop()}

	data, _ := json.Marshal(&model.Envelope{Event: model.EventTaskUpdated, Origin: "node-a"})
	_, ok := b.Inbound(data)
	require.False(t, ok)
}

func TestInbound_DropsMissingOrigin(t *testing.T) {
	b := &Nats{nodeID: "node-a", log: zap.NewNop()}

	data, _ := json.Marshal(&model.Envelope{Event: model.EventTaskUpdated})
	_, ok := b.Inbound(data)
	require.False(t, ok)
}

func TestInbound_RejectsGarbage(t *testing.T) {
	b := &Nats{nodeID: "node-a", log: zap.NewNop()}

	_, ok := b.Inbound([]byte("not an envelope"))
	require.False(t, ok)
}
