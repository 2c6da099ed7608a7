package hub

import (
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"focusrelay/server/model"
)

type fakeSock struct {
	frames chan []byte
	closed chan struct{}
}

func newFakeSock() *fakeSock {
	return &fakeSock{
		frames: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeSock) WriteMessage(messageType int, data []byte) error {
	f.frames <- data
	return nil
}

func (f *fakeSock) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeSock) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func (f *fakeSock) recv(t *testing.T) *model.Envelope {
	t.Helper()
	select {
	case data := <-f.frames:
		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("bad envelope: %v", err)
		}
		return &env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
		return nil
	}
}

func (f *fakeSock) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case data := <-f.frames:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func taskEnvelope() *model.Envelope {
	return &model.Envelope{
		Event:   model.EventTaskUpdated,
		Channel: model.ChannelTasks,
		Data:    json.RawMessage(`{"id":1,"status":"completed"}`),
	}
}

func TestBroadcast_ChannelMatchAndWildcard(t *testing.T) {
	h := New(zap.NewNop())
	defer h.Close()

	subscribed := newFakeSock()
	alsoSubscribed := newFakeSock()
	wildcard := newFakeSock()
	elsewhere := newFakeSock()

	h.Register(subscribed).Subscribe(model.ChannelTasks)
	h.Register(alsoSubscribed).Subscribe(model.ChannelTasks)
	h.Register(wildcard) // never subscribes: receives everything
	h.Register(elsewhere).Subscribe(model.ChannelFriends)

	n := h.Broadcast(taskEnvelope())
	if n != 3 {
		t.Errorf("delivered to %d connections, want 3", n)
	}

	for _, f := range []*fakeSock{subscribed, alsoSubscribed, wildcard} {
		env := f.recv(t)
		if env.Event != model.EventTaskUpdated {
			t.Errorf("event = %s", env.Event)
		}
		var task struct {
			ID int `json:"id"`
		}
		if err := json.Unmarshal(env.Data, &task); err != nil || task.ID != 1 {
			t.Errorf("task data = %s (err %v)", env.Data, err)
		}
		// exactly one copy
		f.expectNothing(t)
	}
	elsewhere.expectNothing(t)
}

func TestSubscribe_LastWriteWins(t *testing.T) {
	h := New(zap.NewNop())
	defer h.Close()

	sock := newFakeSock()
	conn := h.Register(sock)
	conn.Subscribe(model.ChannelMessages)
	conn.Subscribe(model.ChannelTasks)

	if got := conn.Channel(); got != model.ChannelTasks {
		t.Errorf("channel = %q, want %q", got, model.ChannelTasks)
	}

	h.Broadcast(&model.Envelope{Event: model.EventMessageSent, Channel: model.ChannelMessages, Data: json.RawMessage(`{}`)})
	sock.expectNothing(t)

	h.Broadcast(taskEnvelope())
	if env := sock.recv(t); env.Channel != model.ChannelTasks {
		t.Errorf("channel = %s", env.Channel)
	}
}

func TestUnregister_RemovesConnection(t *testing.T) {
	h := New(zap.NewNop())
	defer h.Close()

	sock := newFakeSock()
	conn := h.Register(sock)
	if h.Count() != 1 {
		t.Fatalf("count = %d", h.Count())
	}

	h.Unregister(conn)
	if h.Count() != 0 {
		t.Errorf("count after unregister = %d", h.Count())
	}
	if h.Broadcast(taskEnvelope()) != 0 {
		t.Error("broadcast should reach nothing after unregister")
	}

	// double unregister must be safe
	h.Unregister(conn)
}

type fakePeer struct {
	published []*model.Envelope
}

func (p *fakePeer) Publish(env *model.Envelope) error {
	p.published = append(p.published, env)
	return nil
}

func TestBroadcast_PeerPublishing(t *testing.T) {
	h := New(zap.NewNop())
	defer h.Close()

	peer := &fakePeer{}
	h.SetPeer(peer)

	h.Broadcast(taskEnvelope())
	if len(peer.published) != 1 {
		t.Fatalf("published %d envelopes, want 1", len(peer.published))
	}

	// envelopes arriving from a peer must not bounce back out
	remote := taskEnvelope()
	remote.Origin = "node-b"
	h.Broadcast(remote)
	if len(peer.published) != 1 {
		t.Errorf("remote envelope was re-published")
	}
}

func TestSendJSON(t *testing.T) {
	h := New(zap.NewNop())
	defer h.Close()

	sock := newFakeSock()
	conn := h.Register(sock)
	if err := conn.SendJSON(model.NewErrorResponse("bad frame")); err != nil {
		t.Fatal(err)
	}

	select {
	case data := <-sock.frames:
		var resp model.ErrorResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != "ERROR" || resp.Error != "bad frame" {
			t.Errorf("response = %+v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("no response written")
	}
}
