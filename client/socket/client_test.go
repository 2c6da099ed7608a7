package socket

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"focusrelay/client/model"
)

// fakeConn is an in-memory transport: the test pushes inbound envelopes and
// inspects outbound frames.
type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case p := <-f.in:
		return 1, p, nil
	case <-f.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("use of closed connection")
	default:
	}
	f.out <- data
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// drop severs the connection from the server side.
func (f *fakeConn) drop() { _ = f.Close() }

func (f *fakeConn) push(t *testing.T, env model.Envelope) {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	f.in <- data
}

func (f *fakeConn) nextFrame(t *testing.T) model.Frame {
	t.Helper()
	select {
	case p := <-f.out:
		var frame model.Frame
		require.NoError(t, json.Unmarshal(p, &frame))
		return frame
	case <-time.After(time.Second):
		t.Fatal("no frame written within 1s")
		return model.Frame{}
	}
}

// fakeDialer hands out one fakeConn per dial, counting dials. With no conns
// queued every dial fails.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials atomic.Int32
}

func (d *fakeDialer) dial(string) (Conn, error) {
	d.dials.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func newClient(t *testing.T, d *fakeDialer) *Client {
	t.Helper()
	c := New("ws://relay.test/ws", zap.NewNop(),
		WithDialer(d.dial),
		WithBackoffUnit(time.Millisecond),
	)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDispatch_RoutesByChannel(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	c := newClient(t, d)

	tasks := make(chan json.RawMessage, 4)
	friends := make(chan json.RawMessage, 4)
	c.Subscribe(model.ChannelTasks, func(data json.RawMessage) { tasks <- data })
	c.Subscribe(model.ChannelFriends, func(data json.RawMessage) { friends <- data })
	require.NoError(t, c.Connect())

	conn.push(t, model.Envelope{Event: "TaskUpdated", Channel: model.ChannelTasks, Data: json.RawMessage(`{"id":3}`)})
	conn.push(t, model.Envelope{Event: "FriendNotification", Channel: model.ChannelFriends, Data: json.RawMessage(`{"action":"request_sent"}`)})

	select {
	case data := <-tasks:
		require.JSONEq(t, `{"id":3}`, string(data))
	case <-time.After(time.Second):
		t.Fatal("task handler never fired")
	}
	select {
	case data := <-friends:
		require.JSONEq(t, `{"action":"request_sent"}`, string(data))
	case <-time.After(time.Second):
		t.Fatal("friend handler never fired")
	}
	require.Empty(t, tasks, "task handler must not see friend envelopes")
}

func TestConnect_ReplaysSubscriptions(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	c := newClient(t, d)

	c.Subscribe(model.ChannelTasks, func(json.RawMessage) {})
	c.Subscribe(model.ChannelMessages, func(json.RawMessage) {})
	require.NoError(t, c.Connect())

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		frame := conn.nextFrame(t)
		require.Equal(t, model.FrameSubscribe, frame.Type)
		seen[frame.Channel] = true
	}
	require.True(t, seen[model.ChannelTasks])
	require.True(t, seen[model.ChannelMessages])
}

func TestReconnect_ResubscribesOnNewConnection(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{first, second}}
	c := newClient(t, d)

	c.Subscribe(model.ChannelTasks, func(json.RawMessage) {})
	require.NoError(t, c.Connect())
	require.Equal(t, model.FrameSubscribe, first.nextFrame(t).Type)

	first.drop()

	require.Eventually(t, c.Connected, time.Second, time.Millisecond)
	frame := second.nextFrame(t)
	require.Equal(t, model.FrameSubscribe, frame.Type)
	require.Equal(t, model.ChannelTasks, frame.Channel)
	require.Equal(t, int32(2), d.dials.Load())
}

func TestReconnect_GivesUpAfterFiveRetries(t *testing.T) {
	d := &fakeDialer{} // every dial fails
	c := newClient(t, d)

	require.Error(t, c.Connect())
	require.Eventually(t, func() bool { return c.State() == StateGaveUp }, 2*time.Second, time.Millisecond)

	// initial dial plus five retries, then nothing
	require.Equal(t, int32(6), d.dials.Load())
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(6), d.dials.Load())
}

func TestSend_WhenDisconnected(t *testing.T) {
	c := newClient(t, &fakeDialer{})
	err := c.Send(model.Frame{Type: model.FrameBroadcast, Channel: model.ChannelTasks})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSend_WritesFrame(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	c := newClient(t, d)
	require.NoError(t, c.Connect())

	require.NoError(t, c.Send(model.Frame{Type: model.FrameBroadcast, Channel: model.ChannelTasks}))
	frame := conn.nextFrame(t)
	require.Equal(t, model.FrameBroadcast, frame.Type)
	require.Equal(t, model.ChannelTasks, frame.Channel)
}

func TestOnStateChange_ObservesTransitions(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	c := newClient(t, d)

	var mu sync.Mutex
	var states []State
	c.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	require.NoError(t, c.Connect())

	mu.Lock()
	got := append([]State(nil), states...)
	mu.Unlock()
	require.Equal(t, []State{StateConnecting, StateConnected}, got)
}

func TestClose_StopsReconnects(t *testing.T) {
	d := &fakeDialer{}
	c := New("ws://relay.test/ws", zap.NewNop(),
		WithDialer(d.dial),
		WithBackoffUnit(50*time.Millisecond),
	)
	require.Error(t, c.Connect())
	require.Equal(t, StateBackoff, c.State())

	require.NoError(t, c.Close())
	require.Equal(t, StateDisconnected, c.State())
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(1), d.dials.Load(), "no dials after Close")
	require.ErrorIs(t, c.Connect(), ErrClosed)
}
