package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"focusrelay/server/hub"
	"focusrelay/server/model"
)

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	h := hub.New(zap.NewNop())
	t.Cleanup(h.Close)

	hd := New(h, zap.NewNop(), 8080)
	r := mux.NewRouter()
	r.HandleFunc("/status", hd.HandleStatus).Methods("GET")
	r.HandleFunc("/broadcast/message", hd.HandleBroadcastMessage).Methods("POST")
	r.HandleFunc("/broadcast/task-update", hd.HandleBroadcastTask).Methods("POST")
	r.HandleFunc("/broadcast/friend-notification", hd.HandleBroadcastFriend).Methods("POST")
	r.HandleFunc("/broadcast/video-call-notification", hd.HandleBroadcastVideoCall).Methods("POST")
	r.HandleFunc("/ws", hd.HandleWebSocket)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, h
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// syncConn sends a deliberately unknown frame and waits for the ERROR
// response, proving every previously written frame on this connection has
// been processed.
func syncConn(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "nop"}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err)
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(p, &resp))
	require.Equal(t, "ERROR", resp.Status)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) *model.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err)
	var env model.Envelope
	require.NoError(t, json.Unmarshal(p, &env))
	return &env
}

func TestStatus_NoConnections(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, "WebSocket server running", status.Status)
	require.Equal(t, 0, status.Clients)
	require.Equal(t, 8080, status.Port)
}

func TestBroadcastTaskUpdate_FanOut(t *testing.T) {
	ts, h := newTestServer(t)

	// 3 connections: 2 subscribed to task-updates, 1 never subscribes
	// (and therefore receives everything).
	sub1 := dialWS(t, ts)
	sub2 := dialWS(t, ts)
	wildcard := dialWS(t, ts)
	for _, conn := range []*websocket.Conn{sub1, sub2} {
		require.NoError(t, conn.WriteJSON(model.Frame{Type: model.FrameSubscribe, Channel: model.ChannelTasks}))
		syncConn(t, conn)
	}
	require.Eventually(t, func() bool { return h.Count() == 3 }, time.Second, 10*time.Millisecond)

	body := []byte(`{"task":{"id":1,"status":"completed"}}`)
	resp, err := http.Post(ts.URL+"/broadcast/task-update", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, 3, result.Clients)

	for _, conn := range []*websocket.Conn{sub1, sub2, wildcard} {
		env := readEnvelope(t, conn)
		require.Equal(t, model.EventTaskUpdated, env.Event)
		var task struct {
			ID int `json:"id"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &task))
		require.Equal(t, 1, task.ID)
	}
}

func TestBroadcastTaskUpdate_SkipsOtherChannels(t *testing.T) {
	ts, _ := newTestServer(t)

	other := dialWS(t, ts)
	require.NoError(t, other.WriteJSON(model.Frame{Type: model.FrameSubscribe, Channel: model.ChannelFriends}))
	syncConn(t, other)

	body := []byte(`{"task":{"id":7}}`)
	resp, err := http.Post(ts.URL+"/broadcast/task-update", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = other.ReadMessage()
	require.Error(t, err, "connection on another channel must not receive the broadcast")
}

func TestBroadcast_BadRequests(t *testing.T) {
	ts, _ := newTestServer(t)

	cases := []struct {
		path string
		body string
	}{
		{"/broadcast/message", `{`},
		{"/broadcast/message", `{}`},
		{"/broadcast/task-update", `{}`},
		{"/broadcast/friend-notification", `{"action":"request_sent"}`},
		{"/broadcast/video-call-notification", `{"type":"incoming_call"}`},
	}
	for _, tc := range cases {
		resp, err := http.Post(ts.URL+tc.path, "application/json", strings.NewReader(tc.body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "%s %s", tc.path, tc.body)
	}
}

func TestWebSocket_MalformedFrameKeepsConnectionOpen(t *testing.T) {
	ts, h := newTestServer(t)

	conn := dialWS(t, ts)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err)
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(p, &resp))
	require.Equal(t, "ERROR", resp.Status)

	// connection survives and keeps working
	require.NoError(t, conn.WriteJSON(model.Frame{
		Type:    model.FrameBroadcast,
		Channel: model.ChannelTasks,
		Data:    json.RawMessage(`{"id":2}`),
	}))
	env := readEnvelope(t, conn)
	require.Equal(t, model.EventTaskUpdated, env.Event)
	require.Equal(t, 1, h.Count())
}

func TestWebSocket_SendMessageFansToMessageChannel(t *testing.T) {
	ts, _ := newTestServer(t)

	sender := dialWS(t, ts)
	receiver := dialWS(t, ts)
	require.NoError(t, receiver.WriteJSON(model.Frame{Type: model.FrameSubscribe, Channel: model.ChannelMessages}))
	syncConn(t, receiver)

	require.NoError(t, sender.WriteJSON(model.Frame{
		Type: model.FrameSendMessage,
		Data: json.RawMessage(`{"type":"message_received","message":{"from_user_id":1}}`),
	}))

	env := readEnvelope(t, receiver)
	require.Equal(t, model.EventMessageSent, env.Event)
	require.Equal(t, model.ChannelMessages, env.Channel)
}

func TestStatus_CountsConnections(t *testing.T) {
	ts, h := newTestServer(t)

	conn := dialWS(t, ts)
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.Count() == 0 }, time.Second, 10*time.Millisecond)
}
