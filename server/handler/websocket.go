package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"focusrelay/server/hub"
	"focusrelay/server/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler carries the relay's HTTP and WebSocket endpoints.
type Handler struct {
	hub  *hub.Hub
	log  *zap.Logger
	port int
}

func New(h *hub.Hub, log *zap.Logger, port int) *Handler {
	return &Handler{hub: h, log: log, port: port}
}

// HandleWebSocket upgrades the request and runs the read loop. Malformed
// frames get an ERROR response; the connection stays open until the peer
// closes or a read fails.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade error", zap.Error(err))
		return
	}

	conn := h.hub.Register(sock)
	defer h.hub.Unregister(conn)

	for {
		_, p, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				h.log.Warn("read error", zap.String("conn", conn.ID), zap.Error(err))
			}
			return
		}

		frame, err := model.ParseFrame(p)
		if err != nil {
			h.writeError(conn, err.Error())
			continue
		}

		switch frame.Type {
		case model.FrameSubscribe:
			conn.Subscribe(frame.Channel)
			h.log.Debug("subscribed",
				zap.String("conn", conn.ID), zap.String("channel", frame.Channel))
		default:
			env, err := frame.Envelope()
			if err != nil {
				h.writeError(conn, err.Error())
				continue
			}
			h.hub.Broadcast(env)
		}
	}
}

func (h *Handler) writeError(conn *hub.Conn, msg string) {
	if err := conn.SendJSON(model.NewErrorResponse(msg)); err != nil {
		h.log.Debug("error response dropped", zap.String("conn", conn.ID), zap.Error(err))
	}
}
