package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"focusrelay/server/model"
)

type broadcastResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Message string `json:"message,omitempty"`
	Action  string `json:"action,omitempty"`
	Type    string `json:"type,omitempty"`
}

// HandleBroadcastMessage implements POST /broadcast/message.
func (h *Handler) HandleBroadcastMessage(w http.ResponseWriter, r *http.Request) {
	var body model.MessageBroadcast
	if !h.decode(w, r, &body, body.Validate) {
		return
	}
	h.hub.Broadcast(body.Envelope())
	h.respond(w, broadcastResponse{
		Status:  "broadcast sent",
		Clients: h.hub.Count(),
		Message: "message",
	})
}

// HandleBroadcastTask implements POST /broadcast/task-update.
func (h *Handler) HandleBroadcastTask(w http.ResponseWriter, r *http.Request) {
	var body model.TaskBroadcast
	if !h.decode(w, r, &body, body.Validate) {
		return
	}
	h.hub.Broadcast(body.Envelope())
	h.respond(w, broadcastResponse{
		Status:  "broadcast sent",
		Clients: h.hub.Count(),
	})
}

// HandleBroadcastFriend implements POST /broadcast/friend-notification.
func (h *Handler) HandleBroadcastFriend(w http.ResponseWriter, r *http.Request) {
	var body model.FriendBroadcast
	if !h.decode(w, r, &body, body.Validate) {
		return
	}
	env, err := body.Envelope()
	if err != nil {
		h.badRequest(w, err)
		return
	}
	h.hub.Broadcast(env)
	h.respond(w, broadcastResponse{
		Status:  "broadcast sent",
		Clients: h.hub.Count(),
		Action:  body.Action,
	})
}

// HandleBroadcastVideoCall implements POST /broadcast/video-call-notification.
func (h *Handler) HandleBroadcastVideoCall(w http.ResponseWriter, r *http.Request) {
	var body model.VideoCallBroadcast
	if !h.decode(w, r, &body, body.Validate) {
		return
	}
	env, err := body.Envelope()
	if err != nil {
		h.badRequest(w, err)
		return
	}
	h.hub.Broadcast(env)
	h.respond(w, broadcastResponse{
		Status:  "broadcast sent",
		Clients: h.hub.Count(),
		Type:    body.Type,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, body any, validate func() error) bool {
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		h.badRequest(w, err)
		return false
	}
	if err := validate(); err != nil {
		h.badRequest(w, err)
		return false
	}
	return true
}

func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	h.log.Warn("bad broadcast request", zap.Error(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"status": "ERROR", "error": err.Error()})
}

func (h *Handler) respond(w http.ResponseWriter, resp broadcastResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
