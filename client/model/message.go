package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TempID identifies an optimistically-sent message until the backend
// assigns a permanent id.
type TempID string

func NewTempID() TempID {
	return TempID(uuid.NewString())
}

// Envelope mirrors the relay's wire format.
type Envelope struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// Message event types carried inside message-channel envelopes.
const (
	MessageReceived = "message_received"
	MessageUpdated  = "message_updated"
	MessageFailed   = "message_failed"
)

// ChatMessage is one direct message. IsTemporary marks an optimistic record
// that has not been confirmed by the backend yet.
type ChatMessage struct {
	ID          int64     `json:"id,omitempty"`
	TempID      TempID    `json:"tempId,omitempty"`
	FromUserID  int64     `json:"from_user_id"`
	ToUserID    int64     `json:"to_user_id"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
	IsTemporary bool      `json:"isTemporary,omitempty"`
}

// MessageEvent is the payload the message service broadcasts over the
// relay: the optimistic insert, the id swap, or the rollback.
type MessageEvent struct {
	Type    string       `json:"type"`
	Message *ChatMessage `json:"message,omitempty"`
	TempID  TempID       `json:"tempId,omitempty"`
	ID      int64        `json:"id,omitempty"`
}
