package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Well-known channels
const (
	ChannelMessages   = "message-channel"
	ChannelFriends    = "friend-notifications"
	ChannelVideoCalls = "video-calls"
	ChannelTasks      = "task-updates"
)

// Envelope events (server -> client)
const (
	EventMessageSent           = "MessageSent"
	EventMessageUpdate         = "MessageUpdate"
	EventFriendNotification    = "FriendNotification"
	EventVideoCallNotification = "VideoCallNotification"
	EventTaskUpdated           = "TaskUpdated"
)

// Frame types (client -> server)
const (
	FrameSubscribe     = "subscribe"
	FrameSendMessage   = "send_message"
	FrameDirectMessage = "direct_message"
	FrameBroadcast     = "broadcast"
	FrameVideoCall     = "video_call_notification"
)

var (
	ErrUnknownFrame = errors.New("unknown frame type")
	ErrEmptyChannel = errors.New("channel is required")
	ErrEmptyData    = errors.New("data is required")
)

// Envelope is the wire format for every server->client push. Origin carries
// the id of the relay node the broadcast entered through; it is only used by
// the cross-node bridge to break publish loops.
type Envelope struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
	Origin  string          `json:"origin,omitempty"`
}

// Frame is a decoded client->server message.
type Frame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ErrorResponse is written back on a rejected frame. The connection itself
// stays open.
type ErrorResponse struct {
	Status          string    `json:"status"`
	Error           string    `json:"error"`
	ServerTimestamp time.Time `json:"serverTimestamp"`
}

func NewErrorResponse(msg string) ErrorResponse {
	return ErrorResponse{Status: "ERROR", Error: msg, ServerTimestamp: time.Now()}
}

// ParseFrame decodes and validates an inbound frame. Unknown frame types and
// frames missing required fields are rejected rather than logged and dropped.
func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch f.Type {
	case FrameSubscribe:
		if f.Channel == "" {
			return nil, ErrEmptyChannel
		}
	case FrameSendMessage, FrameDirectMessage, FrameVideoCall:
		if len(f.Data) == 0 {
			return nil, ErrEmptyData
		}
	case FrameBroadcast:
		if f.Channel == "" {
			return nil, ErrEmptyChannel
		}
		if len(f.Data) == 0 {
			return nil, ErrEmptyData
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, f.Type)
	}
	return &f, nil
}

// Envelope converts a broadcast-carrying frame into the envelope the relay
// fans out. Subscribe frames have no envelope form.
func (f *Frame) Envelope() (*Envelope, error) {
	switch f.Type {
	case FrameSendMessage:
		return &Envelope{Event: EventMessageSent, Channel: channelOr(f.Channel, ChannelMessages), Data: f.Data}, nil
	case FrameDirectMessage:
		return &Envelope{Event: EventMessageUpdate, Channel: channelOr(f.Channel, ChannelMessages), Data: f.Data}, nil
	case FrameVideoCall:
		return &Envelope{Event: EventVideoCallNotification, Channel: channelOr(f.Channel, ChannelVideoCalls), Data: f.Data}, nil
	case FrameBroadcast:
		return &Envelope{Event: EventForChannel(f.Channel), Channel: f.Channel, Data: f.Data}, nil
	}
	return nil, fmt.Errorf("frame type %q carries no broadcast", f.Type)
}

// EventForChannel maps a generic broadcast target to its envelope event.
func EventForChannel(channel string) string {
	switch channel {
	case ChannelTasks:
		return EventTaskUpdated
	case ChannelFriends:
		return EventFriendNotification
	case ChannelVideoCalls:
		return EventVideoCallNotification
	default:
		return EventMessageSent
	}
}

func channelOr(ch, fallback string) string {
	if ch == "" {
		return fallback
	}
	return ch
}
