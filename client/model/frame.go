package model

// Frame types the relay accepts.
const (
	FrameSubscribe     = "subscribe"
	FrameSendMessage   = "send_message"
	FrameDirectMessage = "direct_message"
	FrameBroadcast     = "broadcast"
	FrameVideoCall     = "video_call_notification"
)

// Frame is a client->relay message.
type Frame struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Relay channels the client subscribes to.
const (
	ChannelMessages   = "message-channel"
	ChannelFriends    = "friend-notifications"
	ChannelVideoCalls = "video-calls"
	ChannelTasks      = "task-updates"
)
