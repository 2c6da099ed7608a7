package model

import (
	"encoding/json"
	"errors"
)

// Request bodies for the POST /broadcast/* endpoints. Each knows how to
// validate itself and how to wrap its payload into an envelope.

type MessageBroadcast struct {
	Message json.RawMessage `json:"message"`
	Channel string          `json:"channel,omitempty"`
}

func (b *MessageBroadcast) Validate() error {
	if len(b.Message) == 0 {
		return errors.New("message is required")
	}
	return nil
}

func (b *MessageBroadcast) Envelope() *Envelope {
	return &Envelope{
		Event:   EventMessageSent,
		Channel: channelOr(b.Channel, ChannelMessages),
		Data:    b.Message,
	}
}

type TaskBroadcast struct {
	Task    json.RawMessage `json:"task"`
	Channel string          `json:"channel,omitempty"`
}

func (b *TaskBroadcast) Validate() error {
	if len(b.Task) == 0 {
		return errors.New("task is required")
	}
	return nil
}

func (b *TaskBroadcast) Envelope() *Envelope {
	return &Envelope{
		Event:   EventTaskUpdated,
		Channel: channelOr(b.Channel, ChannelTasks),
		Data:    b.Task,
	}
}

type FriendBroadcast struct {
	Action         string          `json:"action"`
	UserID         int64           `json:"user_id"`
	FriendID       int64           `json:"friend_id"`
	FriendshipData json.RawMessage `json:"friendship_data,omitempty"`
	UserData       json.RawMessage `json:"user_data,omitempty"`
	FriendData     json.RawMessage `json:"friend_data,omitempty"`
	Channel        string          `json:"channel,omitempty"`
}

func (b *FriendBroadcast) Validate() error {
	if b.Action == "" {
		return errors.New("action is required")
	}
	if b.UserID == 0 || b.FriendID == 0 {
		return errors.New("user_id and friend_id are required")
	}
	return nil
}

func (b *FriendBroadcast) Envelope() (*Envelope, error) {
	payload := *b
	payload.Channel = "" // routing detail, not part of the notification
	data, err := json.Marshal(&payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Event:   EventFriendNotification,
		Channel: channelOr(b.Channel, ChannelFriends),
		Data:    data,
	}, nil
}

type VideoCallBroadcast struct {
	Type         string          `json:"type"`
	CallID       string          `json:"callId"`
	MeetingID    string          `json:"meetingId,omitempty"`
	Token        string          `json:"token,omitempty"`
	FromUser     json.RawMessage `json:"from_user,omitempty"`
	ToUser       json.RawMessage `json:"to_user,omitempty"`
	TargetUserID int64           `json:"target_user_id,omitempty"`
	Channel      string          `json:"channel,omitempty"`
}

func (b *VideoCallBroadcast) Validate() error {
	if b.Type == "" {
		return errors.New("type is required")
	}
	if b.CallID == "" {
		return errors.New("callId is required")
	}
	return nil
}

func (b *VideoCallBroadcast) Envelope() (*Envelope, error) {
	payload := *b
	payload.Channel = ""
	data, err := json.Marshal(&payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Event:   EventVideoCallNotification,
		Channel: channelOr(b.Channel, ChannelVideoCalls),
		Data:    data,
	}, nil
}
