package model

import (
	"encoding/json"
	"fmt"
)

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// PlaceholderUser stands in when a user lookup fails so a notification can
// always render a name.
func PlaceholderUser(id int64) *User {
	return &User{ID: id, Username: fmt.Sprintf("User %d", id)}
}

// Friend notification actions.
const (
	FriendRequestSent     = "request_sent"
	FriendRequestAccepted = "request_accepted"
	FriendRequestDeclined = "request_declined"
	FriendRemoved         = "friend_removed"
)

type Friendship struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	FriendID int64  `json:"friend_id"`
	Status   string `json:"status,omitempty"`
}

// FriendEvent is the friend-notifications channel payload.
type FriendEvent struct {
	Action         string          `json:"action"`
	UserID         int64           `json:"user_id"`
	FriendID       int64           `json:"friend_id"`
	FriendshipData json.RawMessage `json:"friendship_data,omitempty"`
	UserData       *User           `json:"user_data,omitempty"`
	FriendData     *User           `json:"friend_data,omitempty"`
}
