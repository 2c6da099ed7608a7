package api

import (
	"context"
	"fmt"
	"net/http"

	"focusrelay/client/model"
)

type MessagesService struct {
	c *Client
}

type MessageCreate struct {
	FromUserID int64  `json:"from_user_id"`
	ToUserID   int64  `json:"to_user_id"`
	Message    string `json:"message"`
}

// Create persists a message and returns the stored record with its
// permanent id.
func (s *MessagesService) Create(ctx context.Context, req MessageCreate) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	if err := s.c.do(ctx, http.MethodPost, "/api/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Conversation lists the message history with another user.
func (s *MessagesService) Conversation(ctx context.Context, userID int64) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	if err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("/api/messages/conversation/%d", userID), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
