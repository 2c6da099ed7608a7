package api

import (
	"context"
	"fmt"
	"net/http"

	"focusrelay/client/model"
)

type FriendsService struct {
	c *Client
}

type FriendRequest struct {
	FriendID int64 `json:"friend_id"`
}

func (s *FriendsService) List(ctx context.Context) ([]model.User, error) {
	var friends []model.User
	if err := s.c.do(ctx, http.MethodGet, "/api/friends", nil, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

func (s *FriendsService) Request(ctx context.Context, friendID int64) (*model.Friendship, error) {
	var fs model.Friendship
	if err := s.c.do(ctx, http.MethodPost, "/api/friends/request", FriendRequest{FriendID: friendID}, &fs); err != nil {
		return nil, err
	}
	return &fs, nil
}

func (s *FriendsService) Accept(ctx context.Context, friendshipID int64) (*model.Friendship, error) {
	var fs model.Friendship
	if err := s.c.do(ctx, http.MethodPost, fmt.Sprintf("/api/friends/%d/accept", friendshipID), nil, &fs); err != nil {
		return nil, err
	}
	return &fs, nil
}

func (s *FriendsService) Decline(ctx context.Context, friendshipID int64) error {
	return s.c.do(ctx, http.MethodPost, fmt.Sprintf("/api/friends/%d/decline", friendshipID), nil, nil)
}

func (s *FriendsService) Remove(ctx context.Context, friendshipID int64) error {
	return s.c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/friends/%d", friendshipID), nil, nil)
}
