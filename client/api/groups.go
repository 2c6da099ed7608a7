package api

import (
	"context"
	"fmt"
	"net/http"

	"focusrelay/client/model"
)

type GroupsService struct {
	c *Client
}

type GroupCreate struct {
	Name string `json:"name"`
}

func (s *GroupsService) List(ctx context.Context) ([]model.Group, error) {
	var groups []model.Group
	if err := s.c.do(ctx, http.MethodGet, "/api/groups", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *GroupsService) Create(ctx context.Context, req GroupCreate) (*model.Group, error) {
	var group model.Group
	if err := s.c.do(ctx, http.MethodPost, "/api/groups", req, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *GroupsService) Join(ctx context.Context, groupID int64) error {
	return s.c.do(ctx, http.MethodPost, fmt.Sprintf("/api/groups/%d/join", groupID), nil, nil)
}

func (s *GroupsService) Leave(ctx context.Context, groupID int64) error {
	return s.c.do(ctx, http.MethodPost, fmt.Sprintf("/api/groups/%d/leave", groupID), nil, nil)
}
