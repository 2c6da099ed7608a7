package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"focusrelay/client/model"
)

type UsersService struct {
	c *Client
}

func (s *UsersService) Get(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("/api/users/%d", id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UsersService) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := s.c.do(ctx, http.MethodGet, "/api/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UsersService) Search(ctx context.Context, query string) ([]model.User, error) {
	var users []model.User
	path := "/api/users?q=" + url.QueryEscape(query)
	if err := s.c.do(ctx, http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}
