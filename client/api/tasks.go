package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"focusrelay/client/model"
)

type TasksService struct {
	c *Client
}

type TaskCreate struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

type TaskUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func (s *TasksService) List(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := s.c.do(ctx, http.MethodGet, "/api/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *TasksService) Create(ctx context.Context, req TaskCreate) (*model.Task, error) {
	var task model.Task
	if err := s.c.do(ctx, http.MethodPost, "/api/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TasksService) Update(ctx context.Context, id int64, req TaskUpdate) (*model.Task, error) {
	var task model.Task
	if err := s.c.do(ctx, http.MethodPut, fmt.Sprintf("/api/tasks/%d", id), req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TasksService) Delete(ctx context.Context, id int64) error {
	return s.c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", id), nil, nil)
}
