package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Client is the shared base for the per-resource REST wrappers. It owns the
// backend base URL and the bearer token; the wrappers hold no state of
// their own.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger

	mu    sync.RWMutex
	token string

	Tasks    *TasksService
	Users    *UsersService
	Friends  *FriendsService
	Groups   *GroupsService
	Messages *MessagesService
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, custom
// timeouts).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(base string, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		base: base,
		http: &http.Client{Timeout: 15 * time.Second},
		log:  log,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Tasks = &TasksService{c: c}
	c.Users = &UsersService{c: c}
	c.Friends = &FriendsService{c: c}
	c.Groups = &GroupsService{c: c}
	c.Messages = &MessagesService{c: c}
	return c
}

// SetToken installs the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "%s %s: encode body", method, path)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return errors.Wrapf(err, "%s %s: build request", method, path)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(err, "%s %s: decode response", method, path)
		}
	}
	return nil
}
