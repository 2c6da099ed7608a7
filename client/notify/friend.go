package notify

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"focusrelay/client/model"
)

// Socket is the slice of the socket client these services use.
type Socket interface {
	Subscribe(channel string, h func(data json.RawMessage))
	Send(frame model.Frame) error
}

// FriendService turns friend-notifications broadcasts into typed callbacks.
// Events the current user sent, or that are addressed to someone else, are
// dropped.
type FriendService struct {
	sock   Socket
	userID int64
	log    *zap.Logger

	mu       sync.Mutex
	handlers map[string][]func(*model.FriendEvent)
}

func NewFriendService(sock Socket, userID int64, log *zap.Logger) *FriendService {
	return &FriendService{
		sock:     sock,
		userID:   userID,
		log:      log,
		handlers: make(map[string][]func(*model.FriendEvent)),
	}
}

func (s *FriendService) Init() {
	s.sock.Subscribe(model.ChannelFriends, s.handle)
}

// OnAction registers a callback for one friend action
// (request_sent, request_accepted, request_declined, friend_removed).
func (s *FriendService) OnAction(action string, f func(*model.FriendEvent)) {
	s.mu.Lock()
	s.handlers[action] = append(s.handlers[action], f)
	s.mu.Unlock()
}

func (s *FriendService) handle(data json.RawMessage) {
	var ev model.FriendEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.log.Warn("bad friend event", zap.Error(err))
		return
	}
	if ev.UserID == s.userID {
		return // our own action echoed back
	}
	if ev.FriendID != s.userID {
		return // addressed to someone else
	}

	s.mu.Lock()
	handlers := append(([]func(*model.FriendEvent))(nil), s.handlers[ev.Action]...)
	s.mu.Unlock()
	if len(handlers) == 0 {
		s.log.Debug("unhandled friend action", zap.String("action", ev.Action))
		return
	}
	for _, f := range handlers {
		f(&ev)
	}
}
