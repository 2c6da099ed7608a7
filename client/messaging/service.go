package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"focusrelay/client/api"
	"focusrelay/client/model"
)

const persistTimeout = 10 * time.Second

// Socket is the slice of the socket client the service uses. Tests inject
// fakes.
type Socket interface {
	Subscribe(channel string, h func(data json.RawMessage))
	Send(frame model.Frame) error
}

// Service makes sending feel instantaneous: the message is inserted into
// local state and echoed through the relay immediately, while the real
// persistence call runs out of band. The temp id is swapped for the
// permanent id on success and the record is rolled back on failure.
// Failure is terminal per message; nothing is retried.
type Service struct {
	sock   Socket
	api    *api.Client
	store  *Store
	userID int64
	log    *zap.Logger

	mu        sync.Mutex
	openChats map[int64]struct{}
	users     map[int64]*model.User
	toasts    []func(from *model.User, msg *model.ChatMessage)
	failures  []func(model.TempID)
}

func NewService(sock Socket, apiClient *api.Client, userID int64, log *zap.Logger) *Service {
	return &Service{
		sock:      sock,
		api:       apiClient,
		store:     NewStore(),
		userID:    userID,
		log:       log,
		openChats: make(map[int64]struct{}),
		users:     make(map[int64]*model.User),
	}
}

// Init wires the service to the relay. Separate from construction so the
// caller controls when subscriptions start.
func (s *Service) Init() {
	s.sock.Subscribe(model.ChannelMessages, s.handleEvent)
}

// Store exposes the conversation state for the UI layer.
func (s *Service) Store() *Store {
	return s.store
}

// OnToast registers a callback for inbound-message notifications that
// survive suppression.
func (s *Service) OnToast(f func(from *model.User, msg *model.ChatMessage)) {
	s.mu.Lock()
	s.toasts = append(s.toasts, f)
	s.mu.Unlock()
}

// OnSendFailure registers a callback invoked once per failed send.
func (s *Service) OnSendFailure(f func(model.TempID)) {
	s.mu.Lock()
	s.failures = append(s.failures, f)
	s.mu.Unlock()
}

// SetChatOpen marks the conversation with userID as on screen, suppressing
// its toasts.
func (s *Service) SetChatOpen(userID int64) {
	s.mu.Lock()
	s.openChats[userID] = struct{}{}
	s.mu.Unlock()
}

// SetChatClosed undoes SetChatOpen.
func (s *Service) SetChatClosed(userID int64) {
	s.mu.Lock()
	delete(s.openChats, userID)
	s.mu.Unlock()
}

// SendMessage inserts a temporary record, echoes it through the relay, and
// kicks off the persistence call. The returned temp id resolves via a
// message_updated or message_failed broadcast.
func (s *Service) SendMessage(req api.MessageCreate) model.TempID {
	tempID := model.NewTempID()
	msg := &model.ChatMessage{
		TempID:      tempID,
		FromUserID:  req.FromUserID,
		ToUserID:    req.ToUserID,
		Message:     req.Message,
		CreatedAt:   time.Now(),
		IsTemporary: true,
	}
	s.store.Add(req.ToUserID, msg)

	echo := *msg
	s.broadcast(model.FrameSendMessage, model.MessageEvent{Type: model.MessageReceived, Message: &echo})

	go s.persist(tempID, req)
	return tempID
}

func (s *Service) persist(tempID model.TempID, req api.MessageCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	created, err := s.api.Messages.Create(ctx, req)
	if err != nil {
		s.log.Warn("message persist failed", zap.String("tempId", string(tempID)), zap.Error(err))
		s.store.Fail(tempID)
		s.broadcast(model.FrameDirectMessage, model.MessageEvent{Type: model.MessageFailed, TempID: tempID})
		return
	}

	s.store.Confirm(tempID, created.ID)
	s.broadcast(model.FrameDirectMessage, model.MessageEvent{
		Type:    model.MessageUpdated,
		TempID:  tempID,
		ID:      created.ID,
		Message: created,
	})
}

func (s *Service) broadcast(frameType string, ev model.MessageEvent) {
	if err := s.sock.Send(model.Frame{Type: frameType, Channel: model.ChannelMessages, Data: ev}); err != nil {
		s.log.Warn("relay broadcast failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

func (s *Service) handleEvent(data json.RawMessage) {
	var ev model.MessageEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.log.Warn("bad message event", zap.Error(err))
		return
	}

	switch ev.Type {
	case model.MessageReceived:
		s.handleReceived(ev.Message)
	case model.MessageUpdated:
		if ev.TempID != "" {
			// Unknown temp ids are a no-op: our own update echoed back,
			// or a record another tab already resolved.
			s.store.Confirm(ev.TempID, ev.ID)
		}
	case model.MessageFailed:
		if ev.TempID != "" {
			s.store.Fail(ev.TempID)
		}
		s.mu.Lock()
		failures := append(([]func(model.TempID))(nil), s.failures...)
		s.mu.Unlock()
		for _, f := range failures {
			f(ev.TempID)
		}
	default:
		s.log.Debug("ignoring message event", zap.String("type", ev.Type))
	}
}

func (s *Service) handleReceived(msg *model.ChatMessage) {
	if msg == nil {
		return
	}
	if msg.FromUserID == s.userID {
		// Our own echo; SendMessage already put it in the store.
		return
	}
	s.store.Add(msg.FromUserID, msg)

	s.mu.Lock()
	_, open := s.openChats[msg.FromUserID]
	toasts := append(([]func(*model.User, *model.ChatMessage))(nil), s.toasts...)
	s.mu.Unlock()
	if open {
		return
	}

	from := s.userFor(msg.FromUserID)
	for _, f := range toasts {
		f(from, msg)
	}
}

// userFor resolves a user for notification rendering: memoized, with a
// placeholder fallback so a toast never fails to render.
func (s *Service) userFor(id int64) *model.User {
	s.mu.Lock()
	if u, ok := s.users[id]; ok {
		s.mu.Unlock()
		return u
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	u, err := s.api.Users.Get(ctx, id)
	if err != nil {
		s.log.Warn("user lookup failed", zap.Int64("user", id), zap.Error(err))
		u = model.PlaceholderUser(id)
	}

	s.mu.Lock()
	s.users[id] = u
	s.mu.Unlock()
	return u
}
