package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"focusrelay/client/model"
)

// inviteTTL matches the toast display window: once the toast is gone the
// invite cannot be accepted through this path anymore.
const inviteTTL = 30 * time.Second

var (
	ErrUnknownCall   = errors.New("notify: unknown call id")
	ErrInviteExpired = errors.New("notify: invite expired")
)

type invite struct {
	event     *model.CallEvent
	expiresAt time.Time
}

// VideoCallService turns video-calls broadcasts into typed callbacks and
// tracks pending invites so an accepted toast can hand meeting credentials
// back to the UI.
type VideoCallService struct {
	sock   Socket
	userID int64
	log    *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	pending   map[string]invite
	incoming  []func(*model.CallEvent)
	responses []func(*model.CallEvent)
}

func NewVideoCallService(sock Socket, userID int64, log *zap.Logger) *VideoCallService {
	return &VideoCallService{
		sock:    sock,
		userID:  userID,
		log:     log,
		now:     time.Now,
		pending: make(map[string]invite),
	}
}

func (s *VideoCallService) Init() {
	s.sock.Subscribe(model.ChannelVideoCalls, s.handle)
}

// OnIncoming registers a callback for incoming_call events.
func (s *VideoCallService) OnIncoming(f func(*model.CallEvent)) {
	s.mu.Lock()
	s.incoming = append(s.incoming, f)
	s.mu.Unlock()
}

// OnResponse registers a callback for call_accepted/call_declined/call_ended
// events (the inviter side).
func (s *VideoCallService) OnResponse(f func(*model.CallEvent)) {
	s.mu.Lock()
	s.responses = append(s.responses, f)
	s.mu.Unlock()
}

// Accept resolves a pending invite: it broadcasts the acceptance back to
// the inviter and returns what the UI needs to join the call. Accepting an
// unknown or expired invite fails.
func (s *VideoCallService) Accept(callID string) (*model.JoinInfo, error) {
	s.mu.Lock()
	inv, ok := s.pending[callID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrUnknownCall
	}
	if s.now().After(inv.expiresAt) {
		delete(s.pending, callID)
		s.mu.Unlock()
		return nil, ErrInviteExpired
	}
	delete(s.pending, callID)
	s.mu.Unlock()

	s.respond(model.CallAccepted, inv.event)
	return &model.JoinInfo{MeetingID: inv.event.MeetingID, Token: inv.event.Token}, nil
}

// Decline resolves a pending invite with a declined response.
func (s *VideoCallService) Decline(callID string) error {
	s.mu.Lock()
	inv, ok := s.pending[callID]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownCall
	}
	delete(s.pending, callID)
	s.mu.Unlock()

	s.respond(model.CallDeclined, inv.event)
	return nil
}

func (s *VideoCallService) respond(responseType string, ev *model.CallEvent) {
	var target int64
	if ev.FromUser != nil {
		target = ev.FromUser.ID
	}
	out := model.CallEvent{
		Type:         responseType,
		CallID:       ev.CallID,
		MeetingID:    ev.MeetingID,
		FromUser:     &model.User{ID: s.userID},
		TargetUserID: target,
	}
	frame := model.Frame{Type: model.FrameVideoCall, Channel: model.ChannelVideoCalls, Data: out}
	if err := s.sock.Send(frame); err != nil {
		s.log.Warn("call response broadcast failed",
			zap.String("callId", ev.CallID), zap.Error(err))
	}
}

func (s *VideoCallService) handle(data json.RawMessage) {
	var ev model.CallEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.log.Warn("bad call event", zap.Error(err))
		return
	}
	if ev.FromUser != nil && ev.FromUser.ID == s.userID {
		return // our own broadcast
	}
	if ev.TargetUserID != 0 && ev.TargetUserID != s.userID {
		return
	}

	switch ev.Type {
	case model.CallIncoming:
		s.mu.Lock()
		s.prune()
		s.pending[ev.CallID] = invite{event: &ev, expiresAt: s.now().Add(inviteTTL)}
		callbacks := append(([]func(*model.CallEvent))(nil), s.incoming...)
		s.mu.Unlock()
		for _, f := range callbacks {
			f(&ev)
		}
	case model.CallAccepted, model.CallDeclined, model.CallEnded:
		s.mu.Lock()
		if ev.Type == model.CallEnded {
			delete(s.pending, ev.CallID)
		}
		callbacks := append(([]func(*model.CallEvent))(nil), s.responses...)
		s.mu.Unlock()
		for _, f := range callbacks {
			f(&ev)
		}
	default:
		s.log.Debug("unhandled call event", zap.String("type", ev.Type))
	}
}

// prune drops expired invites; callers hold the lock.
func (s *VideoCallService) prune() {
	now := s.now()
	for id, inv := range s.pending {
		if now.After(inv.expiresAt) {
			delete(s.pending, id)
		}
	}
}
