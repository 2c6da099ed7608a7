package messaging

import (
	"sync"

	"focusrelay/client/model"
)

// Store holds per-conversation message lists keyed by the peer user id,
// with an index of pending optimistic sends by temp id. Confirm and Fail
// are the only transitions out of the temporary state; both are no-ops for
// unknown temp ids so replayed notifications cannot corrupt state.
type Store struct {
	mu            sync.RWMutex
	conversations map[int64][]*model.ChatMessage
	pending       map[model.TempID]int64
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[int64][]*model.ChatMessage),
		pending:       make(map[model.TempID]int64),
	}
}

// Add appends a message to the conversation with peerID. Temporary messages
// are also indexed by temp id for later reconciliation.
func (s *Store) Add(peerID int64, msg *model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[peerID] = append(s.conversations[peerID], msg)
	if msg.IsTemporary && msg.TempID != "" {
		s.pending[msg.TempID] = peerID
	}
}

// Confirm swaps the permanent id into the temporary record in place and
// clears its temporary marker. Reports whether the temp id was present.
func (s *Store) Confirm(tempID model.TempID, permanentID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	peerID, ok := s.pending[tempID]
	if !ok {
		return false
	}
	delete(s.pending, tempID)
	for _, msg := range s.conversations[peerID] {
		if msg.TempID == tempID {
			msg.ID = permanentID
			msg.IsTemporary = false
			msg.TempID = ""
			return true
		}
	}
	return false
}

// Fail removes the temporary record entirely. Reports whether the temp id
// was present.
func (s *Store) Fail(tempID model.TempID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	peerID, ok := s.pending[tempID]
	if !ok {
		return false
	}
	delete(s.pending, tempID)
	msgs := s.conversations[peerID]
	for i, msg := range msgs {
		if msg.TempID == tempID {
			s.conversations[peerID] = append(msgs[:i], msgs[i+1:]...)
			return true
		}
	}
	return false
}

// Conversation returns a copy of the message list with peerID.
func (s *Store) Conversation(peerID int64) []model.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.conversations[peerID]
	out := make([]model.ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = *m
	}
	return out
}

// PendingCount reports how many optimistic sends are unresolved.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}
