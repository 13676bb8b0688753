package routing

import (
	"context"
	"sync"
	"time"

	"github.com/soyeahso/cupid/internal/agent"
	"github.com/soyeahso/cupid/internal/domain"
)

// Session is the router's bookkeeping for one chat identity.
type Session struct {
	ID          string
	Key         domain.SessionKey
	DisplayName string
	replyTo     string
	conv        *agent.Conversation
	ctx         context.Context // cancelled when the session ends
	cancel      context.CancelFunc

	mu           sync.Mutex
	startedAt    time.Time
	lastAt       time.Time
	userMessages int
	botMessages  int
	ended        bool
	endReason    string
}

// Ended reports whether the session has ended.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Summary returns a snapshot of the session counters.
func (s *Session) Summary() domain.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionSummary{
		ID:            s.ID,
		Key:           s.Key,
		DisplayName:   s.DisplayName,
		StartedAt:     s.startedAt,
		LastMessageAt: s.lastAt,
		UserMessages:  s.userMessages,
		BotMessages:   s.botMessages,
		Ended:         s.ended,
		EndReason:     s.endReason,
	}
}

// userMessage counts one inbound message unless the session ended.
func (s *Session) userMessage(at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.userMessages++
	s.lastAt = at
	return true
}

func (s *Session) botMessage(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.botMessages++
	s.lastAt = at
}

// end flags the session ended. Only the first call returns true.
func (s *Session) end(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.ended = true
	s.endReason = reason
	return true
}
