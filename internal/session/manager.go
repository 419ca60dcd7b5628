package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State of one interview session.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingPresence State = "awaiting_presence"
	StateGreeting         State = "greeting"
	StateAskingQuestion   State = "asking_question"
	StateClosing          State = "closing"
	StateGeneratingLyrics State = "generating_lyrics"
	StateGeneratingMusic  State = "generating_music"
	StateComplete         State = "complete"
	StateFailed           State = "failed"
)

// Terminal reports whether no further transition happens for s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

var ErrNotFound = errors.New("session not found")

// Session is one end-to-end interview-to-song interaction tied to one live
// connection. Answers are private to the session; answer i corresponds to
// question i and len(Answers) always equals QuestionIndex.
type Session struct {
	ID             string    `json:"session_id"`
	State          State     `json:"state"`
	QuestionIndex  int       `json:"question_index"`
	Answers        []string  `json:"answers"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create registers a fresh session for one connection.
func (m *Manager) Create() *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		State:          StateIdle,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return clone(s)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// SetState moves the session to next. Transitions out of a terminal state
// are refused.
func (m *Manager) SetState(sessionID string, next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.State.Terminal() {
		return errors.New("session already terminal")
	}
	s.State = next
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// AppendAnswer records the reply to the current question and advances the
// question cursor, keeping len(Answers) == QuestionIndex.
func (m *Manager) AppendAnswer(sessionID, answer string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	s.Answers = append(s.Answers, answer)
	s.QuestionIndex = len(s.Answers)
	s.LastActivityAt = time.Now().UTC()
	return s.QuestionIndex, nil
}

// AnswersSnapshot returns an immutable copy for the generation pipeline.
func (m *Manager) AnswersSnapshot(sessionID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]string, len(s.Answers))
	copy(out, s.Answers)
	return out, nil
}

// End drops the session; answers are discarded with it.
func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.State.Terminal() {
		s.State = StateFailed
	}
	s.LastActivityAt = time.Now().UTC()
	out := clone(s)
	delete(m.sessions, sessionID)
	return out, nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if !s.State.Terminal() {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		if !s.State.Terminal() {
			s.State = StateFailed
		}
		expired = append(expired, clone(s))
		delete(m.sessions, id)
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	c.Answers = append([]string(nil), s.Answers...)
	return &c
}
