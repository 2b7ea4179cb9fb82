package assistant

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/comigor/ecofarmcast-go/internal/gateway"
	"github.com/comigor/ecofarmcast-go/internal/logger"
)

// ErrSessionNotFound is returned for ids the manager does not know.
var ErrSessionNotFound = errors.New("session not found")

// Manager owns the live sessions, keyed by UUID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	gen      gateway.Generator
	opts     Options
}

// NewManager returns an empty manager; every session it creates shares gen
// and opts.
func NewManager(gen gateway.Generator, opts Options) *Manager {
	return &Manager{sessions: make(map[string]*Session), gen: gen, opts: opts}
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := NewSession(uuid.NewString(), m.gen, m.opts)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()

	logger.L.Info("session created", "session", s.ID(), "sessions", n)
	return s
}

// Get returns the session with id, or ErrSessionNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete forgets a session. Its archived history stays.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	logger.L.Info("session deleted", "session", id)
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
