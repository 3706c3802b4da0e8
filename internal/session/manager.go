package session

import (
	"errors"
	"sync"
)

// Manager keeps the live wizard instances, one per session id, each bound to
// the user who opened it. Sessions are never shared between users and hold
// no cross-session state.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*ownedSession
}

type ownedSession struct {
	userID  string
	session *FormSession
}

var ErrSessionNotFound = errors.New("session not found")

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*ownedSession)}
}

// Put registers a session for a user and returns its id.
func (m *Manager) Put(userID string, s *FormSession) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = &ownedSession{userID: userID, session: s}
	return s.ID()
}

// Get returns the session if it exists and belongs to the user.
func (m *Manager) Get(userID, sessionID string) (*FormSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned, ok := m.sessions[sessionID]
	if !ok || owned.userID != userID {
		return nil, ErrSessionNotFound
	}
	return owned.session, nil
}

// Drop removes a session, e.g. after cancel or submit.
func (m *Manager) Drop(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}
