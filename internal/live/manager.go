package live

import (
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ashureev/agent-supervisor/internal/metrics"
)

// SessionManager tracks the open live sessions.
type SessionManager struct {
	mu      sync.RWMutex
	active  map[string]*Session
	metrics *metrics.Metrics
}

// NewSessionManager creates a new session manager. m may be nil.
func NewSessionManager(m *metrics.Metrics) *SessionManager {
	return &SessionManager{
		active:  make(map[string]*Session),
		metrics: m,
	}
}

// Get returns the session with id, or nil.
func (m *SessionManager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[id]
}

// Count returns the number of registered sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Register adds a session.
func (m *SessionManager) Register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.active[s.ID()]
	switch {
	case exists && existing != s:
		existing.Close()
	case !exists && m.metrics != nil:
		m.metrics.LiveConnections.Inc()
	}
	m.active[s.ID()] = s
	slog.Info("Live session registered", "session_id", s.ID())
}

// Unregister removes a session if it is still the registered one for its id.
func (m *SessionManager) Unregister(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.active[s.ID()]; exists && current == s {
		delete(m.active, s.ID())
		if m.metrics != nil {
			m.metrics.LiveConnections.Dec()
		}
		slog.Info("Live session unregistered", "session_id", s.ID())
	}
}

// Broadcast sends frame to every registered session and returns how many
// sessions accepted it.
func (m *SessionManager) Broadcast(typ FrameType, frame any) int {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.active))
	for _, s := range m.active {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	var (
		g         errgroup.Group
		mu        sync.Mutex
		delivered int
	)
	for _, s := range sessions {
		g.Go(func() error {
			if s.Send(typ, frame) {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return delivered
}

// CloseAll closes and forgets every session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.active {
		s.Close()
		delete(m.active, id)
		if m.metrics != nil {
			m.metrics.LiveConnections.Dec()
		}
	}
	slog.Info("Live sessions closed")
}
