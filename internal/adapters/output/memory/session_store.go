package memory

import (
	"sync"
	"time"

	"codex-gateway/internal/domain"
	"codex-gateway/internal/ports/output"
)

// Compile-time check to ensure MemorySessionStore implements SessionStore interface
var _ output.SessionStore = (*MemorySessionStore)(nil)

// MemorySessionStore struct - Output adapter for in-memory session storage.
// Sessions live in a sync.Map keyed by conversation key; expired entries are
// removed lazily on read and by Sweep.
type MemorySessionStore struct {
	sessions sync.Map
	timeout  time.Duration
	maxTurns int
}

// NewMemorySessionStore creates a store whose sessions expire after timeout
// and keep at most maxTurns turns.
func NewMemorySessionStore(timeout time.Duration, maxTurns int) *MemorySessionStore {
	return &MemorySessionStore{
		timeout:  timeout,
		maxTurns: maxTurns,
	}
}

// GetTimeout returns the configured session timeout duration.
func (m *MemorySessionStore) GetTimeout() time.Duration {
	return m.timeout
}

// GetMaxTurns returns the configured maximum conversation turns.
func (m *MemorySessionStore) GetMaxTurns() int {
	return m.maxTurns
}

// NewSession creates an empty session with the store's limits. It is not
// stored until UpdateSession is called.
func (m *MemorySessionStore) NewSession(key string) *domain.ConversationSession {
	return domain.NewConversationSession(key, m.timeout, m.maxTurns)
}

// GetSession retrieves a live session by conversation key.
func (m *MemorySessionStore) GetSession(key string) (*domain.ConversationSession, error) {
	value, exists := m.sessions.Load(key)
	if !exists {
		return nil, nil
	}

	session, ok := value.(*domain.ConversationSession)
	if !ok || session.IsExpired() {
		m.sessions.CompareAndDelete(key, value)
		return nil, nil
	}

	session.LastAccessTime = time.Now()
	return session, nil
}

// UpdateSession creates or overwrites a session.
func (m *MemorySessionStore) UpdateSession(session *domain.ConversationSession) error {
	session.LastAccessTime = time.Now()
	m.sessions.Store(session.Key, session)
	return nil
}

// DeleteSession removes a session. Deleting a missing session is a no-op.
func (m *MemorySessionStore) DeleteSession(key string) error {
	m.sessions.Delete(key)
	return nil
}

// Sweep removes every expired session and returns how many were removed.
func (m *MemorySessionStore) Sweep() int {
	removed := 0
	m.sessions.Range(func(key, value any) bool {
		session, ok := value.(*domain.ConversationSession)
		if !ok || session.IsExpired() {
			if m.sessions.CompareAndDelete(key, value) {
				removed++
			}
		}
		return true
	})
	return removed
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemorySessionStore) Len() int {
	n := 0
	m.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
