package output

import "codex-gateway/internal/domain"

// SessionStore interface - Output port
// Keeps conversation history per LINE conversation. Implementations must be
// safe for concurrent use.
type SessionStore interface {
	// GetSession returns the live session for key, or nil when it does not
	// exist or has expired. Expired sessions are removed.
	GetSession(key string) (*domain.ConversationSession, error)

	// NewSession creates an empty session using the store's limits.
	NewSession(key string) *domain.ConversationSession

	// UpdateSession stores the session and refreshes its access time.
	UpdateSession(session *domain.ConversationSession) error

	// DeleteSession removes a session. Deleting a missing session is not an error.
	DeleteSession(key string) error
}
