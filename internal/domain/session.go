package domain

import "time"

// ConversationSession holds the recent chat turns of one LINE conversation.
type ConversationSession struct {
	Key            string        // conversation key, see LineSource.ConversationKey
	Messages       []ChatMessage // alternating user / assistant messages
	LastAccessTime time.Time
	timeout        time.Duration
	maxTurns       int
}

// NewConversationSession creates an empty session. A non-positive
// maxTurns keeps no history at all.
func NewConversationSession(key string, timeout time.Duration, maxTurns int) *ConversationSession {
	return &ConversationSession{
		Key:            key,
		Messages:       make([]ChatMessage, 0, 2*max(maxTurns, 0)),
		LastAccessTime: time.Now(),
		timeout:        timeout,
		maxTurns:       maxTurns,
	}
}

// IsExpired reports whether the session has been idle longer than its timeout.
// A non-positive timeout never expires.
func (s *ConversationSession) IsExpired() bool {
	if s.timeout <= 0 {
		return false
	}
	return time.Since(s.LastAccessTime) > s.timeout
}

// AddTurn appends a user message and the assistant reply, dropping the
// oldest turns beyond maxTurns.
func (s *ConversationSession) AddTurn(userMsg, assistantMsg ChatMessage) {
	if s.maxTurns <= 0 {
		return
	}
	s.Messages = append(s.Messages, userMsg, assistantMsg)
	if excess := len(s.Messages) - s.maxTurns*2; excess > 0 {
		s.Messages = append(s.Messages[:0], s.Messages[excess:]...)
	}
}

// Turns returns the number of complete turns held.
func (s *ConversationSession) Turns() int {
	return len(s.Messages) / 2
}

// Clear forgets the history but keeps the session alive.
func (s *ConversationSession) Clear() {
	s.Messages = s.Messages[:0]
}

// GetHistory returns a copy of the conversation history
func (s *ConversationSession) GetHistory() []ChatMessage {
	history := make([]ChatMessage, len(s.Messages))
	copy(history, s.Messages)
	return history
}
