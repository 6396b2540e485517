package domain

import (
	"strings"
	"time"
)

// LineEventType represents the type of webhook event from LINE
type LineEventType string

const (
	// LineEventTypeMessage - Message event
	LineEventTypeMessage LineEventType = "message"
	// LineEventTypeFollow - Follow event
	LineEventTypeFollow LineEventType = "follow"
	// LineEventTypeUnfollow - Unfollow event
	LineEventTypeUnfollow LineEventType = "unfollow"
	// LineEventTypeOther - any event the gateway does not answer
	LineEventTypeOther LineEventType = "other"
)

// LineMessageType represents the type of message
type LineMessageType string

const (
	// LineMessageTypeText - Text message
	LineMessageTypeText LineMessageType = "text"
	// LineMessageTypeOther - non-text content, which is not forwarded to codex
	LineMessageTypeOther LineMessageType = "other"
)

// LineSourceType represents the source type of the event
type LineSourceType string

const (
	LineSourceTypeUser  LineSourceType = "user"
	LineSourceTypeGroup LineSourceType = "group"
	LineSourceTypeRoom  LineSourceType = "room"
)

// LineWebhookEvent represents a LINE webhook event (domain entity)
type LineWebhookEvent struct {
	ID         string
	Type       LineEventType
	Timestamp  time.Time
	Source     LineSource
	ReplyToken string
	Message    *LineMessage
}

// TextMessage returns the trimmed text of a text message event.
func (e LineWebhookEvent) TextMessage() (string, bool) {
	if e.Type != LineEventTypeMessage || e.Message == nil || e.Message.Type != LineMessageTypeText {
		return "", false
	}
	text := strings.TrimSpace(e.Message.Text)
	return text, text != ""
}

// LineSource represents the source of the event
type LineSource struct {
	Type    LineSourceType
	UserID  string
	GroupID string
	RoomID  string
}

// ConversationKey identifies the conversation an event belongs to. Group
// and room chats share one history; one-to-one chats are keyed by user.
func (s LineSource) ConversationKey() string {
	switch s.Type {
	case LineSourceTypeGroup:
		return "group:" + s.GroupID
	case LineSourceTypeRoom:
		return "room:" + s.RoomID
	default:
		return "user:" + s.UserID
	}
}

// LineMessage represents a message from LINE
type LineMessage struct {
	ID   string
	Type LineMessageType
	Text string
}
