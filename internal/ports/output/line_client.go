package output

import (
	"context"

	"codex-gateway/internal/domain"
)

// LineClient interface - Output port
// Defines what the application needs from LINE messaging platform
type LineClient interface {
	// ReplyMessage answers an event through its reply token
	ReplyMessage(ctx context.Context, request domain.LineReplyMessageRequest) (*domain.LineMessageResponse, error)

	// PushMessage sends messages to a user, group or room directly. Used when
	// the reply token has expired by the time codex finishes.
	PushMessage(ctx context.Context, request domain.LinePushMessageRequest) (*domain.LineMessageResponse, error)
}
