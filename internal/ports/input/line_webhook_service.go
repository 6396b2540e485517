package input

import (
	"context"

	"codex-gateway/internal/domain"
)

// LineWebhookService interface - Input port (use case)
// Defines what the application can do with LINE webhook events
type LineWebhookService interface {
	// HandleWebhook answers the text messages of a webhook delivery
	HandleWebhook(ctx context.Context, request domain.LineWebhookRequest) error
}
