package domain

// DTOs (Data Transfer Objects) - Domain layer request/response structures

type (
	// LineWebhookRequest struct - Domain LINE webhook request DTO
	LineWebhookRequest struct {
		Events []LineWebhookEvent
	}

	// LineReplyMessageRequest struct - Domain LINE reply message request DTO
	LineReplyMessageRequest struct {
		ReplyToken string
		Messages   []LineOutgoingMessage
	}

	// LinePushMessageRequest struct - Domain LINE push message request DTO
	LinePushMessageRequest struct {
		To       string
		Messages []LineOutgoingMessage
	}

	// LineOutgoingMessage struct - Domain LINE outgoing message DTO
	LineOutgoingMessage struct {
		Type LineMessageType
		Text string
	}

	// LineMessageResponse struct - Domain LINE API response DTO
	LineMessageResponse struct {
		Status  string
		Message string
	}

	// HealthStatus struct - Domain health report DTO
	HealthStatus struct {
		Status      string `json:"status"`
		MaxParallel int    `json:"max_parallel"`
		Running     int    `json:"running"`
		Waiting     int    `json:"waiting"`
		Accepting   bool   `json:"accepting"`
	}

	// AdmissionStats struct - snapshot of the admission controller
	AdmissionStats struct {
		Limit     int
		Running   int
		Waiting   int
		Accepting bool
	}
)
