package line

import (
	"context"
	"fmt"

	"codex-gateway/internal/domain"
	"codex-gateway/internal/ports/output"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/sirupsen/logrus"
)

// Compile-time check to ensure LineClientAdapter implements LineClient interface
var _ output.LineClient = (*LineClientAdapter)(nil)

// LineClientAdapter struct - Output adapter for LINE messaging platform
type LineClientAdapter struct {
	client *messaging_api.MessagingApiAPI
}

// NewLineClientAdapter func - Creates new LINE client adapter. endpoint
// overrides the API base URL when non-empty.
func NewLineClientAdapter(channelToken, endpoint string) (*LineClientAdapter, error) {
	var opts []messaging_api.MessagingApiAPIOption
	if endpoint != "" {
		opts = append(opts, messaging_api.WithEndpoint(endpoint))
	}
	client, err := messaging_api.NewMessagingApiAPI(channelToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE messaging API client: %w", err)
	}

	return &LineClientAdapter{
		client: client,
	}, nil
}

// ReplyMessage - Sends reply messages through a reply token
func (a *LineClientAdapter) ReplyMessage(ctx context.Context, request domain.LineReplyMessageRequest) (*domain.LineMessageResponse, error) {
	messages, err := toLineMessages(request.Messages)
	if err != nil {
		return nil, err
	}

	_, err = a.client.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: request.ReplyToken,
		Messages:   messages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send reply message: %w", err)
	}

	logrus.WithField("messages", len(messages)).Debug("Sent LINE reply")

	return &domain.LineMessageResponse{
		Status:  "success",
		Message: "Reply message sent successfully",
	}, nil
}

// PushMessage - Sends push messages to a user, group or room
func (a *LineClientAdapter) PushMessage(ctx context.Context, request domain.LinePushMessageRequest) (*domain.LineMessageResponse, error) {
	messages, err := toLineMessages(request.Messages)
	if err != nil {
		return nil, err
	}

	_, err = a.client.WithContext(ctx).PushMessage(&messaging_api.PushMessageRequest{
		To:       request.To,
		Messages: messages,
	}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to send push message: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"to":       request.To,
		"messages": len(messages),
	}).Debug("Sent LINE push message")

	return &domain.LineMessageResponse{
		Status:  "success",
		Message: "Push message sent successfully",
	}, nil
}

func toLineMessages(in []domain.LineOutgoingMessage) ([]messaging_api.MessageInterface, error) {
	messages := make([]messaging_api.MessageInterface, 0, len(in))
	for _, msg := range in {
		if msg.Type != domain.LineMessageTypeText || msg.Text == "" {
			logrus.Warnf("Skipping unsupported LINE message: type=%s", msg.Type)
			continue
		}
		messages = append(messages, &messaging_api.TextMessage{Text: msg.Text})
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("no valid messages to send")
	}
	return messages, nil
}
