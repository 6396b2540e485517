package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"codex-gateway/internal/domain"
	"codex-gateway/internal/ports/input"
	"codex-gateway/internal/ports/output"

	"github.com/sirupsen/logrus"
)

// Compile-time check to ensure LineWebhookService implements the input port
var _ input.LineWebhookService = (*LineWebhookService)(nil)

const (
	lineHelpText = "Send any message and codex will answer it.\n\n" +
		"Commands:\n/help - Show this message\n/clear - Forget this conversation"
	lineWelcomeText = "Hi! Messages sent here are answered by codex.\n\nType /help to see available commands."
	lineBusyText    = "Codex is busy right now. Please try again in a moment."
	lineEmptyText   = "(codex returned no output)"
)

// LineWebhookService struct - Application service answering LINE chats with codex
type LineWebhookService struct {
	lineClient  output.LineClient
	sessions    output.SessionStore
	completions input.CompletionService
	ids         *domain.IDGenerator
	options     domain.ExecutionOptions
	timeout     time.Duration
}

// NewLineWebhookService func - Creates new LINE webhook service. Every
// conversation runs with the same execution options and timeout.
func NewLineWebhookService(
	lineClient output.LineClient,
	sessions output.SessionStore,
	completions input.CompletionService,
	options domain.ExecutionOptions,
	timeout time.Duration,
) *LineWebhookService {
	return &LineWebhookService{
		lineClient:  lineClient,
		sessions:    sessions,
		completions: completions,
		ids:         domain.NewIDGenerator("line"),
		options:     options,
		timeout:     timeout,
	}
}

// HandleWebhook func - Use case: answer every event of a webhook delivery.
// Events are handled in order; the first error is returned after all
// events have been attempted.
func (s *LineWebhookService) HandleWebhook(ctx context.Context, request domain.LineWebhookRequest) error {
	var errs []error
	for _, event := range request.Events {
		log := logrus.WithFields(logrus.Fields{
			"event":  event.Type,
			"source": event.Source.Type,
			"key":    event.Source.ConversationKey(),
		})
		log.Info("Received LINE event")

		var err error
		switch event.Type {
		case domain.LineEventTypeMessage:
			err = s.handleMessageEvent(ctx, event)
		case domain.LineEventTypeFollow:
			err = s.handleFollowEvent(ctx, event)
		case domain.LineEventTypeUnfollow:
			err = s.sessions.DeleteSession(event.Source.ConversationKey())
		default:
			log.Debug("Ignoring LINE event")
		}
		if err != nil {
			log.WithError(err).Error("Failed to handle LINE event")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *LineWebhookService) handleMessageEvent(ctx context.Context, event domain.LineWebhookEvent) error {
	text, ok := event.TextMessage()
	if !ok {
		return nil
	}

	var reply string
	if strings.HasPrefix(text, "/") {
		reply = s.handleCommand(text, event.Source.ConversationKey())
	} else {
		reply = s.answer(ctx, event.Source.ConversationKey(), text)
	}
	return s.deliver(ctx, event, reply)
}

func (s *LineWebhookService) handleCommand(text, key string) string {
	command := strings.ToLower(strings.Fields(text)[0])
	switch command {
	case "/help":
		return lineHelpText
	case "/clear":
		if err := s.sessions.DeleteSession(key); err != nil {
			logrus.WithError(err).Warn("Failed to clear LINE session")
		}
		return "Conversation cleared."
	default:
		return fmt.Sprintf("Unknown command: %s\nType /help for available commands", command)
	}
}

// answer runs the message through codex with the conversation history.
func (s *LineWebhookService) answer(ctx context.Context, key, text string) string {
	session, err := s.sessions.GetSession(key)
	if err != nil {
		logrus.WithError(err).Warn("Failed to load LINE session, starting fresh")
	}
	if session == nil {
		session = s.sessions.NewSession(key)
	}

	userMsg := domain.ChatMessage{Role: domain.ChatMessageRoleUser, Content: text}
	prompt := BuildPrompt("", append(session.GetHistory(), userMsg))
	request := domain.NewExecutionRequest(s.ids.Next(), prompt, s.options, s.timeout)

	result, err := s.completions.Complete(ctx, request)
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindQueueTimeout, domain.KindRejected:
			return lineBusyText
		default:
			return "Sorry, codex could not be started."
		}
	}
	if !result.Succeeded() {
		return fmt.Sprintf("Sorry, codex failed: %s", result.Error)
	}

	answer := strings.TrimSpace(result.Text)
	if answer == "" {
		return lineEmptyText
	}

	session.AddTurn(userMsg, domain.ChatMessage{Role: domain.ChatMessageRoleAssistant, Content: answer})
	if err := s.sessions.UpdateSession(session); err != nil {
		logrus.WithError(err).Warn("Failed to store LINE session")
	}
	return answer
}

func (s *LineWebhookService) handleFollowEvent(ctx context.Context, event domain.LineWebhookEvent) error {
	return s.deliver(ctx, event, lineWelcomeText)
}

// deliver replies through the reply token, falling back to a push message
// when the token is missing or has expired while codex was running.
func (s *LineWebhookService) deliver(ctx context.Context, event domain.LineWebhookEvent, text string) error {
	messages := textMessages(text)

	if event.ReplyToken != "" {
		_, err := s.lineClient.ReplyMessage(ctx, domain.LineReplyMessageRequest{
			ReplyToken: event.ReplyToken,
			Messages:   messages,
		})
		if err == nil {
			return nil
		}
		logrus.WithError(err).Warn("LINE reply failed, falling back to push")
	}

	to := pushTarget(event.Source)
	if to == "" {
		return fmt.Errorf("no reply token or push target for LINE event")
	}
	if _, err := s.lineClient.PushMessage(ctx, domain.LinePushMessageRequest{To: to, Messages: messages}); err != nil {
		return fmt.Errorf("failed to send push message: %w", err)
	}
	return nil
}

func pushTarget(source domain.LineSource) string {
	switch source.Type {
	case domain.LineSourceTypeGroup:
		return source.GroupID
	case domain.LineSourceTypeRoom:
		return source.RoomID
	default:
		return source.UserID
	}
}

const (
	lineMaxTextRunes   = 5000
	lineMaxMessages    = 5
	lineTruncateMarker = "\n…(truncated)"
)

// textMessages splits text into LINE text messages within the platform
// limits of 5000 characters per message and 5 messages per request.
func textMessages(text string) []domain.LineOutgoingMessage {
	runes := []rune(text)
	var messages []domain.LineOutgoingMessage
	for len(runes) > 0 && len(messages) < lineMaxMessages {
		n := min(len(runes), lineMaxTextRunes)
		messages = append(messages, domain.LineOutgoingMessage{Type: domain.LineMessageTypeText, Text: string(runes[:n])})
		runes = runes[n:]
	}
	if len(runes) > 0 {
		last := &messages[len(messages)-1]
		keep := []rune(last.Text)
		marker := []rune(lineTruncateMarker)
		last.Text = string(keep[:len(keep)-len(marker)]) + lineTruncateMarker
	}
	if len(messages) == 0 {
		messages = append(messages, domain.LineOutgoingMessage{Type: domain.LineMessageTypeText, Text: lineEmptyText})
	}
	return messages
}
