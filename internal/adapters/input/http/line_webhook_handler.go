package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"codex-gateway/internal/domain"
	"codex-gateway/internal/ports/input"

	"github.com/gofiber/fiber/v2"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// LineWebhookHandler struct - Primary/Driving adapter for LINE webhook
type LineWebhookHandler struct {
	ctx           context.Context
	service       input.LineWebhookService
	channelSecret string
}

// NewLineWebhookHandler func - Creates new LINE webhook handler. Events are
// answered in the background under ctx, since codex usually takes longer
// than LINE waits for the webhook response.
func NewLineWebhookHandler(ctx context.Context, service input.LineWebhookService, channelSecret string) *LineWebhookHandler {
	return &LineWebhookHandler{
		ctx:           ctx,
		service:       service,
		channelSecret: channelSecret,
	}
}

// HandleWebhook func - Handles incoming LINE webhook requests
// @Summary LINE Webhook
// @Description Handles webhook events from LINE Messaging API
// @Tags LINE
// @Accept application/json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /webhook/line [post]
func (h *LineWebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	var req http.Request
	if err := fasthttpadaptor.ConvertRequest(c.Context(), &req, true); err != nil {
		logrus.WithError(err).Error("LINE webhook request could not be converted")
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse("internal error", ErrorTypeServer, ""))
	}

	cb, err := webhook.ParseRequest(h.channelSecret, &req)
	if err != nil {
		code, message := "invalid_webhook_body", "webhook body is not a LINE callback"
		if errors.Is(err, webhook.ErrInvalidSignature) {
			code, message = "invalid_signature", err.Error()
		}
		logrus.WithFields(logrus.Fields{
			"code":  code,
			"bytes": len(c.Body()),
		}).WithError(err).Warn("LINE webhook rejected")
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse(message, ErrorTypeInvalidRequest, code))
	}

	events := make([]domain.LineWebhookEvent, 0, len(cb.Events))
	for _, event := range cb.Events {
		if converted := h.convertToDomainEvent(event); converted != nil {
			events = append(events, *converted)
		}
	}
	logrus.WithFields(logrus.Fields{
		"received": len(cb.Events),
		"accepted": len(events),
	}).Debug("LINE webhook received")

	// LINE expects the 200 long before codex answers
	if len(events) > 0 {
		go func(request domain.LineWebhookRequest) {
			if err := h.service.HandleWebhook(h.ctx, request); err != nil {
				logrus.WithError(err).Error("LINE webhook events failed")
			}
		}(domain.LineWebhookRequest{Events: events})
	}

	return c.Status(fiber.StatusOK).JSON(ResponseBody{Status: Success})
}

func (h *LineWebhookHandler) convertToDomainEvent(event webhook.EventInterface) *domain.LineWebhookEvent {
	switch e := event.(type) {
	case webhook.MessageEvent:
		return h.convertMessageEvent(e)
	case webhook.FollowEvent:
		return h.convertFollowEvent(e)
	case webhook.UnfollowEvent:
		return h.convertUnfollowEvent(e)
	default:
		logrus.WithField("event_type", fmt.Sprintf("%T", event)).Debug("Ignoring LINE event")
		return nil
	}
}

// convertMessageEvent - Converts message event
func (h *LineWebhookHandler) convertMessageEvent(event webhook.MessageEvent) *domain.LineWebhookEvent {
	domainEvent := &domain.LineWebhookEvent{
		ID:         event.WebhookEventId,
		Type:       domain.LineEventTypeMessage,
		Timestamp:  time.UnixMilli(event.Timestamp),
		ReplyToken: event.ReplyToken,
		Source:     h.convertSource(event.Source),
	}

	// Convert message based on type
	switch msg := event.Message.(type) {
	case webhook.TextMessageContent:
		domainEvent.Message = &domain.LineMessage{
			ID:   msg.Id,
			Type: domain.LineMessageTypeText,
			Text: msg.Text,
		}
	default:
		logrus.WithField("message_type", fmt.Sprintf("%T", msg)).Debug("Non-text LINE message")
		domainEvent.Message = &domain.LineMessage{Type: domain.LineMessageTypeOther}
	}

	return domainEvent
}

// convertFollowEvent - Converts follow event
func (h *LineWebhookHandler) convertFollowEvent(event webhook.FollowEvent) *domain.LineWebhookEvent {
	return &domain.LineWebhookEvent{
		Type:       domain.LineEventTypeFollow,
		ReplyToken: event.ReplyToken,
		Source:     h.convertSource(event.Source),
	}
}

// convertUnfollowEvent - Converts unfollow event
func (h *LineWebhookHandler) convertUnfollowEvent(event webhook.UnfollowEvent) *domain.LineWebhookEvent {
	return &domain.LineWebhookEvent{
		Type:   domain.LineEventTypeUnfollow,
		Source: h.convertSource(event.Source),
	}
}

// convertSource - Converts event source
func (h *LineWebhookHandler) convertSource(source webhook.SourceInterface) domain.LineSource {
	switch s := source.(type) {
	case webhook.UserSource:
		return domain.LineSource{
			Type:   domain.LineSourceTypeUser,
			UserID: s.UserId,
		}
	case webhook.GroupSource:
		return domain.LineSource{
			Type:    domain.LineSourceTypeGroup,
			UserID:  s.UserId,
			GroupID: s.GroupId,
		}
	case webhook.RoomSource:
		return domain.LineSource{
			Type:   domain.LineSourceTypeRoom,
			UserID: s.UserId,
			RoomID: s.RoomId,
		}
	default:
		return domain.LineSource{}
	}
}
