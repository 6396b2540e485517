package http

import (
	"encoding/json"
	"fmt"
	"strings"

	"codex-gateway/internal/domain"

	"github.com/tidwall/gjson"
)

type (
	// ChatCompletionRequest struct - HTTP request DTO for /v1/chat/completions
	ChatCompletionRequest struct {
		Model       string               `json:"model" validate:"omitempty,max=200"`
		Messages    []ChatMessageRequest `json:"messages" validate:"required,min=1,dive"`
		Stream      bool                 `json:"stream"`
		Temperature *float64             `json:"temperature" validate:"omitempty,gte=0,lte=2"`
		MaxTokens   *int                 `json:"max_tokens" validate:"omitempty,gte=1"`
		XCodex      *XCodexOptions       `json:"x_codex"`
	}

	// ChatMessageRequest struct - one chat message; content is a string or a list of parts
	ChatMessageRequest struct {
		Role    string          `json:"role" validate:"required,oneof=system developer user assistant tool"`
		Content json.RawMessage `json:"content"`
	}

	// XCodexOptions struct - per-request codex overrides
	XCodexOptions struct {
		Sandbox         string `json:"sandbox" validate:"omitempty,oneof=read-only workspace-write danger-full-access"`
		ReasoningEffort string `json:"reasoning_effort" validate:"omitempty,oneof=minimal low medium high xhigh"`
		NetworkAccess   *bool  `json:"network_access"`
		HideReasoning   *bool  `json:"hide_reasoning"`
	}

	// ResponsesRequest struct - HTTP request DTO for /v1/responses
	ResponsesRequest struct {
		Model        string              `json:"model" validate:"omitempty,max=200"`
		Input        json.RawMessage     `json:"input" validate:"required"`
		Instructions string              `json:"instructions"`
		Stream       bool                `json:"stream"`
		Reasoning    *ResponsesReasoning `json:"reasoning"`
		XCodex       *XCodexOptions      `json:"x_codex"`
	}

	// ResponsesReasoning struct
	ResponsesReasoning struct {
		Effort string `json:"effort" validate:"omitempty,oneof=minimal low medium high xhigh"`
	}
)

// toDomain converts the chat request into the dialect-independent form.
func (r ChatCompletionRequest) toDomain(id string) domain.CompletionRequest {
	messages := make([]domain.ChatMessage, 0, len(r.Messages))
	for _, m := range r.Messages {
		messages = append(messages, domain.ChatMessage{
			Role:    domain.ChatMessageRole(m.Role),
			Content: contentText(gjson.ParseBytes(m.Content)),
		})
	}
	req := domain.CompletionRequest{ID: id, Model: r.Model, Messages: messages}
	r.XCodex.apply(&req)
	return req
}

// toDomain converts the responses request; input is normalized to messages.
func (r ResponsesRequest) toDomain(id string) (domain.CompletionRequest, error) {
	messages, err := normalizeInput(gjson.ParseBytes(r.Input))
	if err != nil {
		return domain.CompletionRequest{}, err
	}
	req := domain.CompletionRequest{
		ID:           id,
		Model:        r.Model,
		Messages:     messages,
		Instructions: r.Instructions,
	}
	r.XCodex.apply(&req)
	if r.Reasoning != nil && r.Reasoning.Effort != "" {
		req.ReasoningEffort = r.Reasoning.Effort
	}
	return req, nil
}

func (o *XCodexOptions) apply(req *domain.CompletionRequest) {
	if o == nil {
		return
	}
	req.Sandbox = o.Sandbox
	req.ReasoningEffort = o.ReasoningEffort
	req.NetworkAccess = o.NetworkAccess
	req.HideReasoning = o.HideReasoning
}

// contentText reduces message content to text. Strings are used as is,
// lists keep their text parts joined by a space, objects use "text".
func contentText(content gjson.Result) string {
	switch {
	case content.Type == gjson.String:
		return content.Str
	case content.IsArray():
		var parts []string
		content.ForEach(func(_, part gjson.Result) bool {
			if part.Type == gjson.String {
				parts = append(parts, part.Str)
				return true
			}
			if text := part.Get("text"); text.Type == gjson.String && isTextPart(part.Get("type").String()) {
				parts = append(parts, text.Str)
			}
			return true
		})
		return strings.Join(parts, " ")
	case content.IsObject():
		if text := content.Get("text"); text.Type == gjson.String {
			return text.Str
		}
	}
	return ""
}

func isTextPart(kind string) bool {
	switch kind {
	case "", "text", "input_text", "output_text":
		return true
	default:
		return false
	}
}

// normalizeInput accepts the Responses API input shapes: a string, a list
// of content parts, a list of role/content messages, or a list of strings.
func normalizeInput(input gjson.Result) ([]domain.ChatMessage, error) {
	if input.Type == gjson.String {
		return []domain.ChatMessage{{Role: domain.ChatMessageRoleUser, Content: input.Str}}, nil
	}
	if !input.IsArray() {
		return nil, fmt.Errorf("%w: unsupported input format for Responses API", domain.ErrInvalidRequest)
	}

	items := input.Array()
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: input is empty", domain.ErrInvalidRequest)
	}

	first := items[0]
	if first.IsObject() && first.Get("type").Exists() && !first.Get("role").Exists() {
		return []domain.ChatMessage{{Role: domain.ChatMessageRoleUser, Content: contentText(input)}}, nil
	}

	if all(items, func(item gjson.Result) bool {
		return item.IsObject() && item.Get("role").Exists() && item.Get("content").Exists()
	}) {
		messages := make([]domain.ChatMessage, 0, len(items))
		for _, item := range items {
			messages = append(messages, domain.ChatMessage{
				Role:    domain.ChatMessageRole(item.Get("role").String()),
				Content: contentText(item.Get("content")),
			})
		}
		return messages, nil
	}

	if all(items, func(item gjson.Result) bool { return item.Type == gjson.String }) {
		var b strings.Builder
		for _, item := range items {
			b.WriteString(item.Str)
		}
		return []domain.ChatMessage{{Role: domain.ChatMessageRoleUser, Content: b.String()}}, nil
	}

	return nil, fmt.Errorf("%w: unsupported input format for Responses API", domain.ErrInvalidRequest)
}

func all(items []gjson.Result, pred func(gjson.Result) bool) bool {
	for _, item := range items {
		if !pred(item) {
			return false
		}
	}
	return true
}
