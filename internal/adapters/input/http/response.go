package http

import (
	"net/http"

	"codex-gateway/internal/domain"
)

var (
	// Success response
	Success = Status{Code: http.StatusOK, Message: []string{"Success"}}
	// BadRequest response
	BadRequest = Status{Code: http.StatusBadRequest, Message: []string{"Sorry, Not responding because of incorrect syntax"}}
	// InternalServerError response
	InternalServerError = Status{Code: http.StatusInternalServerError, Message: []string{"Internal Server Error"}}
)

// ResponseBody struct - Generic HTTP response wrapper
type ResponseBody struct {
	Status Status      `json:"status,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// Status struct
type Status struct {
	Code    int      `json:"code,omitempty"`
	Message []string `json:"message,omitempty"`
}

// Error types used in OpenAI-style error bodies
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeServer         = "server_error"
	ErrorTypeUpstream       = "upstream_error"
)

type (
	// ErrorResponse struct - OpenAI-style error envelope
	ErrorResponse struct {
		Error ErrorBody `json:"error"`
	}

	// ErrorBody struct
	ErrorBody struct {
		Message string  `json:"message"`
		Type    string  `json:"type"`
		Code    *string `json:"code"`
	}

	// ModelListResponse struct - HTTP response DTO for /v1/models
	ModelListResponse struct {
		Object string             `json:"object"`
		Data   []domain.ModelInfo `json:"data"`
	}

	// ChatCompletionResponse struct - HTTP response DTO for a batch chat completion
	ChatCompletionResponse struct {
		ID      string       `json:"id"`
		Object  string       `json:"object"`
		Created int64        `json:"created"`
		Model   string       `json:"model"`
		Choices []ChatChoice `json:"choices"`
		Usage   Usage        `json:"usage"`
	}

	// ChatChoice struct
	ChatChoice struct {
		Index        int                 `json:"index"`
		Message      ChatMessageResponse `json:"message"`
		FinishReason string              `json:"finish_reason"`
	}

	// ChatMessageResponse struct
	ChatMessageResponse struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	// Usage struct - token counts are not reported by codex exec
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	}

	// ChatCompletionChunk struct - one SSE chunk of a streamed chat completion
	ChatCompletionChunk struct {
		ID      string        `json:"id"`
		Object  string        `json:"object"`
		Created int64         `json:"created"`
		Model   string        `json:"model"`
		Choices []ChunkChoice `json:"choices"`
	}

	// ChunkChoice struct
	ChunkChoice struct {
		Index        int        `json:"index"`
		Delta        ChunkDelta `json:"delta"`
		FinishReason *string    `json:"finish_reason"`
	}

	// ChunkDelta struct
	ChunkDelta struct {
		Role    string `json:"role,omitempty"`
		Content string `json:"content,omitempty"`
	}

	// ResponsesObject struct - HTTP response DTO for /v1/responses
	ResponsesObject struct {
		ID      string             `json:"id"`
		Object  string             `json:"object"`
		Created int64              `json:"created"`
		Model   string             `json:"model"`
		Status  string             `json:"status"`
		Output  []ResponsesMessage `json:"output"`
		Usage   ResponsesUsage     `json:"usage"`
	}

	// ResponsesMessage struct
	ResponsesMessage struct {
		ID      string                `json:"id"`
		Type    string                `json:"type"`
		Role    string                `json:"role"`
		Content []ResponsesOutputText `json:"content"`
	}

	// ResponsesOutputText struct
	ResponsesOutputText struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}

	// ResponsesUsage struct
	ResponsesUsage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	}

	// ResponsesDelta struct - payload of response.output_text.delta
	ResponsesDelta struct {
		ID    string `json:"id"`
		Delta string `json:"delta"`
	}

	// ResponsesTextDone struct - payload of response.output_text.done
	ResponsesTextDone struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}

	// ResponsesError struct - payload of response.error
	ResponsesError struct {
		ID    string    `json:"id"`
		Error ErrorBody `json:"error"`
	}
)

func newChatCompletion(id, model string, created int64, text string) ChatCompletionResponse {
	return ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: created,
		Model:   model,
		Choices: []ChatChoice{{
			Message:      ChatMessageResponse{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
	}
}

func newChatChunk(id, model string, created int64, delta ChunkDelta, finish *string) ChatCompletionChunk {
	return ChatCompletionChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []ChunkChoice{{Delta: delta, FinishReason: finish}},
	}
}

func newResponsesObject(id, msgID, model string, created int64, status, text string) ResponsesObject {
	obj := ResponsesObject{
		ID:      id,
		Object:  "response",
		Created: created,
		Model:   model,
		Status:  status,
		Output:  []ResponsesMessage{},
	}
	if status == "completed" {
		obj.Output = append(obj.Output, ResponsesMessage{
			ID:      msgID,
			Type:    "message",
			Role:    "assistant",
			Content: []ResponsesOutputText{{Type: "output_text", Text: text}},
		})
	}
	return obj
}
