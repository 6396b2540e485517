package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"codex-gateway/internal/application"
	"codex-gateway/internal/domain"

	"github.com/gofiber/fiber/v2"
)

func setupApp(completions *MockCompletionService, stats *MockStats) *fiber.App {
	models := application.NewModelResolver("gpt-5", []string{"gpt-5", "o4-mini"})
	planner := application.NewRequestPlanner(models, 0, false)
	hdl := New(context.Background(), completions, models, planner, stats)

	app := fiber.New()
	app.Get("/health", hdl.HealthCheck)
	app.Get("/v1/models", hdl.ListModels)
	app.Post("/v1/chat/completions", hdl.ChatCompletions)
	app.Post("/v1/responses", hdl.Responses)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp.StatusCode, string(data)
}

func TestHealthCheck(t *testing.T) {
	stats := &MockStats{Value: domain.AdmissionStats{Limit: 2, Running: 1, Waiting: 3, Accepting: true}}
	app := setupApp(&MockCompletionService{}, stats)

	status, body := doJSON(t, app, "GET", "/health", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var resp struct {
		Data domain.HealthStatus `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if resp.Data.MaxParallel != 2 || resp.Data.Running != 1 || resp.Data.Waiting != 3 || resp.Data.Status != "ok" {
		t.Errorf("unexpected health %+v", resp.Data)
	}

	stats.Value.Accepting = false
	if status, _ := doJSON(t, app, "GET", "/health", ""); status != 503 {
		t.Errorf("expected 503 while shutting down, got %d", status)
	}
}

func TestListModels(t *testing.T) {
	app := setupApp(&MockCompletionService{}, &MockStats{})

	status, body := doJSON(t, app, "GET", "/v1/models", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var resp ModelListResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if resp.Object != "list" || len(resp.Data) == 0 || resp.Data[0].ID != "gpt-5" {
		t.Errorf("unexpected models %+v", resp)
	}
	found := false
	for _, m := range resp.Data {
		if m.ID == "gpt-5-high" {
			found = true
		}
	}
	if !found {
		t.Error("expected effort aliases to be listed")
	}
}

func TestChatCompletionsBatch(t *testing.T) {
	completions := &MockCompletionService{}
	app := setupApp(completions, &MockStats{})

	status, body := doJSON(t, app, "POST", "/v1/chat/completions", `{
		"model": "gpt-5-low",
		"messages": [
			{"role": "system", "content": "be brief"},
			{"role": "user", "content": [{"type": "text", "text": "hi"}, {"type": "image_url", "image_url": {"url": "x"}}]}
		],
		"x_codex": {"sandbox": "workspace-write", "network_access": true}
	}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if resp.Object != "chat.completion" || resp.Model != "gpt-5-low" || !strings.HasPrefix(resp.ID, "chatcmpl-") {
		t.Errorf("unexpected envelope %+v", resp)
	}
	if resp.Choices[0].Message.Content != "hello from codex" || resp.Choices[0].FinishReason != "stop" {
		t.Errorf("unexpected choice %+v", resp.Choices[0])
	}

	req := completions.last()
	if req.ID != resp.ID {
		t.Errorf("expected execution id %s, got %s", resp.ID, req.ID)
	}
	if req.Prompt != "be brief\n\nUser: hi\nAssistant:" {
		t.Errorf("unexpected prompt %q", req.Prompt)
	}
	if req.Options.Model != "gpt-5" || req.Options.ReasoningEffort != "low" || req.Options.Sandbox != "workspace-write" {
		t.Errorf("unexpected options %+v", req.Options)
	}
	if req.Options.NetworkAccess == nil || !*req.Options.NetworkAccess {
		t.Error("expected network access override")
	}
}

func TestChatCompletionsErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		complete func(context.Context, domain.ExecutionRequest) (*domain.FinalResult, error)
		status   int
		contains string
	}{
		{
			name:     "unknown model",
			body:     `{"model":"nope","messages":[{"role":"user","content":"hi"}]}`,
			status:   404,
			contains: `"code":"model_not_found"`,
		},
		{
			name:     "missing messages",
			body:     `{"model":"gpt-5"}`,
			status:   400,
			contains: "messages is required",
		},
		{
			name:     "bad effort",
			body:     `{"messages":[{"role":"user","content":"hi"}],"x_codex":{"reasoning_effort":"extreme"}}`,
			status:   400,
			contains: "x_codex.reasoning_effort must be one of",
		},
		{
			name:     "full access refused",
			body:     `{"messages":[{"role":"user","content":"hi"}],"x_codex":{"sandbox":"danger-full-access"}}`,
			status:   400,
			contains: "danger-full-access is disabled by server policy",
		},
		{
			name:     "malformed json",
			body:     `{"messages":`,
			status:   400,
			contains: "invalid JSON body",
		},
		{
			name: "queue timeout",
			body: `{"messages":[{"role":"user","content":"hi"}]}`,
			complete: func(context.Context, domain.ExecutionRequest) (*domain.FinalResult, error) {
				return nil, domain.NewExecutionError(domain.KindQueueTimeout, "", nil)
			},
			status:   503,
			contains: `"code":"queue_timeout"`,
		},
		{
			name: "upstream unauthorized",
			body: `{"messages":[{"role":"user","content":"hi"}]}`,
			complete: func(context.Context, domain.ExecutionRequest) (*domain.FinalResult, error) {
				return &domain.FinalResult{
					Status:     domain.StateFailed,
					ErrorKind:  domain.KindNonZeroExit,
					Error:      "401 Unauthorized",
					HTTPStatus: 401,
				}, nil
			},
			status:   401,
			contains: `"type":"upstream_error"`,
		},
		{
			name: "timed out",
			body: `{"messages":[{"role":"user","content":"hi"}]}`,
			complete: func(context.Context, domain.ExecutionRequest) (*domain.FinalResult, error) {
				return &domain.FinalResult{
					Status:     domain.StateTimedOut,
					ErrorKind:  domain.KindExecutionTimeout,
					Error:      "codex execution timed out after 1s",
					HTTPStatus: 504,
				}, nil
			},
			status:   504,
			contains: "timed out after 1s",
		},
		{
			name: "launch failure",
			body: `{"messages":[{"role":"user","content":"hi"}]}`,
			complete: func(context.Context, domain.ExecutionRequest) (*domain.FinalResult, error) {
				return nil, domain.NewExecutionError(domain.KindProcessLaunch, "", errors.New("no such file"))
			},
			status:   500,
			contains: `"code":"process_launch_failure"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(&MockCompletionService{CompleteFunc: tt.complete}, &MockStats{})
			status, body := doJSON(t, app, "POST", "/v1/chat/completions", tt.body)
			if status != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, status, body)
			}
			if !strings.Contains(body, tt.contains) {
				t.Errorf("expected body to contain %s, got %s", tt.contains, body)
			}
		})
	}
}

func sseData(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			out = append(out, strings.TrimPrefix(line, "data: "))
		}
	}
	return out
}

func sseEvents(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "event: ") {
			out = append(out, strings.TrimPrefix(line, "event: "))
		}
	}
	return out
}

func TestChatCompletionsStream(t *testing.T) {
	completions := &MockCompletionService{
		StreamFunc: func(ctx context.Context, request domain.ExecutionRequest) (<-chan domain.StreamEvent, error) {
			return eventChannel(
				domain.StreamEvent{Kind: domain.EventStarted},
				domain.StreamEvent{Kind: domain.EventDelta, Fragment: domain.TextFragment{Seq: 0, Text: "Hel"}},
				domain.StreamEvent{Kind: domain.EventDelta, Fragment: domain.TextFragment{Seq: 1, Text: ""}},
				domain.StreamEvent{Kind: domain.EventDelta, Fragment: domain.TextFragment{Seq: 2, Text: "lo"}},
				domain.StreamEvent{Kind: domain.EventDone, Text: "Hello"},
			), nil
		},
	}
	app := setupApp(completions, &MockStats{})

	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(`{"stream":true,"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("expected event stream, got %s", ct)
	}
	raw, _ := io.ReadAll(resp.Body)

	data := sseData(string(raw))
	if len(data) != 5 {
		t.Fatalf("expected role, 2 deltas, stop and DONE, got %d: %q", len(data), data)
	}
	if data[4] != "[DONE]" {
		t.Errorf("expected [DONE] last, got %s", data[4])
	}

	var text strings.Builder
	for _, d := range data[:4] {
		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(d), &chunk); err != nil {
			t.Fatalf("invalid chunk %s: %v", d, err)
		}
		if chunk.Object != "chat.completion.chunk" || chunk.Model != "gpt-5" {
			t.Errorf("unexpected chunk envelope %+v", chunk)
		}
		text.WriteString(chunk.Choices[0].Delta.Content)
	}
	if text.String() != "Hello" {
		t.Errorf("expected Hello, got %q", text.String())
	}
	if !strings.Contains(data[3], `"finish_reason":"stop"`) {
		t.Errorf("expected stop chunk, got %s", data[3])
	}
}

func TestChatCompletionsStreamError(t *testing.T) {
	completions := &MockCompletionService{
		StreamFunc: func(ctx context.Context, request domain.ExecutionRequest) (<-chan domain.StreamEvent, error) {
			return eventChannel(
				domain.StreamEvent{Kind: domain.EventStarted},
				domain.StreamEvent{Kind: domain.EventDelta, Fragment: domain.TextFragment{Text: "partial"}},
				domain.StreamEvent{Kind: domain.EventErrored, ErrorKind: domain.KindNonZeroExit, Message: "rate limit reached", HTTPStatus: 429},
			), nil
		},
	}
	app := setupApp(completions, &MockStats{})

	status, body := doJSON(t, app, "POST", "/v1/chat/completions", `{"stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	if status != 200 {
		t.Fatalf("expected 200 once streaming started, got %d", status)
	}
	data := sseData(body)
	if len(data) != 4 {
		t.Fatalf("expected 4 data lines, got %q", data)
	}
	var errResp ErrorResponse
	if err := json.Unmarshal([]byte(data[2]), &errResp); err != nil {
		t.Fatalf("invalid error chunk: %v", err)
	}
	if errResp.Error.Message != "rate limit reached" || errResp.Error.Type != ErrorTypeUpstream {
		t.Errorf("unexpected error chunk %+v", errResp.Error)
	}
	if data[3] != "[DONE]" {
		t.Errorf("expected [DONE] after the error, got %s", data[3])
	}
}

func TestChatCompletionsStreamNotAdmitted(t *testing.T) {
	completions := &MockCompletionService{
		StreamFunc: func(ctx context.Context, request domain.ExecutionRequest) (<-chan domain.StreamEvent, error) {
			return nil, domain.NewExecutionError(domain.KindRejected, "", nil)
		},
	}
	app := setupApp(completions, &MockStats{})

	status, body := doJSON(t, app, "POST", "/v1/chat/completions", `{"stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	if status != 503 {
		t.Errorf("expected 503, got %d", status)
	}
	if !strings.Contains(body, `"code":"rejected"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestResponsesBatch(t *testing.T) {
	completions := &MockCompletionService{}
	app := setupApp(completions, &MockStats{})

	status, body := doJSON(t, app, "POST", "/v1/responses", `{
		"model": "o4-mini",
		"instructions": "answer in french",
		"input": [{"type": "input_text", "text": "hello"}],
		"reasoning": {"effort": "high"}
	}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var resp ResponsesObject
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if resp.Object != "response" || resp.Status != "completed" || !strings.HasPrefix(resp.ID, "resp_") {
		t.Errorf("unexpected envelope %+v", resp)
	}
	if len(resp.Output) != 1 || resp.Output[0].Content[0].Text != "hello from codex" || resp.Output[0].Content[0].Type != "output_text" {
		t.Errorf("unexpected output %+v", resp.Output)
	}

	req := completions.last()
	if req.Prompt != "answer in french\n\nUser: hello\nAssistant:" {
		t.Errorf("unexpected prompt %q", req.Prompt)
	}
	if req.Options.Model != "o4-mini" || req.Options.ReasoningEffort != "high" {
		t.Errorf("unexpected options %+v", req.Options)
	}
}

func TestResponsesInvalidInput(t *testing.T) {
	app := setupApp(&MockCompletionService{}, &MockStats{})

	status, body := doJSON(t, app, "POST", "/v1/responses", `{"input": 42}`)
	if status != 400 {
		t.Errorf("expected 400, got %d", status)
	}
	if !strings.Contains(body, "unsupported input format") {
		t.Errorf("unexpected body %s", body)
	}
}

func TestResponsesStream(t *testing.T) {
	completions := &MockCompletionService{
		StreamFunc: func(ctx context.Context, request domain.ExecutionRequest) (<-chan domain.StreamEvent, error) {
			return eventChannel(
				domain.StreamEvent{Kind: domain.EventStarted},
				domain.StreamEvent{Kind: domain.EventDelta, Fragment: domain.TextFragment{Seq: 0, Text: "a"}},
				domain.StreamEvent{Kind: domain.EventDelta, Fragment: domain.TextFragment{Seq: 1, Text: "b"}},
				domain.StreamEvent{Kind: domain.EventDone, Text: "ab"},
			), nil
		},
	}
	app := setupApp(completions, &MockStats{})

	status, body := doJSON(t, app, "POST", "/v1/responses", `{"stream":true,"input":"hi"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}

	want := []string{
		"response.created",
		"response.output_text.delta",
		"response.output_text.delta",
		"response.output_text.done",
		"response.completed",
	}
	got := sseEvents(body)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected events %v, got %v", want, got)
	}

	data := sseData(body)
	if data[len(data)-1] != "[DONE]" {
		t.Errorf("expected [DONE] last, got %s", data[len(data)-1])
	}
	var completed ResponsesObject
	if err := json.Unmarshal([]byte(data[4]), &completed); err != nil {
		t.Fatalf("invalid completed event: %v", err)
	}
	if completed.Status != "completed" || completed.Output[0].Content[0].Text != "ab" {
		t.Errorf("unexpected completed object %+v", completed)
	}
}

func TestResponsesStreamError(t *testing.T) {
	completions := &MockCompletionService{
		StreamFunc: func(ctx context.Context, request domain.ExecutionRequest) (<-chan domain.StreamEvent, error) {
			return eventChannel(
				domain.StreamEvent{Kind: domain.EventStarted},
				domain.StreamEvent{Kind: domain.EventErrored, ErrorKind: domain.KindExecutionTimeout, Message: "codex execution timed out after 1s"},
			), nil
		},
	}
	app := setupApp(completions, &MockStats{})

	_, body := doJSON(t, app, "POST", "/v1/responses", `{"stream":true,"input":"hi"}`)
	got := sseEvents(body)
	if len(got) != 2 || got[1] != "response.error" {
		t.Fatalf("expected response.error, got %v", got)
	}
	if !strings.Contains(body, "timed out after 1s") {
		t.Errorf("expected error message in %s", body)
	}
}

func TestChatCompletionsNonLocalProvider(t *testing.T) {
	models := application.NewModelResolver("gpt-5", []string{"gpt-5"})
	guard := &MockProviderGuard{Err: fmt.Errorf("%w: provider=%q", domain.ErrNonLocalProvider, "openai")}
	planner := application.NewRequestPlanner(models, 0, false).RequireLocalProvider(guard)
	completions := &MockCompletionService{}
	hdl := New(context.Background(), completions, models, planner, &MockStats{})

	app := fiber.New()
	app.Post("/v1/chat/completions", hdl.ChatCompletions)

	status, body := doJSON(t, app, "POST", "/v1/chat/completions", `{"messages":[{"role":"user","content":"hi"}]}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d: %s", status, body)
	}
	if !strings.Contains(body, `"code":"non_local_provider"`) {
		t.Errorf("expected non_local_provider code, got %s", body)
	}
}
