package http

import (
	"context"
	"sync"

	"codex-gateway/internal/domain"
)

// MockCompletionService implements input.CompletionService for testing
type MockCompletionService struct {
	CompleteFunc func(ctx context.Context, request domain.ExecutionRequest) (*domain.FinalResult, error)
	StreamFunc   func(ctx context.Context, request domain.ExecutionRequest) (<-chan domain.StreamEvent, error)

	mu       sync.Mutex
	Requests []domain.ExecutionRequest
}

func (m *MockCompletionService) Complete(ctx context.Context, request domain.ExecutionRequest) (*domain.FinalResult, error) {
	m.record(request)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, request)
	}
	return &domain.FinalResult{RequestID: request.ID, Status: domain.StateCompleted, Text: "hello from codex"}, nil
}

func (m *MockCompletionService) Stream(ctx context.Context, request domain.ExecutionRequest) (<-chan domain.StreamEvent, error) {
	m.record(request)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, request)
	}
	return eventChannel(
		domain.StreamEvent{Kind: domain.EventStarted},
		domain.StreamEvent{Kind: domain.EventDone},
	), nil
}

func (m *MockCompletionService) record(request domain.ExecutionRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, request)
}

func (m *MockCompletionService) last() domain.ExecutionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Requests[len(m.Requests)-1]
}

func eventChannel(events ...domain.StreamEvent) <-chan domain.StreamEvent {
	ch := make(chan domain.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

// MockStats implements StatsProvider for testing
type MockStats struct {
	Value domain.AdmissionStats
}

func (m *MockStats) Stats() domain.AdmissionStats {
	return m.Value
}

// MockLineWebhookService implements input.LineWebhookService for testing
type MockLineWebhookService struct {
	Requests chan domain.LineWebhookRequest
}

func (m *MockLineWebhookService) HandleWebhook(ctx context.Context, request domain.LineWebhookRequest) error {
	m.Requests <- request
	return nil
}

// MockProviderGuard implements output.ProviderGuard for testing
type MockProviderGuard struct {
	Err error
}

func (m *MockProviderGuard) AssertLocalProvider() error {
	return m.Err
}
