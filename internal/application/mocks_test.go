package application

import (
	"context"
	"sync"

	"codex-gateway/internal/adapters/output/codex"
	"codex-gateway/internal/domain"
)

// MockToolAdapter implements output.ToolAdapter for testing
type MockToolAdapter struct {
	InvocationFunc      func(request domain.ExecutionRequest) (domain.Invocation, error)
	DescribeFailureFunc func(exit domain.ProcessExit) domain.FailureSummary
}

func (m *MockToolAdapter) Invocation(request domain.ExecutionRequest) (domain.Invocation, error) {
	return m.InvocationFunc(request)
}

func (m *MockToolAdapter) DescribeFailure(exit domain.ProcessExit) domain.FailureSummary {
	if m.DescribeFailureFunc != nil {
		return m.DescribeFailureFunc(exit)
	}
	return codex.DescribeFailure(exit.StderrTail, exit.StdoutTail)
}

// MockProviderGuard implements output.ProviderGuard for testing
type MockProviderGuard struct {
	AssertLocalProviderFunc func() error
	calls                   int
}

func (m *MockProviderGuard) AssertLocalProvider() error {
	m.calls++
	if m.AssertLocalProviderFunc != nil {
		return m.AssertLocalProviderFunc()
	}
	return nil
}

// shellTool runs script with /bin/sh for every request
func shellTool(script string) *MockToolAdapter {
	return &MockToolAdapter{
		InvocationFunc: func(request domain.ExecutionRequest) (domain.Invocation, error) {
			return domain.Invocation{
				Path:     "/bin/sh",
				Args:     []string{"-c", script},
				Deadline: request.Deadline,
			}, nil
		},
	}
}

// MockResultRecorder implements output.ResultRecorder for testing
type MockResultRecorder struct {
	mu      sync.Mutex
	Results []*domain.FinalResult
	signal  chan *domain.FinalResult
}

func NewMockResultRecorder() *MockResultRecorder {
	return &MockResultRecorder{signal: make(chan *domain.FinalResult, 16)}
}

func (m *MockResultRecorder) Record(result *domain.FinalResult) {
	m.mu.Lock()
	m.Results = append(m.Results, result)
	m.mu.Unlock()
	m.signal <- result
}

func (m *MockResultRecorder) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Results)
}

// MockCompletionService implements input.CompletionService for testing
type MockCompletionService struct {
	CompleteFunc func(ctx context.Context, request domain.ExecutionRequest) (*domain.FinalResult, error)
	StreamFunc   func(ctx context.Context, request domain.ExecutionRequest) (<-chan domain.StreamEvent, error)

	mu       sync.Mutex
	Requests []domain.ExecutionRequest
}

func (m *MockCompletionService) Complete(ctx context.Context, request domain.ExecutionRequest) (*domain.FinalResult, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, request)
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, request)
	}
	return &domain.FinalResult{RequestID: request.ID, Status: domain.StateCompleted, Text: "codex answer"}, nil
}

func (m *MockCompletionService) Stream(ctx context.Context, request domain.ExecutionRequest) (<-chan domain.StreamEvent, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, request)
	}
	return nil, nil
}

// MockLineClient implements output.LineClient for testing
type MockLineClient struct {
	ReplyMessageFunc func(ctx context.Context, request domain.LineReplyMessageRequest) (*domain.LineMessageResponse, error)
	PushMessageFunc  func(ctx context.Context, request domain.LinePushMessageRequest) (*domain.LineMessageResponse, error)

	ReplyRequests []domain.LineReplyMessageRequest
	PushRequests  []domain.LinePushMessageRequest
}

func (m *MockLineClient) ReplyMessage(ctx context.Context, request domain.LineReplyMessageRequest) (*domain.LineMessageResponse, error) {
	m.ReplyRequests = append(m.ReplyRequests, request)
	if m.ReplyMessageFunc != nil {
		return m.ReplyMessageFunc(ctx, request)
	}
	return &domain.LineMessageResponse{Status: "success"}, nil
}

func (m *MockLineClient) PushMessage(ctx context.Context, request domain.LinePushMessageRequest) (*domain.LineMessageResponse, error) {
	m.PushRequests = append(m.PushRequests, request)
	if m.PushMessageFunc != nil {
		return m.PushMessageFunc(ctx, request)
	}
	return &domain.LineMessageResponse{Status: "success"}, nil
}

func (m *MockLineClient) lastText() string {
	if n := len(m.PushRequests); n > 0 {
		return m.PushRequests[n-1].Messages[0].Text
	}
	if n := len(m.ReplyRequests); n > 0 {
		return m.ReplyRequests[n-1].Messages[0].Text
	}
	return ""
}
