package input

import (
	"context"

	"codex-gateway/internal/domain"
)

// CompletionService interface - Input port (use case)
// Runs one request through admission, the external tool and the normalizer.
type CompletionService interface {
	// Complete waits for the execution and returns the aggregated result.
	// Admission and launch failures are returned as errors; every other
	// outcome, including timeout and cancellation, is a FinalResult.
	Complete(ctx context.Context, request domain.ExecutionRequest) (*domain.FinalResult, error)

	// Stream returns a channel of StreamEvents. Admission and launch failures
	// are returned before any event. Cancelling ctx terminates the process.
	Stream(ctx context.Context, request domain.ExecutionRequest) (<-chan domain.StreamEvent, error)
}

// ModelService interface - Input port (use case)
// Resolves the model names clients may ask for.
type ModelService interface {
	// DefaultModel returns the model name used when a request names none.
	DefaultModel() string

	// ListModels returns every served model id, including effort aliases.
	ListModels() []domain.ModelInfo

	// ResolveModel maps a requested name to the tool model and reasoning effort.
	// An empty name selects the default model. Unknown names fail with
	// domain.ErrModelNotFound.
	ResolveModel(name string) (model string, effort string, err error)
}

// RequestPlanner interface - Input port (use case)
// Turns a dialect-independent chat request into an execution request.
type RequestPlanner interface {
	// Plan resolves the model, applies policy gates and builds the prompt.
	// Failures wrap domain.ErrModelNotFound, domain.ErrSandboxForbidden or
	// domain.ErrInvalidRequest.
	Plan(request domain.CompletionRequest) (domain.ExecutionRequest, error)
}
