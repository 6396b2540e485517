package output

import "codex-gateway/internal/domain"

// ToolAdapter interface - Output port
// Knows how to invoke a specific external tool and how to read its failures.
type ToolAdapter interface {
	// Invocation builds the argument vector, working directory and environment
	// for one request.
	Invocation(request domain.ExecutionRequest) (domain.Invocation, error)

	// DescribeFailure turns a failed exit into a short message and an HTTP hint.
	DescribeFailure(exit domain.ProcessExit) domain.FailureSummary
}
