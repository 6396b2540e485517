package output

import (
	"context"

	"codex-gateway/internal/domain"
)

// ProcessExecutor interface - Output port
// Runs one external process per invocation.
type ProcessExecutor interface {
	// Start spawns the process. A spawn failure is returned as an error
	// wrapping domain.ErrProcessLaunch and no Execution exists.
	Start(ctx context.Context, invocation domain.Invocation) (Execution, error)
}

// Execution is a running external process.
type Execution interface {
	// PID returns the OS process id.
	PID() int

	// Lines yields stdout lines in order with trailing CR/LF removed. The
	// channel is closed when stdout ends. No line is dropped unless Cancel
	// was called or the Start context ended, so callers must drain it.
	Lines() <-chan string

	// Wait blocks until the process is terminal and reaped.
	Wait() domain.ProcessExit

	// Cancel terminates the process group and blocks until it is reaped.
	// It is safe to call at any time and more than once.
	Cancel()
}
