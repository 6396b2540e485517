package domain

import (
	"errors"
	"net/http"
)

// Execution error sentinels

var (
	// ErrQueueTimeout indicates no admission slot freed up within the queue timeout
	ErrQueueTimeout = errors.New("codex worker pool is busy; timed out waiting for an available slot")

	// ErrRejected indicates the admission controller is shutting down
	ErrRejected = errors.New("codex worker pool is shutting down")

	// ErrProcessLaunch indicates the external tool could not be spawned
	ErrProcessLaunch = errors.New("unable to start codex process")

	// ErrNonZeroExit indicates the external tool ran and failed
	ErrNonZeroExit = errors.New("codex execution failed")

	// ErrExecutionTimeout indicates the request deadline elapsed
	ErrExecutionTimeout = errors.New("codex execution timed out")

	// ErrCancelled indicates the execution was aborted by the caller or the server
	ErrCancelled = errors.New("codex execution cancelled")
)

// Request error sentinels

var (
	// ErrModelNotFound indicates the requested model is not served
	ErrModelNotFound = errors.New("model not found")

	// ErrInvalidRequest indicates the request could not be turned into an execution
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSandboxForbidden indicates a sandbox mode disabled by server policy
	ErrSandboxForbidden = errors.New("danger-full-access is disabled by server policy")

	// ErrNonLocalProvider indicates codex would reach a remote model provider while local-only is enforced
	ErrNonLocalProvider = errors.New("non-local model provider detected")
)

// ErrorKind classifies a failed execution.
type ErrorKind string

const (
	KindQueueTimeout     ErrorKind = "queue_timeout"
	KindRejected         ErrorKind = "rejected"
	KindProcessLaunch    ErrorKind = "process_launch_failure"
	KindNonZeroExit      ErrorKind = "non_zero_exit"
	KindExecutionTimeout ErrorKind = "execution_timeout"
	KindCancelled        ErrorKind = "cancelled"
)

// Sentinel returns the sentinel error matching the kind.
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindQueueTimeout:
		return ErrQueueTimeout
	case KindRejected:
		return ErrRejected
	case KindProcessLaunch:
		return ErrProcessLaunch
	case KindNonZeroExit:
		return ErrNonZeroExit
	case KindExecutionTimeout:
		return ErrExecutionTimeout
	case KindCancelled:
		return ErrCancelled
	default:
		return nil
	}
}

// DefaultHTTPStatus is the status code used when no better hint exists.
func (k ErrorKind) DefaultHTTPStatus() int {
	switch k {
	case KindQueueTimeout, KindRejected:
		return http.StatusServiceUnavailable
	case KindNonZeroExit:
		return http.StatusBadGateway
	case KindExecutionTimeout:
		return http.StatusGatewayTimeout
	case KindCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// KindForState maps a terminal state to its error kind. Completed has none.
func KindForState(state ExecutionState) ErrorKind {
	switch state {
	case StateFailed:
		return KindNonZeroExit
	case StateTimedOut:
		return KindExecutionTimeout
	case StateCancelled:
		return KindCancelled
	default:
		return ""
	}
}

// ExecutionError is a typed execution failure. It unwraps to both the
// kind's sentinel and the underlying cause.
type ExecutionError struct {
	Kind       ErrorKind
	Message    string
	HTTPStatus int
	Err        error
}

// NewExecutionError creates an ExecutionError with the kind's default status.
func NewExecutionError(kind ErrorKind, message string, cause error) *ExecutionError {
	return &ExecutionError{
		Kind:       kind,
		Message:    message,
		HTTPStatus: kind.DefaultHTTPStatus(),
		Err:        cause,
	}
}

func (e *ExecutionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if s := e.Kind.Sentinel(); s != nil {
		return s.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Unwrap exposes the kind's sentinel and the cause to errors.Is / errors.As.
func (e *ExecutionError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Status returns the HTTP status for the error, falling back to the kind default.
func (e *ExecutionError) Status() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return e.Kind.DefaultHTTPStatus()
}

// KindOf extracts the ErrorKind from err, or "" when err is not an execution failure.
func KindOf(err error) ErrorKind {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Kind
	}
	for _, k := range []ErrorKind{KindQueueTimeout, KindRejected, KindProcessLaunch, KindNonZeroExit, KindExecutionTimeout, KindCancelled} {
		if errors.Is(err, k.Sentinel()) {
			return k
		}
	}
	return ""
}
