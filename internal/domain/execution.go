package domain

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ExecutionState represents the lifecycle state of one external invocation.
type ExecutionState int32

const (
	// StateQueued indicates the request is waiting for an admission slot.
	StateQueued ExecutionState = iota
	// StateAdmitted indicates a slot is held but the process is not spawned yet.
	StateAdmitted
	// StateRunning indicates the OS process has been spawned.
	StateRunning
	// StateCompleted indicates the process exited with code 0.
	StateCompleted
	// StateFailed indicates the process exited with a non-zero code or could not be spawned.
	StateFailed
	// StateTimedOut indicates the deadline elapsed and the process was killed.
	StateTimedOut
	// StateCancelled indicates the caller or the server aborted the execution.
	StateCancelled
)

// String returns a human-readable state name.
func (s ExecutionState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateAdmitted:
		return "admitted"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// MarshalText renders the state by name.
func (s ExecutionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal reports whether no further transition can occur from s.
func (s ExecutionState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateCancelled:
		return true
	default:
		return false
	}
}

// ExecutionOptions are the per-request knobs forwarded to the external tool.
type ExecutionOptions struct {
	Model           string
	Sandbox         string
	ReasoningEffort string
	NetworkAccess   *bool
	HideReasoning   *bool
}

// ExecutionRequest is the immutable description of one invocation.
type ExecutionRequest struct {
	ID        string
	Prompt    string
	Options   ExecutionOptions
	Deadline  time.Time
	CreatedAt time.Time
}

// NewExecutionRequest builds a request whose deadline is timeout from now.
// A non-positive timeout leaves the deadline unset.
func NewExecutionRequest(id, prompt string, options ExecutionOptions, timeout time.Duration) ExecutionRequest {
	now := time.Now()
	req := ExecutionRequest{
		ID:        id,
		Prompt:    prompt,
		Options:   options,
		CreatedAt: now,
	}
	if timeout > 0 {
		req.Deadline = now.Add(timeout)
	}
	return req
}

// HasDeadline reports whether the request carries an absolute deadline.
func (r ExecutionRequest) HasDeadline() bool {
	return !r.Deadline.IsZero()
}

// Slot is one unit of admission capacity.
type Slot interface {
	Release()
}

// ExecutionHandle tracks the mutable side of one execution. The admission
// step moves it from Queued to Admitted, the executor from Admitted to
// Running and then to a terminal state. Reaching a terminal state releases
// the held slot exactly once.
type ExecutionHandle struct {
	RequestID string

	state atomic.Int32
	pid   atomic.Int64

	mu        sync.Mutex
	slot      Slot
	queuedAt  time.Time
	admitted  time.Time
	stderrTip string
}

// NewExecutionHandle creates a handle in the Queued state.
func NewExecutionHandle(requestID string) *ExecutionHandle {
	h := &ExecutionHandle{
		RequestID: requestID,
		queuedAt:  time.Now(),
	}
	h.state.Store(int32(StateQueued))
	h.pid.Store(-1)
	return h
}

// State returns the current lifecycle state.
func (h *ExecutionHandle) State() ExecutionState {
	return ExecutionState(h.state.Load())
}

// PID returns the OS process id, or -1 before the process is spawned.
func (h *ExecutionHandle) PID() int {
	return int(h.pid.Load())
}

// Admit records the granted slot and moves Queued to Admitted.
func (h *ExecutionHandle) Admit(slot Slot) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.CompareAndSwap(int32(StateQueued), int32(StateAdmitted)) {
		return false
	}
	h.slot = slot
	h.admitted = time.Now()
	return true
}

// MarkRunning moves Admitted to Running once the process exists.
func (h *ExecutionHandle) MarkRunning(pid int) bool {
	if !h.state.CompareAndSwap(int32(StateAdmitted), int32(StateRunning)) {
		return false
	}
	h.pid.Store(int64(pid))
	return true
}

// Finish moves the handle to a terminal state and releases its slot.
// Only the first call wins; later calls return false and change nothing.
func (h *ExecutionHandle) Finish(state ExecutionState, stderrTail string) bool {
	if !state.IsTerminal() {
		return false
	}
	for {
		cur := ExecutionState(h.state.Load())
		if cur.IsTerminal() {
			return false
		}
		if h.state.CompareAndSwap(int32(cur), int32(state)) {
			break
		}
	}

	h.mu.Lock()
	slot := h.slot
	h.slot = nil
	h.stderrTip = stderrTail
	h.mu.Unlock()

	if slot != nil {
		slot.Release()
	}
	return true
}

// HoldsSlot reports whether the handle currently owns a slot.
func (h *ExecutionHandle) HoldsSlot() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slot != nil
}

// StderrTail returns the stderr tail recorded when the handle finished.
func (h *ExecutionHandle) StderrTail() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stderrTip
}

// QueueWait is the time spent between creation and admission.
func (h *ExecutionHandle) QueueWait() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.admitted.IsZero() {
		return 0
	}
	return h.admitted.Sub(h.queuedAt)
}

// TextFragment is one ordered unit of normalized output.
type TextFragment struct {
	Seq  int    `json:"seq"`
	Text string `json:"text"`
}

// FinalResult is the terminal value of one execution.
type FinalResult struct {
	RequestID  string         `json:"request_id"`
	Text       string         `json:"text"`
	Status     ExecutionState `json:"status"`
	ErrorKind  ErrorKind      `json:"error_kind,omitempty"`
	Error      string         `json:"error,omitempty"`
	HTTPStatus int            `json:"-"`
	ExitCode   int            `json:"exit_code"`
	Fragments  int            `json:"fragments"`
	QueueWait  time.Duration  `json:"queue_wait"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Succeeded reports whether the execution completed normally.
func (r *FinalResult) Succeeded() bool {
	return r.Status == StateCompleted
}

// Err converts a non-successful result into an *ExecutionError.
func (r *FinalResult) Err() error {
	if r.Succeeded() {
		return nil
	}
	return &ExecutionError{
		Kind:       r.ErrorKind,
		Message:    r.Error,
		HTTPStatus: r.HTTPStatus,
	}
}

// Invocation is the argument vector, working directory and environment of
// one external process, plus the absolute time after which it is killed.
type Invocation struct {
	Path     string
	Args     []string
	Dir      string
	Env      []string
	Deadline time.Time
}

// String renders the command line with the prompt elided.
func (i Invocation) String() string {
	parts := make([]string, 0, len(i.Args)+1)
	parts = append(parts, i.Path)
	for _, a := range i.Args {
		if len(a) > 64 {
			a = a[:64] + "..."
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// ProcessExit is the terminal notification produced by the executor after
// the last stdout line has been delivered.
type ProcessExit struct {
	Status     ExecutionState
	ExitCode   int
	StderrTail string
	StdoutTail string
	Err        error
	Duration   time.Duration
}

// FailureSummary is a human-readable failure cause and its HTTP mapping.
type FailureSummary struct {
	Message    string
	HTTPStatus int
}
