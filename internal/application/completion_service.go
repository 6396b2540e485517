package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"codex-gateway/internal/domain"
	"codex-gateway/internal/ports/input"
	"codex-gateway/internal/ports/output"

	"github.com/sirupsen/logrus"
)

// Compile-time check to ensure CompletionService implements the input port
var _ input.CompletionService = (*CompletionService)(nil)

// CompletionService struct - Application service bridging requests to codex
// executions. It owns admission, launch, normalization and the final result.
type CompletionService struct {
	admission     output.AdmissionController
	tool          output.ToolAdapter
	executor      output.ProcessExecutor
	recorder      output.ResultRecorder
	contentFields []string

	mu     sync.Mutex
	active int
	idle   chan struct{}
}

// NewCompletionService func - Creates new completion service. recorder may be nil.
func NewCompletionService(
	admission output.AdmissionController,
	tool output.ToolAdapter,
	executor output.ProcessExecutor,
	recorder output.ResultRecorder,
	contentFields []string,
) *CompletionService {
	return &CompletionService{
		admission:     admission,
		tool:          tool,
		executor:      executor,
		recorder:      recorder,
		contentFields: contentFields,
	}
}

// run is one admitted, launched execution.
type run struct {
	request    domain.ExecutionRequest
	handle     *domain.ExecutionHandle
	execution  output.Execution
	normalizer *domain.Normalizer
	startedAt  time.Time
	text       strings.Builder
}

func (r *run) consume(line string) domain.TextFragment {
	frag := r.normalizer.Normalize(line)
	r.text.WriteString(frag.Text)
	return frag
}

// Complete func - Use case: run a request to completion and aggregate its output
func (s *CompletionService) Complete(ctx context.Context, request domain.ExecutionRequest) (*domain.FinalResult, error) {
	r, err := s.start(ctx, request)
	if err != nil {
		return nil, err
	}

	for line := range r.execution.Lines() {
		r.consume(line)
	}
	return s.finish(r, r.execution.Wait()), nil
}

// Stream func - Use case: run a request and forward its fragments as they arrive
func (s *CompletionService) Stream(ctx context.Context, request domain.ExecutionRequest) (<-chan domain.StreamEvent, error) {
	r, err := s.start(ctx, request)
	if err != nil {
		return nil, err
	}

	events := make(chan domain.StreamEvent)
	go s.bridge(ctx, r, events)
	return events, nil
}

func (s *CompletionService) bridge(ctx context.Context, r *run, events chan<- domain.StreamEvent) {
	defer close(events)

	send := func(ev domain.StreamEvent) bool {
		ev.RequestID = r.request.ID
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	abandon := func() {
		r.execution.Cancel()
		for range r.execution.Lines() {
		}
		s.finish(r, r.execution.Wait())
	}

	if !send(domain.StreamEvent{Kind: domain.EventStarted}) {
		abandon()
		return
	}

	lines := r.execution.Lines()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				result := s.finish(r, r.execution.Wait())
				send(terminalEvent(result))
				return
			}
			frag := r.consume(line)
			if !send(domain.StreamEvent{Kind: domain.EventDelta, Fragment: frag}) {
				abandon()
				return
			}
		case <-ctx.Done():
			abandon()
			return
		}
	}
}

func terminalEvent(result *domain.FinalResult) domain.StreamEvent {
	if result.Succeeded() {
		return domain.StreamEvent{Kind: domain.EventDone, Text: result.Text}
	}
	return domain.StreamEvent{
		Kind:       domain.EventErrored,
		Text:       result.Text,
		ErrorKind:  result.ErrorKind,
		Message:    result.Error,
		HTTPStatus: result.HTTPStatus,
	}
}

// start admits and launches the request. On error no slot is held.
func (s *CompletionService) start(ctx context.Context, request domain.ExecutionRequest) (*run, error) {
	handle := domain.NewExecutionHandle(request.ID)
	log := logrus.WithFields(logrus.Fields{
		"request_id": request.ID,
		"model":      request.Options.Model,
	})

	slot, err := s.admission.Acquire(ctx, request.ID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			err = domain.NewExecutionError(domain.KindCancelled, "request cancelled while queued", ctxErr)
		}
		log.WithError(err).Warn("Codex request not admitted")
		return nil, err
	}
	handle.Admit(slot)

	invocation, err := s.tool.Invocation(request)
	if err != nil {
		handle.Finish(domain.StateFailed, "")
		log.WithError(err).Error("Failed to build codex invocation")
		return nil, err
	}

	execution, err := s.executor.Start(ctx, invocation)
	if err != nil {
		handle.Finish(domain.StateFailed, "")
		log.WithError(err).Error("Failed to start codex")
		return nil, err
	}
	handle.MarkRunning(execution.PID())
	s.mu.Lock()
	s.active++
	s.mu.Unlock()

	log.WithFields(logrus.Fields{
		"pid":           execution.PID(),
		"queue_wait_ms": handle.QueueWait().Milliseconds(),
	}).Debug("Codex execution started")

	return &run{
		request:    request,
		handle:     handle,
		execution:  execution,
		normalizer: domain.NewNormalizer(s.contentFields),
		startedAt:  time.Now(),
	}, nil
}

// finish builds the FinalResult, releases the slot and records the result.
func (s *CompletionService) finish(r *run, exit domain.ProcessExit) *domain.FinalResult {
	result := &domain.FinalResult{
		RequestID:  r.request.ID,
		Text:       r.text.String(),
		Status:     exit.Status,
		ExitCode:   exit.ExitCode,
		Fragments:  r.normalizer.Emitted(),
		QueueWait:  r.handle.QueueWait(),
		StartedAt:  r.startedAt,
		FinishedAt: time.Now(),
	}

	switch exit.Status {
	case domain.StateCompleted:
	case domain.StateFailed:
		summary := s.tool.DescribeFailure(exit)
		result.ErrorKind = domain.KindNonZeroExit
		result.Error = summary.Message
		result.HTTPStatus = summary.HTTPStatus
	case domain.StateTimedOut:
		result.ErrorKind = domain.KindExecutionTimeout
		result.Error = fmt.Sprintf("codex execution timed out after %s", exit.Duration.Round(time.Millisecond))
	case domain.StateCancelled:
		result.ErrorKind = domain.KindCancelled
		result.Error = domain.ErrCancelled.Error()
	}
	if result.ErrorKind != "" && result.HTTPStatus == 0 {
		result.HTTPStatus = result.ErrorKind.DefaultHTTPStatus()
	}

	r.handle.Finish(exit.Status, exit.StderrTail)
	if s.recorder != nil {
		s.recorder.Record(result)
	}

	s.mu.Lock()
	s.active--
	if s.active == 0 && s.idle != nil {
		close(s.idle)
		s.idle = nil
	}
	s.mu.Unlock()
	return result
}

// Drain blocks until every started execution has been reaped and recorded,
// or ctx ends. It does not stop executions; cancel their contexts first.
func (s *CompletionService) Drain(ctx context.Context) error {
	s.mu.Lock()
	if s.active == 0 {
		s.mu.Unlock()
		return nil
	}
	if s.idle == nil {
		s.idle = make(chan struct{})
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active returns how many executions are running.
func (s *CompletionService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
