package application

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"codex-gateway/internal/adapters/output/memory"
	"codex-gateway/internal/adapters/output/process"
	"codex-gateway/internal/domain"
)

func newService(pool *memory.SlotPool, tool *MockToolAdapter, recorder *MockResultRecorder) *CompletionService {
	executor := process.NewExecutor(process.WithKillGrace(100 * time.Millisecond))
	return NewCompletionService(pool, tool, executor, recorder, nil)
}

func request(timeout time.Duration) domain.ExecutionRequest {
	return domain.NewExecutionRequest("req-test", "prompt", domain.ExecutionOptions{}, timeout)
}

func waitIdle(t *testing.T, pool *memory.SlotPool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for pool.Stats().Running != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("slot still held: %+v", pool.Stats())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCompleteAggregatesStructuredOutput(t *testing.T) {
	pool := memory.NewSlotPool(1, 0)
	recorder := NewMockResultRecorder()
	svc := newService(pool, shellTool(`printf '{"text":"Hello"}\n{"text":" world"}\n'`), recorder)

	result, err := svc.Complete(context.Background(), request(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.StateCompleted {
		t.Fatalf("expected completed, got %s (%s)", result.Status, result.Error)
	}
	if result.Text != "Hello world" {
		t.Errorf("expected 'Hello world', got %q", result.Text)
	}
	if result.Fragments != 2 {
		t.Errorf("expected 2 fragments, got %d", result.Fragments)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", result.ExitCode)
	}
	if recorder.Count() != 1 {
		t.Errorf("expected one recorded result, got %d", recorder.Count())
	}
	waitIdle(t, pool)
}

func TestCompleteMixedOutput(t *testing.T) {
	pool := memory.NewSlotPool(1, 0)
	svc := newService(pool, shellTool(`echo 'plain '; echo '{"content":"json"}'; echo '{"type":"noise"}'`), NewMockResultRecorder())

	result, err := svc.Complete(context.Background(), request(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := `plain json{"type":"noise"}`; result.Text != want {
		t.Errorf("expected %q, got %q", want, result.Text)
	}
}

func TestCompleteNonZeroExit(t *testing.T) {
	pool := memory.NewSlotPool(1, 0)
	svc := newService(pool, shellTool(`echo partial; echo boom >&2; exit 1`), NewMockResultRecorder())

	result, err := svc.Complete(context.Background(), request(time.Minute))
	if err != nil {
		t.Fatalf("expected a result, got error %v", err)
	}
	if result.Status != domain.StateFailed || result.ErrorKind != domain.KindNonZeroExit {
		t.Fatalf("expected failed/non_zero_exit, got %s/%s", result.Status, result.ErrorKind)
	}
	if result.ExitCode != 1 {
		t.Errorf("expected exit code 1, got %d", result.ExitCode)
	}
	if !strings.Contains(result.Error, "boom") {
		t.Errorf("expected error to mention boom, got %q", result.Error)
	}
	if result.HTTPStatus != 502 {
		t.Errorf("expected 502, got %d", result.HTTPStatus)
	}
	if result.Text != "partial" {
		t.Errorf("expected partial text, got %q", result.Text)
	}
	if !errors.Is(result.Err(), domain.ErrNonZeroExit) {
		t.Errorf("expected result error to match ErrNonZeroExit")
	}
	waitIdle(t, pool)
}

func TestCompleteTimeout(t *testing.T) {
	pool := memory.NewSlotPool(1, 0)
	svc := newService(pool, shellTool(`echo started; sleep 30`), NewMockResultRecorder())

	start := time.Now()
	result, err := svc.Complete(context.Background(), request(200*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.StateTimedOut || result.ErrorKind != domain.KindExecutionTimeout {
		t.Fatalf("expected timed_out, got %s/%s", result.Status, result.ErrorKind)
	}
	if result.HTTPStatus != 504 {
		t.Errorf("expected 504, got %d", result.HTTPStatus)
	}
	if result.Text != "started" {
		t.Errorf("expected partial text, got %q", result.Text)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("expected the timeout to be enforced promptly")
	}
	waitIdle(t, pool)
}

func TestCompleteQueueTimeout(t *testing.T) {
	pool := memory.NewSlotPool(1, 50*time.Millisecond)
	held, _ := pool.Acquire(context.Background(), "holder")
	defer held.Release()

	recorder := NewMockResultRecorder()
	svc := newService(pool, shellTool(`echo never`), recorder)

	result, err := svc.Complete(context.Background(), request(time.Minute))
	if !errors.Is(err, domain.ErrQueueTimeout) {
		t.Fatalf("expected ErrQueueTimeout, got %v", err)
	}
	if result != nil {
		t.Error("expected no result for a request that never ran")
	}
	if recorder.Count() != 0 {
		t.Error("expected nothing to be recorded")
	}
}

func TestCompleteCancelledWhileQueued(t *testing.T) {
	pool := memory.NewSlotPool(1, 0)
	held, _ := pool.Acquire(context.Background(), "holder")
	defer held.Release()

	svc := newService(pool, shellTool(`echo never`), NewMockResultRecorder())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.Complete(ctx, request(time.Minute))
	if domain.KindOf(err) != domain.KindCancelled {
		t.Fatalf("expected cancelled kind, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the context error to be wrapped, got %v", err)
	}
}

func TestCompleteLaunchFailureReleasesSlot(t *testing.T) {
	pool := memory.NewSlotPool(1, 0)
	tool := &MockToolAdapter{
		InvocationFunc: func(domain.ExecutionRequest) (domain.Invocation, error) {
			return domain.Invocation{Path: "/nonexistent/codex"}, nil
		},
	}
	svc := newService(pool, tool, NewMockResultRecorder())

	_, err := svc.Complete(context.Background(), request(time.Minute))
	if !errors.Is(err, domain.ErrProcessLaunch) {
		t.Fatalf("expected ErrProcessLaunch, got %v", err)
	}
	waitIdle(t, pool)
}

func TestCompleteInvocationErrorReleasesSlot(t *testing.T) {
	pool := memory.NewSlotPool(1, 0)
	tool := &MockToolAdapter{
		InvocationFunc: func(domain.ExecutionRequest) (domain.Invocation, error) {
			return domain.Invocation{}, domain.NewExecutionError(domain.KindProcessLaunch, "codex not found", nil)
		},
	}
	svc := newService(pool, tool, NewMockResultRecorder())

	if _, err := svc.Complete(context.Background(), request(time.Minute)); !errors.Is(err, domain.ErrProcessLaunch) {
		t.Fatalf("expected ErrProcessLaunch, got %v", err)
	}
	waitIdle(t, pool)
}

func TestCompleteRejectedAfterShutdown(t *testing.T) {
	pool := memory.NewSlotPool(1, 0)
	pool.Shutdown()
	svc := newService(pool, shellTool(`echo never`), NewMockResultRecorder())

	if _, err := svc.Complete(context.Background(), request(time.Minute)); !errors.Is(err, domain.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func collectEvents(events <-chan domain.StreamEvent) []domain.StreamEvent {
	var out []domain.StreamEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestStreamEventOrder(t *testing.T) {
	pool := memory.NewSlotPool(1, 0)
	svc := newService(pool, shellTool(`printf '{"text":"Hello"}\n{"text":" world"}\n'`), NewMockResultRecorder())

	events, err := svc.Stream(context.Background(), request(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := collectEvents(events)

	kinds := make([]domain.StreamEventKind, len(got))
	for i, ev := range got {
		kinds[i] = ev.Kind
	}
	want := []domain.StreamEventKind{domain.EventStarted, domain.EventDelta, domain.EventDelta, domain.EventDone}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, kinds)
		}
	}
	if got[1].Fragment.Seq != 0 || got[2].Fragment.Seq != 1 {
		t.Errorf("expected gapless sequence, got %d, %d", got[1].Fragment.Seq, got[2].Fragment.Seq)
	}
	if got[1].Fragment.Text != "Hello" || got[2].Fragment.Text != " world" {
		t.Errorf("unexpected fragments %q %q", got[1].Fragment.Text, got[2].Fragment.Text)
	}
	if got[3].Text != "Hello world" {
		t.Errorf("expected done text 'Hello world', got %q", got[3].Text)
	}
	for _, ev := range got {
		if ev.RequestID != "req-test" {
			t.Errorf("expected request id on every event, got %q", ev.RequestID)
		}
	}
	waitIdle(t, pool)
}

func TestStreamErrored(t *testing.T) {
	pool := memory.NewSlotPool(1, 0)
	svc := newService(pool, shellTool(`echo 'Error: rate limit exceeded' >&2; exit 3`), NewMockResultRecorder())

	events, err := svc.Stream(context.Background(), request(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := collectEvents(events)
	last := got[len(got)-1]

	if last.Kind != domain.EventErrored {
		t.Fatalf("expected errored terminal event, got %s", last.Kind)
	}
	if last.ErrorKind != domain.KindNonZeroExit || last.HTTPStatus != 429 {
		t.Errorf("unexpected error event %+v", last)
	}
	terminals := 0
	for _, ev := range got {
		if ev.IsTerminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("expected exactly one terminal event, got %d", terminals)
	}
}

func TestStreamConsumerDisconnect(t *testing.T) {
	pool := memory.NewSlotPool(1, 0)
	recorder := NewMockResultRecorder()
	svc := newService(pool, shellTool(`while true; do echo tick; sleep 0.01; done`), recorder)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := svc.Stream(ctx, request(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for ev := range events {
		if ev.Kind == domain.EventDelta {
			break
		}
	}
	cancel()

	select {
	case result := <-recorder.signal:
		if result.Status != domain.StateCancelled {
			t.Errorf("expected cancelled, got %s", result.Status)
		}
		if !strings.HasPrefix(result.Text, "tick") {
			t.Errorf("expected partial text to be kept, got %q", result.Text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no final result recorded after disconnect")
	}

	for range events {
	}
	waitIdle(t, pool)
}

func TestStreamLaunchFailureIsSynchronous(t *testing.T) {
	pool := memory.NewSlotPool(1, 0)
	tool := &MockToolAdapter{
		InvocationFunc: func(domain.ExecutionRequest) (domain.Invocation, error) {
			return domain.Invocation{Path: "/nonexistent/codex"}, nil
		},
	}
	svc := newService(pool, tool, NewMockResultRecorder())

	events, err := svc.Stream(context.Background(), request(time.Minute))
	if !errors.Is(err, domain.ErrProcessLaunch) {
		t.Fatalf("expected ErrProcessLaunch, got %v", err)
	}
	if events != nil {
		t.Error("expected no event channel")
	}
	waitIdle(t, pool)
}

func TestCompleteBoundsConcurrency(t *testing.T) {
	pool := memory.NewSlotPool(2, 0)
	svc := newService(pool, shellTool(`sleep 0.2; echo ok`), NewMockResultRecorder())

	stop := make(chan struct{})
	peak := make(chan int, 1)
	go func() {
		highest := 0
		for {
			select {
			case <-stop:
				peak <- highest
				return
			default:
				if r := pool.Stats().Running; r > highest {
					highest = r
				}
				time.Sleep(2 * time.Millisecond)
			}
		}
	}()

	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := svc.Complete(context.Background(), request(time.Minute))
			errs <- err
		}()
	}
	for i := 0; i < 5; i++ {
		if err := <-errs; err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	close(stop)

	if p := <-peak; p > 2 {
		t.Errorf("expected at most 2 concurrent executions, saw %d", p)
	}
}

func TestCompleteSecondRequestWaitsForFirst(t *testing.T) {
	pool := memory.NewSlotPool(1, 0)
	svc := newService(pool, shellTool(`sleep 0.15; echo '{"text":"done"}'`), NewMockResultRecorder())

	results := make(chan *domain.FinalResult, 2)
	for i := 0; i < 2; i++ {
		go func() {
			result, err := svc.Complete(context.Background(), request(time.Minute))
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results <- result
		}()
	}

	first, second := <-results, <-results
	if first == nil || second == nil {
		t.Fatal("expected two results")
	}
	if second.QueueWait < 100*time.Millisecond {
		t.Errorf("expected the second request to wait for the slot, waited %s", second.QueueWait)
	}
	if second.StartedAt.Before(first.FinishedAt) {
		t.Errorf("second started at %s before first finished at %s", second.StartedAt, first.FinishedAt)
	}
	waitIdle(t, pool)
}

func TestDrainWaitsForProcessGroups(t *testing.T) {
	pool := memory.NewSlotPool(2, 0)
	svc := newService(pool, shellTool(`echo $$; sleep 30 & sleep 30`), NewMockResultRecorder())

	if err := svc.Drain(context.Background()); err != nil {
		t.Fatalf("expected idle service to drain at once, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := svc.Stream(ctx, request(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pid := 0
	for ev := range events {
		if ev.Kind == domain.EventDelta {
			pid, _ = strconv.Atoi(strings.TrimSpace(ev.Fragment.Text))
			break
		}
	}
	if pid <= 0 {
		t.Fatal("expected the shell pid as first line")
	}
	if svc.Active() != 1 {
		t.Errorf("expected 1 active execution, got %d", svc.Active())
	}

	short, cancelShort := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelShort()
	if err := svc.Drain(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected Drain to wait for the running execution, got %v", err)
	}

	pool.Shutdown()
	cancel()
	long, cancelLong := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelLong()
	if err := svc.Drain(long); err != nil {
		t.Fatalf("expected Drain to finish after cancel, got %v", err)
	}
	if svc.Active() != 0 {
		t.Errorf("expected no active executions, got %d", svc.Active())
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := syscall.Kill(-pid, 0); errors.Is(err, syscall.ESRCH) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("process group %d survived the drain", pid)
		}
		time.Sleep(10 * time.Millisecond)
	}
	for range events {
	}
	waitIdle(t, pool)
}
