package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"codex-gateway/internal/domain"
	"codex-gateway/internal/ports/output"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultLineLimit is the longest stdout line accepted, in bytes.
	DefaultLineLimit = 512 * 1024
	// DefaultStderrLimit is how much stderr is retained for diagnostics.
	DefaultStderrLimit = 64 * 1024
	// DefaultKillGrace is the wait between SIGTERM and SIGKILL.
	DefaultKillGrace = 2 * time.Second

	stdoutTailLimit = 16 * 1024
	initialLineBuf  = 64 * 1024
)

// reasonNatural marks a process that exited on its own before anyone
// claimed a termination reason.
const reasonNatural = -1

// Compile-time check to ensure Executor implements ProcessExecutor interface
var _ output.ProcessExecutor = (*Executor)(nil)

// Executor struct - Output adapter spawning external processes in their own
// process group so that termination reaches every descendant.
type Executor struct {
	lineLimit   int
	stderrLimit int
	killGrace   time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithLineLimit sets the maximum stdout line length.
func WithLineLimit(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.lineLimit = n
		}
	}
}

// WithStderrLimit sets how many trailing stderr bytes are kept.
func WithStderrLimit(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.stderrLimit = n
		}
	}
}

// WithKillGrace sets the wait between SIGTERM and SIGKILL.
func WithKillGrace(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.killGrace = d
		}
	}
}

// NewExecutor creates an Executor with defaults overridden by opts.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		lineLimit:   DefaultLineLimit,
		stderrLimit: DefaultStderrLimit,
		killGrace:   DefaultKillGrace,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start spawns the invocation. Cancelling ctx or passing the invocation
// deadline terminates the process group.
func (e *Executor) Start(ctx context.Context, inv domain.Invocation) (output.Execution, error) {
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, launchError(inv, err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, launchError(inv, err)
	}

	cmd := exec.Command(inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	startErr := cmd.Start()
	// the child holds its own copies of the write ends
	stdoutW.Close()
	stderrW.Close()
	if startErr != nil {
		stdoutR.Close()
		stderrR.Close()
		return nil, launchError(inv, startErr)
	}

	x := &Execution{
		cmd:        cmd,
		pid:        cmd.Process.Pid,
		killGrace:  e.killGrace,
		startedAt:  time.Now(),
		stdout:     stdoutR,
		stderr:     stderrR,
		stdoutRead: &readWatch{r: stdoutR},
		stderrRead: &readWatch{r: stderrR},
		lines:      make(chan string),
		stderrTail: newTailBuffer(e.stderrLimit),
		stdoutTail: newTailBuffer(stdoutTailLimit),
		exited:     make(chan struct{}),
		pumped:     make(chan struct{}),
		abort:      make(chan struct{}),
		cancel:     make(chan struct{}),
		done:       make(chan struct{}),
	}

	logrus.WithFields(logrus.Fields{
		"pid":  x.pid,
		"dir":  inv.Dir,
		"path": inv.Path,
	}).Debug("Started external process")

	go x.reap()
	go x.pump(e.lineLimit)
	go x.supervise(ctx, inv.Deadline)

	return x, nil
}

func launchError(inv domain.Invocation, err error) error {
	return domain.NewExecutionError(domain.KindProcessLaunch,
		fmt.Sprintf("unable to start %s: %v", inv.Path, err), err)
}

// Execution struct - one running process and its output pumps.
type Execution struct {
	cmd       *exec.Cmd
	pid       int
	killGrace time.Duration
	startedAt time.Time

	stdout     *os.File
	stderr     *os.File
	stdoutRead *readWatch
	stderrRead *readWatch
	lines      chan string

	stderrTail *tailBuffer
	stdoutTail *tailBuffer

	reason  atomic.Int32
	waitErr error
	pumpErr error

	exited chan struct{}
	pumped chan struct{}

	abortOnce sync.Once
	abort     chan struct{}

	cancelOnce sync.Once
	cancel     chan struct{}

	exit domain.ProcessExit
	done chan struct{}
}

// PID returns the OS process id.
func (x *Execution) PID() int {
	return x.pid
}

// Lines returns the stdout line channel.
func (x *Execution) Lines() <-chan string {
	return x.lines
}

// Wait blocks until the process is terminal and its output is drained.
func (x *Execution) Wait() domain.ProcessExit {
	<-x.done
	return x.exit
}

// Cancel terminates the process unless it already finished, then waits
// for it to be reaped. Lines not yet received are discarded.
func (x *Execution) Cancel() {
	x.stopDelivery()
	x.cancelOnce.Do(func() { close(x.cancel) })
	<-x.done
}

func (x *Execution) reap() {
	x.waitErr = x.cmd.Wait()
	x.reason.CompareAndSwap(0, reasonNatural)
	close(x.exited)
}

func (x *Execution) pump(lineLimit int) {
	var g errgroup.Group

	g.Go(func() error {
		scanner := bufio.NewScanner(x.stdoutRead)
		scanner.Buffer(make([]byte, 0, min(initialLineBuf, lineLimit)), lineLimit)
		dropping := false
		for scanner.Scan() {
			line := trimEOL(scanner.Text())
			x.stdoutTail.Write([]byte(line + "\n"))
			if dropping {
				continue
			}
			select {
			case x.lines <- line:
			case <-x.abort:
				dropping = true
			}
		}
		err := scanner.Err()
		if err != nil && !errors.Is(err, os.ErrClosed) {
			// keep the pipe drained so the child never blocks on a full buffer
			io.Copy(io.Discard, x.stdoutRead)
			return fmt.Errorf("read stdout: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		_, err := io.Copy(x.stderrTail, x.stderrRead)
		if err != nil && !errors.Is(err, os.ErrClosed) {
			return fmt.Errorf("read stderr: %w", err)
		}
		return nil
	})

	x.pumpErr = g.Wait()
	close(x.lines)
	close(x.pumped)
}

func (x *Execution) supervise(ctx context.Context, deadline time.Time) {
	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-x.exited:
	case <-timeout:
		x.terminate(domain.StateTimedOut)
	case <-ctx.Done():
		x.terminate(domain.StateCancelled)
	case <-x.cancel:
		x.terminate(domain.StateCancelled)
	}
	<-x.exited
	x.drain(ctx)
	x.stdout.Close()
	x.stderr.Close()

	x.exit = x.classify()
	close(x.done)

	logrus.WithFields(logrus.Fields{
		"pid":         x.pid,
		"status":      x.exit.Status.String(),
		"exit_code":   x.exit.ExitCode,
		"duration_ms": x.exit.Duration.Milliseconds(),
	}).Debug("External process finished")
}

// drain waits for both pumps to finish after the group leader exited.
// Descendants that keep the pipes open are killed after the grace period,
// and a read end is force-closed only once its pump has sat in a single
// read for a whole grace period. Lines already read are always delivered
// unless the caller gave up.
func (x *Execution) drain(ctx context.Context) {
	select {
	case <-x.pumped:
		return
	case <-time.After(x.killGrace):
	}

	logrus.WithField("pid", x.pid).Debug("Output still open after exit, killing process group")
	x.signalGroup(syscall.SIGKILL)

	ticker := time.NewTicker(x.killGrace)
	defer ticker.Stop()
	cancelled := x.cancel
	done := ctx.Done()
	for {
		select {
		case <-x.pumped:
			return
		case <-cancelled:
			cancelled = nil
			x.stopDelivery()
		case <-done:
			done = nil
			x.stopDelivery()
		case <-ticker.C:
			if x.stdoutRead.stalled() {
				logrus.WithField("pid", x.pid).Warn("Stdout held open by an escaped process, closing it")
				x.stdout.Close()
			}
			if x.stderrRead.stalled() {
				x.stderr.Close()
			}
		}
	}
}

// terminate claims the termination reason and stops the process group with
// SIGTERM, escalating to SIGKILL after the grace period. It returns once the
// group leader has been reaped.
func (x *Execution) terminate(state domain.ExecutionState) {
	if !x.reason.CompareAndSwap(0, int32(state)) {
		return
	}
	if state == domain.StateCancelled {
		x.stopDelivery()
	}

	x.signalGroup(syscall.SIGTERM)
	select {
	case <-x.exited:
	case <-time.After(x.killGrace):
		logrus.WithField("pid", x.pid).Warn("Process ignored SIGTERM, sending SIGKILL")
	}
	x.signalGroup(syscall.SIGKILL)
	<-x.exited
}

func (x *Execution) stopDelivery() {
	x.abortOnce.Do(func() { close(x.abort) })
}

func (x *Execution) signalGroup(sig syscall.Signal) {
	if err := syscall.Kill(-x.pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		logrus.WithFields(logrus.Fields{
			"pid":    x.pid,
			"signal": sig.String(),
		}).WithError(err).Warn("Failed to signal process group")
	}
}

func (x *Execution) classify() domain.ProcessExit {
	if dropped := x.stderrTail.Dropped(); dropped > 0 {
		logrus.WithFields(logrus.Fields{
			"pid":           x.pid,
			"dropped_bytes": dropped,
		}).Debug("Stderr exceeded the retained tail")
	}

	exit := domain.ProcessExit{
		ExitCode:   -1,
		StderrTail: x.stderrTail.String(),
		StdoutTail: x.stdoutTail.String(),
		Duration:   time.Since(x.startedAt),
	}
	if x.cmd.ProcessState != nil {
		exit.ExitCode = x.cmd.ProcessState.ExitCode()
	}

	if reason := x.reason.Load(); reason != reasonNatural {
		exit.Status = domain.ExecutionState(reason)
		return exit
	}

	var exitErr *exec.ExitError
	switch {
	case x.waitErr == nil && exit.ExitCode == 0:
		exit.Status = domain.StateCompleted
		exit.Err = x.pumpErr
	case x.waitErr == nil || errors.As(x.waitErr, &exitErr):
		exit.Status = domain.StateFailed
		exit.Err = x.pumpErr
	default:
		exit.Status = domain.StateFailed
		exit.Err = x.waitErr
	}
	return exit
}

func trimEOL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\r' || s[len(s)-1] == '\n') {
		s = s[:len(s)-1]
	}
	return s
}

// readWatch wraps a pipe read end and tells whether a reader has been
// parked in one Read call since the previous check.
type readWatch struct {
	r       io.Reader
	reading atomic.Bool
	reads   atomic.Int64
	seen    int64
}

func (w *readWatch) Read(p []byte) (int, error) {
	w.reads.Add(1)
	w.reading.Store(true)
	defer w.reading.Store(false)
	return w.r.Read(p)
}

// stalled must only be called from one goroutine.
func (w *readWatch) stalled() bool {
	n := w.reads.Load()
	stuck := w.reading.Load() && n == w.seen
	w.seen = n
	return stuck
}
