package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codex-gateway/internal/domain"
	"codex-gateway/internal/ports/output"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Compile-time check to ensure SlotPool implements AdmissionController interface
var _ output.AdmissionController = (*SlotPool)(nil)

// SlotPool struct - Output adapter bounding concurrent codex executions.
// Waiters are served in arrival order by the underlying weighted semaphore,
// which also removes cancelled waiters without reordering the rest.
type SlotPool struct {
	sem          *semaphore.Weighted
	limit        int
	queueTimeout time.Duration

	running atomic.Int64
	waiting atomic.Int64

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

// NewSlotPool creates a pool of limit slots. A limit below 1 is raised to 1.
// queueTimeout bounds how long Acquire waits; zero or negative waits forever.
func NewSlotPool(limit int, queueTimeout time.Duration) *SlotPool {
	if limit < 1 {
		limit = 1
	}
	return &SlotPool{
		sem:          semaphore.NewWeighted(int64(limit)),
		limit:        limit,
		queueTimeout: queueTimeout,
		done:         make(chan struct{}),
	}
}

// Acquire waits for a free slot.
func (p *SlotPool) Acquire(ctx context.Context, requestID string) (domain.Slot, error) {
	if p.closed.Load() {
		return nil, domain.NewExecutionError(domain.KindRejected, "", nil)
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.done:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	if p.queueTimeout > 0 {
		var cancelTimeout context.CancelFunc
		waitCtx, cancelTimeout = context.WithTimeout(waitCtx, p.queueTimeout)
		defer cancelTimeout()
	}

	start := time.Now()
	p.waiting.Add(1)
	err := p.sem.Acquire(waitCtx, 1)
	p.waiting.Add(-1)

	if err != nil {
		switch {
		case p.closed.Load():
			return nil, domain.NewExecutionError(domain.KindRejected, "", err)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			logrus.WithFields(logrus.Fields{
				"request_id":    requestID,
				"queue_timeout": p.queueTimeout.String(),
			}).Warn("Timed out waiting for a codex slot")
			return nil, domain.NewExecutionError(domain.KindQueueTimeout, "", err)
		}
	}

	if p.closed.Load() {
		p.sem.Release(1)
		return nil, domain.NewExecutionError(domain.KindRejected, "", nil)
	}

	p.running.Add(1)
	if wait := time.Since(start); wait > time.Second {
		logrus.WithFields(logrus.Fields{
			"request_id": requestID,
			"wait_ms":    wait.Milliseconds(),
		}).Debug("Codex slot acquired after queueing")
	}
	return &SlotToken{pool: p, requestID: requestID}, nil
}

// Release returns a slot obtained from Acquire.
func (p *SlotPool) Release(slot domain.Slot) {
	if slot != nil {
		slot.Release()
	}
}

// Shutdown rejects queued and future acquires.
func (p *SlotPool) Shutdown() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.done)
		logrus.WithField("running", p.running.Load()).Info("Codex slot pool stopped accepting work")
	})
}

// Stats returns a snapshot of the pool.
func (p *SlotPool) Stats() domain.AdmissionStats {
	return domain.AdmissionStats{
		Limit:     p.limit,
		Running:   int(p.running.Load()),
		Waiting:   int(p.waiting.Load()),
		Accepting: !p.closed.Load(),
	}
}

// SlotToken is one held slot. Release is idempotent.
type SlotToken struct {
	pool      *SlotPool
	requestID string
	released  atomic.Bool
}

// Release returns the slot to its pool the first time it is called.
func (t *SlotToken) Release() {
	if !t.released.CompareAndSwap(false, true) {
		return
	}
	t.pool.running.Add(-1)
	t.pool.sem.Release(1)
}

// RequestID returns the id of the request holding the slot.
func (t *SlotToken) RequestID() string {
	return t.requestID
}
