package output

import (
	"context"

	"codex-gateway/internal/domain"
)

// AdmissionController interface - Output port
// Bounds how many external executions run at once. Waiters are admitted in
// arrival order.
type AdmissionController interface {
	// Acquire blocks until a slot is free. It fails with domain.ErrQueueTimeout
	// when the queue timeout elapses, with domain.ErrRejected when the
	// controller is shutting down, and with ctx.Err() when the caller gives up.
	Acquire(ctx context.Context, requestID string) (domain.Slot, error)

	// Release returns a slot. Releasing the same slot twice is a no-op.
	Release(slot domain.Slot)

	// Shutdown rejects queued and future acquires. Held slots are unaffected.
	Shutdown()

	// Stats returns a snapshot of the controller.
	Stats() domain.AdmissionStats
}
