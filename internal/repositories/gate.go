package repositories

import (
	"context"
	"time"

	apperrors "github.com/openfund-vn/fundcore/internal/errors"
)

// WriteGate serializes every mutating operation in the process. Reads never
// take the gate; they see the last committed state through the database.
type WriteGate struct {
	slot    chan struct{}
	timeout time.Duration
}

// NewWriteGate creates a gate with the given acquisition timeout.
func NewWriteGate(timeout time.Duration) *WriteGate {
	return &WriteGate{
		slot:    make(chan struct{}, 1),
		timeout: timeout,
	}
}

// Acquire blocks until the gate is free, the context is cancelled, or the
// timeout elapses. Timeout surfaces as ErrBusy.
func (g *WriteGate) Acquire(ctx context.Context) error {
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case g.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return &apperrors.ErrBusy{Timeout: g.timeout.String()}
	}
}

// Release frees the gate. Must be called exactly once per successful Acquire.
func (g *WriteGate) Release() {
	<-g.slot
}
