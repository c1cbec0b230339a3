package server

import (
	"context"
	"time"
)

// ShutdownCoordinator owns the base context of every request. Cancelling it
// lets long live reads notice shutdown before the server stops accepting
// connections.
type ShutdownCoordinator struct {
	baseCtx     context.Context
	cancel      context.CancelFunc
	gracePeriod time.Duration
}

func NewShutdownCoordinator(gracePeriod time.Duration) *ShutdownCoordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &ShutdownCoordinator{
		baseCtx:     ctx,
		cancel:      cancel,
		gracePeriod: gracePeriod,
	}
}

func (sc *ShutdownCoordinator) BaseContext() context.Context {
	return sc.baseCtx
}

// InitiateShutdown cancels in-flight requests and waits up to the grace
// period, returning early if ctx ends first.
func (sc *ShutdownCoordinator) InitiateShutdown(ctx context.Context) {
	sc.cancel()

	t := time.NewTimer(sc.gracePeriod)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
