package service

import (
	"context"
	"sync"
	"time"

	"github.com/resonantmigration/worldstate-service/internal/models"
	"github.com/resonantmigration/worldstate-service/internal/observability"
)

// coalescer collapses concurrent cache misses for the same quantized
// location into a single aggregation cycle. The first caller becomes the
// leader and runs the cycle on a detached context so a follower's
// cancellation can never abort work others are waiting on.
type coalescer struct {
	mu       sync.Mutex
	inflight map[string]*inflightCycle
	timeout  time.Duration
}

type inflightCycle struct {
	done chan struct{}
	ws   models.WorldState
	err  error
}

func newCoalescer(timeout time.Duration) *coalescer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &coalescer{
		inflight: make(map[string]*inflightCycle),
		timeout:  timeout,
	}
}

func (c *coalescer) do(ctx context.Context, key string, fn func(context.Context) (models.WorldState, error)) (models.WorldState, error) {
	c.mu.Lock()
	if cyc, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		observability.CoalescedCyclesTotal.Inc()
		select {
		case <-cyc.done:
			return cyc.ws, cyc.err
		case <-ctx.Done():
			return models.WorldState{}, ctx.Err()
		}
	}
	cyc := &inflightCycle{done: make(chan struct{})}
	c.inflight[key] = cyc
	c.mu.Unlock()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	cyc.ws, cyc.err = fn(runCtx)
	close(cyc.done)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	return cyc.ws, cyc.err
}
