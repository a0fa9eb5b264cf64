package engine

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/vantos-systems/workorder-engine/internal/config"
)

// ErrQueueFull is returned by Submit under BackpressureReject when the pool
// has no room left (running workers plus queued admissions at capacity).
var ErrQueueFull = errors.New("engine: worker pool queue is full")

// Pool bounds the number of concurrently executing runs. Admission is
// separate from execution: tickets gate how many tasks may be accepted at
// once (Workers+QueueDepth), while sem gates how many may actually run at
// once (Workers) — the difference between the two is the queue.
type Pool struct {
	sem     *semaphore.Weighted
	tickets chan struct{}
	policy  config.BackpressurePolicy
	wg      sync.WaitGroup
}

// NewPool builds a Pool from cfg.
func NewPool(cfg config.PoolConfig) *Pool {
	return &Pool{
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
		tickets: make(chan struct{}, cfg.Workers+cfg.QueueDepth),
		policy:  cfg.Backpressure,
	}
}

// Submit admits task for execution under ctx. Under BackpressureReject, an
// already-saturated pool returns ErrQueueFull immediately. Under
// BackpressureBlock, Submit blocks until admission is possible or ctx is
// done. Once admitted, task runs as soon as a worker slot frees, which may
// be after Submit has already returned.
func (p *Pool) Submit(ctx context.Context, task func(context.Context)) error {
	if err := p.admit(ctx); err != nil {
		return err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.tickets }()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)

		task(ctx)
	}()
	return nil
}

func (p *Pool) admit(ctx context.Context) error {
	if p.policy == config.BackpressureReject {
		select {
		case p.tickets <- struct{}{}:
			return nil
		default:
			return ErrQueueFull
		}
	}
	select {
	case p.tickets <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every admitted task has finished running.
func (p *Pool) Wait() {
	p.wg.Wait()
}
