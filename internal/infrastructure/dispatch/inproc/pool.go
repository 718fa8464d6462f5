// Package inproc runs statement jobs on a bounded pool of goroutines inside
// the API process.
package inproc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/kakeibo/internal/core/domain"
	"github.com/kirillkom/kakeibo/internal/core/ports"
)

// Pool implements ports.JobDispatcher. Dispatch never blocks: a full queue
// is reported as a temporary failure so the caller can release its claim.
type Pool struct {
	workers int
	jobs    chan domain.StatementJob
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		workers: workers,
		jobs:    make(chan domain.StatementJob, queueSize),
		logger:  logger,
	}
}

// Start launches the workers. Runs inherit ctx, not the context of the
// request that dispatched them.
func (p *Pool) Start(ctx context.Context, runner ports.StatementRunner) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			for job := range p.jobs {
				p.run(ctx, worker, runner, job)
			}
		}(i)
	}
	p.logger.Info("statement_pool_started", "workers", p.workers, "queue_size", cap(p.jobs))
}

func (p *Pool) run(ctx context.Context, worker int, runner ports.StatementRunner, job domain.StatementJob) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("statement_job_panic", "worker", worker, "owner_id", job.OwnerID, "panic", fmt.Sprint(r))
		}
	}()
	if err := runner.Run(ctx, job); err != nil {
		p.logger.Warn("statement_job_failed", "worker", worker, "owner_id", job.OwnerID, "error", err)
	}
}

func (p *Pool) Dispatch(_ context.Context, job domain.StatementJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return domain.WrapError(domain.ErrTemporary, "dispatch statement job", fmt.Errorf("pool is shut down"))
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return domain.WrapError(domain.ErrTemporary, "dispatch statement job", fmt.Errorf("queue full (%d pending)", cap(p.jobs)))
	}
}

// Close stops accepting jobs and waits for queued and running jobs to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}
