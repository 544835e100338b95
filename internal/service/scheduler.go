package service

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	appErr "ojudge/pkg/errors"
)

// DefaultWorkers is the judge worker pool size when unconfigured.
const DefaultWorkers = 4

// DefaultBacklog is the queue capacity when unconfigured.
const DefaultBacklog = 1024

// Scheduler dispatches queued job ids to a fixed worker pool. Each job
// id is in flight at most once; re-enqueueing an active id is rejected.
// Workers block on the queue channel, so an idle pool consumes nothing.
type Scheduler struct {
	queue   chan int64
	process func(ctx context.Context, id int64)

	group  *errgroup.Group
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[int64]struct{}
	active  map[int64]context.CancelFunc
}

// NewScheduler creates a stopped scheduler. process is invoked from
// worker goroutines with a per-job cancelable context.
func NewScheduler(workers, backlog int, process func(ctx context.Context, id int64)) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	s := &Scheduler{
		queue:   make(chan int64, backlog),
		process: process,
		pending: make(map[int64]struct{}),
		active:  make(map[int64]context.CancelFunc),
	}
	s.start(workers)
	return s
}

func (s *Scheduler) start(workers int) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		s.group.Go(func() error {
			return s.worker(ctx)
		})
	}
}

func (s *Scheduler) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case id := <-s.queue:
			s.runOne(ctx, id)
		}
	}
}

func (s *Scheduler) runOne(ctx context.Context, id int64) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.active[id] = cancel
	s.mu.Unlock()

	s.process(jobCtx, id)

	s.mu.Lock()
	delete(s.active, id)
	delete(s.pending, id)
	s.mu.Unlock()
}

// Enqueue schedules one job id. A job already queued or running is
// rejected with JobAlreadyActive; a full queue with ServiceUnavailable.
func (s *Scheduler) Enqueue(id int64) error {
	s.mu.Lock()
	if _, ok := s.pending[id]; ok {
		s.mu.Unlock()
		return appErr.Newf(appErr.JobAlreadyActive, "Job %d is already being judged.", id)
	}
	s.pending[id] = struct{}{}
	s.mu.Unlock()

	select {
	case s.queue <- id:
		return nil
	default:
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return appErr.New(appErr.ServiceUnavailable).WithMessage("Judge queue is full.")
	}
}

// Cancel aborts the job if it is currently running, reporting whether a
// running job was found. Queued-but-not-started jobs are not touched
// here; the caller flips their stored state and the worker skips them.
func (s *Scheduler) Cancel(id int64) bool {
	s.mu.Lock()
	cancel, ok := s.active[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Shutdown stops the workers and waits for in-flight jobs, bounded by
// the context.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan error, 1)
	go func() { done <- s.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
