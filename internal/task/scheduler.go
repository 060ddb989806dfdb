package task

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
)

// ErrQueueFull is returned by Submit when the scheduler's buffer has no
// room; callers surface it as backpressure rather than blocking.
var ErrQueueFull = errors.New("task queue is full")

// ErrSchedulerClosed is returned by Submit after Stop.
var ErrSchedulerClosed = errors.New("scheduler is closed")

// Job is one unit of background work bound to a task id.
type Job struct {
	ID  string
	Run func(ctx context.Context)
}

// Scheduler hands submitted jobs to a fixed pool of workers. Submission
// never blocks; a full queue is reported to the caller. Once accepted, a
// job runs to completion; there is no cancellation path for individual
// tasks, only process shutdown.
type Scheduler struct {
	jobs   chan Job
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// SchedulerConfig holds pool sizing; zero values pick defaults.
type SchedulerConfig struct {
	Workers   int // defaults to GOMAXPROCS
	QueueSize int // defaults to 64
}

// NewScheduler creates the scheduler and starts its workers.
func NewScheduler(ctx context.Context, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		jobs:   make(chan Job, queueSize),
		logger: logger,
	}

	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker(ctx, i)
	}
	logger.Debug("scheduler started", "workers", workers, "queue_size", queueSize)
	return s
}

// Submit queues a job for execution. It returns immediately; ErrQueueFull
// signals that the caller should shed load.
func (s *Scheduler) Submit(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	select {
	case s.jobs <- job:
		s.logger.Debug("job queued", "task_id", job.ID, "queue_len", len(s.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight and queued jobs to
// drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug("scheduler stopped")
}

func (s *Scheduler) worker(ctx context.Context, n int) {
	defer s.wg.Done()
	for job := range s.jobs {
		s.logger.Debug("worker picked up job", "worker", n, "task_id", job.ID)
		job.Run(ctx)
	}
}
