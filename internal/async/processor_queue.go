package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
)

// ProcessorQueue is a fixed pool of workers draining a bounded channel.
// Enqueue never blocks: a full or closed queue returns QUEUE_FULL. Submit is
// the blocking variant for batch callers.
type ProcessorQueue struct {
	runner  Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// base is cancelled when a shutdown deadline passes, aborting in-flight runs.
	base   context.Context
	cancel context.CancelFunc

	// stopping is closed first on shutdown to release blocked Submit calls
	// before ch is closed.
	stopping chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*ProcessorQueue)(nil)

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(runner Runner, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		runner:   runner,
		logger:   logger,
		workers:  4,
		timeout:  5 * time.Minute,
		ch:       make(chan Job, 64),
		stopping: make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.base, q.cancel = context.WithCancel(context.Background())
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)
				for job := range q.ch {
					q.process(workerID, job)
				}
				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(q.base, q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	wait := time.Since(job.SubmittedAt)
	var err error
	if job.IsUpdate() {
		err = q.runner.RunUpdateIngestion(ctx, job.TaskID, *job.CandidateID)
	} else {
		err = q.runner.RunIngestion(ctx, job.TaskID, job.Force)
	}
	if err != nil {
		q.logger.Error("processing failed",
			"worker_id", workerID, "task_id", job.TaskID, "code", common.ErrorCode(err), "error", err)
		return
	}
	q.logger.Info("processed task successfully",
		"worker_id", workerID, "task_id", job.TaskID, "queue_wait_ms", wait.Milliseconds())
}

func (q *ProcessorQueue) Enqueue(_ context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return q.shuttingDown(job)
	}
	select {
	case q.ch <- job:
		q.logQueued(job)
		return nil
	default:
		q.logger.Warn("queue full, rejecting task", "task_id", job.TaskID, "capacity", cap(q.ch))
		return common.NewAppError(common.CodeQueueFull, "too many pending tasks", common.ErrQueueFull)
	}
}

// Submit waits for a free slot. It returns ctx.Err() when ctx ends first and
// QUEUE_FULL once shutdown has begun.
func (q *ProcessorQueue) Submit(ctx context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return q.shuttingDown(job)
	}
	select {
	case q.ch <- job:
		q.logQueued(job)
		return nil
	case <-q.stopping:
		return q.shuttingDown(job)
	case <-ctx.Done():
		q.logger.Warn("submit abandoned", "task_id", job.TaskID, "error", ctx.Err())
		return ctx.Err()
	}
}

func (q *ProcessorQueue) logQueued(job Job) {
	q.logger.Info("queued task for processing", "task_id", job.TaskID, "force", job.Force, "update", job.IsUpdate())
}

func (q *ProcessorQueue) shuttingDown(job Job) error {
	q.logger.Warn("cannot enqueue: queue is shutting down", "task_id", job.TaskID)
	return common.NewAppError(common.CodeQueueFull, "queue is shutting down", common.ErrQueueFull)
}

// Pending returns the number of queued, not yet started jobs.
func (q *ProcessorQueue) Pending() int { return len(q.ch) }

// Shutdown stops intake and waits for workers to drain. If ctx ends first the
// in-flight runs are cancelled and left to record their own failure.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.stopOnce.Do(func() { close(q.stopping) })
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context; cancelling in-flight runs")
		q.cancel()
		<-done
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
	q.cancel()
}
