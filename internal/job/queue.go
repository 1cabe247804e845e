package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vendorlens/reconciler/internal/common"
)

// Task is one unit of background work bound to an engine job.
type Task struct {
	JobID       uuid.UUID
	SubmittedAt time.Time
	Run         func(ctx context.Context) error
}

// Queue drives background tasks with a bounded worker pool.
type Queue struct {
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type QueueOption func(*Queue)

func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}

func WithTaskTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(logger *slog.Logger, opts ...QueueOption) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Task, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for t := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := t.Run(ctx)
					cancel()

					if err != nil {
						q.logger.Error("task failed", "worker_id", workerID, "job_id", t.JobID, "error", err)
					} else {
						q.logger.Info("task finished", "worker_id", workerID, "job_id", t.JobID)
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue submits a task. When the channel is full the caller blocks,
// applying backpressure instead of dropping work. After Shutdown the task is
// rejected with an error so the caller can fail its job record.
func (q *Queue) Enqueue(_ context.Context, t Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", t.JobID)
		return common.WrapError(common.ErrInternal, "worker queue is shut down")
	}
	select {
	case q.ch <- t:
		q.logger.Info("queued task", "job_id", t.JobID)
	default:
		q.logger.Warn("queue full, applying backpressure", "job_id", t.JobID)
		q.ch <- t
	}
	return nil
}

// Shutdown drains in-flight tasks, bounded by ctx.
func (q *Queue) Shutdown(ctx context.Context) {
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
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
