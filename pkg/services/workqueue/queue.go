package workqueue

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/retry"
)

// RetryConfig configures retry behavior for failed tasks.
type RetryConfig struct {
	MaxRetries     int           // Maximum number of retry attempts (0 = no retries)
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration (cap)
	BackoffFactor  float64       // Multiplier for exponential backoff
}

// DefaultRetryConfig returns the retry policy for background discovery.
// Backoff schedule: 500ms, 1s, 2s, capped at 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Queue runs tasks in the background with bounded concurrency. It is long
// lived: finished tasks are dropped from the active list and only counted.
type Queue struct {
	mu        sync.Mutex
	tasks     []*TaskState // pending and running only
	cancelled bool

	// Concurrency control strategy
	strategy ConcurrencyStrategy

	// Retry configuration for transient errors
	retryConfig RetryConfig

	// Totals since the queue was created
	completed int
	failed    int
	cancelCnt int

	// firstErr is the first failure since the queue last went idle
	firstErr error

	// done is closed whenever the queue is idle
	done chan struct{}
	// wg tracks running goroutines
	wg sync.WaitGroup

	// Cancellation context for running tasks
	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithStrategy sets the concurrency strategy.
func WithStrategy(strategy ConcurrencyStrategy) QueueOption {
	return func(q *Queue) {
		if strategy != nil {
			q.strategy = strategy
		}
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(config RetryConfig) QueueOption {
	return func(q *Queue) {
		q.retryConfig = config
	}
}

// New creates a new work queue with the given options.
// Without WithStrategy, tasks run one at a time.
func New(logger *zap.Logger, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	close(done)

	q := &Queue{
		strategy:    NewSerializedStrategy(),
		retryConfig: DefaultRetryConfig(),
		done:        done,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.Named("workqueue"),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Enqueue adds a task to the queue and attempts to start eligible tasks.
func (q *Queue) Enqueue(task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancelled {
		q.logger.Warn("queue cancelled, ignoring enqueue",
			zap.String("task_id", task.ID()),
			zap.String("task_name", task.Name()))
		return
	}

	q.resetDoneLocked()

	q.tasks = append(q.tasks, NewTaskState(task))

	q.logger.Debug("task enqueued",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()))

	q.tryStartTasksLocked()
}

// tryStartTasksLocked starts pending tasks while the strategy allows it.
// Must be called with lock held.
func (q *Queue) tryStartTasksLocked() {
	if q.cancelled {
		return
	}

	for _, ts := range q.tasks {
		if ts.GetStatus() != TaskStatusPending {
			continue
		}
		if !q.strategy.CanStart() {
			return
		}

		q.strategy.OnStart()
		ts.SetStatus(TaskStatusRunning)

		q.logger.Debug("starting task",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()))

		q.wg.Add(1)
		go q.runTask(ts)
	}
}

// runTask executes a task with retry logic for transient errors.
func (q *Queue) runTask(ts *TaskState) {
	defer q.wg.Done()

	var lastErr error

	for attempt := 0; attempt <= q.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := q.calculateBackoff(attempt)
			q.logger.Info("retrying task after backoff",
				zap.String("task_id", ts.Task.ID()),
				zap.String("task_name", ts.Task.Name()),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", q.retryConfig.MaxRetries),
				zap.Duration("backoff", backoff))

			select {
			case <-q.ctx.Done():
				q.completeTask(ts, q.ctx.Err())
				return
			case <-time.After(backoff):
			}
		}

		err := ts.Task.Execute(q.ctx, q)
		if err == nil {
			q.completeTask(ts, nil)
			return
		}

		lastErr = err

		if errors.Is(err, context.Canceled) {
			break
		}

		if !retry.IsRetryable(err) {
			q.logger.Warn("non-retryable error, failing task immediately",
				zap.String("task_id", ts.Task.ID()),
				zap.String("task_name", ts.Task.Name()),
				zap.Error(err))
			break
		}

		retryCount := ts.IncrementRetryCount()

		if attempt >= q.retryConfig.MaxRetries {
			q.logger.Error("task failed after max retries",
				zap.String("task_id", ts.Task.ID()),
				zap.String("task_name", ts.Task.Name()),
				zap.Int("retry_count", retryCount),
				zap.Error(err))
			break
		}

		q.logger.Warn("retryable error encountered",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", q.retryConfig.MaxRetries),
			zap.Error(err))
	}

	q.completeTask(ts, lastErr)
}

// calculateBackoff computes the backoff duration for a retry attempt.
// Uses exponential backoff with ±10% jitter.
func (q *Queue) calculateBackoff(attempt int) time.Duration {
	backoff := float64(q.retryConfig.InitialBackoff) *
		math.Pow(q.retryConfig.BackoffFactor, float64(attempt-1))

	if backoff > float64(q.retryConfig.MaxBackoff) {
		backoff = float64(q.retryConfig.MaxBackoff)
	}

	jitter := backoff * 0.1 * (rand.Float64()*2 - 1)

	return time.Duration(backoff + jitter)
}

// completeTask records the outcome, drops the task from the active list and
// starts whatever can run next.
func (q *Queue) completeTask(ts *TaskState, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.strategy.OnComplete()

	switch {
	case err == nil:
		ts.SetStatus(TaskStatusCompleted)
		q.completed++
		q.logger.Debug("task completed",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()),
			zap.Int("retry_count", ts.GetRetryCount()))
	case errors.Is(err, context.Canceled):
		ts.SetStatus(TaskStatusCancelled)
		q.cancelCnt++
		q.logger.Info("task cancelled",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()))
	default:
		ts.SetStatus(TaskStatusFailed)
		ts.SetError(err)
		q.failed++
		if q.firstErr == nil {
			q.firstErr = err
		}
		q.logger.Error("task failed",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()),
			zap.Int("retry_count", ts.GetRetryCount()),
			zap.Error(err))
	}

	q.removeLocked(ts)

	if len(q.tasks) == 0 {
		q.closeDoneLocked()
		return
	}

	q.tryStartTasksLocked()
}

// removeLocked drops ts from the active list.
// Must be called with lock held.
func (q *Queue) removeLocked(ts *TaskState) {
	for i, t := range q.tasks {
		if t == ts {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return
		}
	}
}

// closeDoneLocked safely closes the done channel.
// Must be called with lock held.
func (q *Queue) closeDoneLocked() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}

// resetDoneLocked opens a new busy period if the queue was idle.
// Must be called with lock held.
func (q *Queue) resetDoneLocked() {
	select {
	case <-q.done:
		q.done = make(chan struct{})
		q.firstErr = nil
	default:
	}
}

// GetTasks returns a snapshot of pending and running tasks.
func (q *Queue) GetTasks() []TaskSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	snapshots := make([]TaskSnapshot, len(q.tasks))
	for i, ts := range q.tasks {
		snapshots[i] = ts.Snapshot()
	}
	return snapshots
}

// Wait blocks until the queue is idle or the context is done.
// Returns the first task failure of the busy period, if any.
// Returns ctx.Err() if the context was done first; tasks keep running.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	done := q.done
	q.mu.Unlock()

	select {
	case <-done:
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.firstErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops accepting tasks, signals running tasks to stop and marks
// pending ones cancelled.
func (q *Queue) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancelled {
		return
	}

	q.cancelled = true
	q.logger.Info("queue cancelled, signaling running tasks to stop")

	q.cancel()

	remaining := q.tasks[:0]
	for _, ts := range q.tasks {
		if ts.GetStatus() == TaskStatusPending {
			ts.SetStatus(TaskStatusCancelled)
			q.cancelCnt++
			continue
		}
		remaining = append(remaining, ts)
	}
	q.tasks = remaining

	if len(q.tasks) == 0 {
		q.closeDoneLocked()
	}
}

// Shutdown cancels the queue and waits for running tasks to return.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.Cancel()

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Progress returns a progress summary.
func (q *Queue) Progress() Progress {
	q.mu.Lock()
	defer q.mu.Unlock()

	p := Progress{
		Completed: q.completed,
		Failed:    q.failed,
		Cancelled: q.cancelCnt,
	}
	for _, ts := range q.tasks {
		switch ts.GetStatus() {
		case TaskStatusPending:
			p.Pending++
		case TaskStatusRunning:
			p.Running++
		}
	}
	return p
}

// Progress holds queue statistics. Pending and Running are current;
// the rest are totals since the queue was created.
type Progress struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}
