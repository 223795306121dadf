package workqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the task will not run again.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Task is the interface that all work queue tasks must implement.
type Task interface {
	// ID returns a unique identifier for this task.
	ID() string

	// Name returns a human-readable name for logs.
	Name() string

	// Execute runs the task. It receives:
	// - ctx: context for cancellation
	// - enqueuer: allows the task to enqueue follow-up tasks
	// Returns an error if the task fails.
	Execute(ctx context.Context, enqueuer TaskEnqueuer) error
}

// TaskEnqueuer allows tasks to enqueue follow-up tasks.
type TaskEnqueuer interface {
	Enqueue(task Task)
}

// TaskState holds the runtime state of a task.
type TaskState struct {
	Task        Task
	Status      TaskStatus
	RetryCount  int
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       error

	mu sync.RWMutex
}

// NewTaskState creates a new TaskState wrapping a task.
func NewTaskState(task Task) *TaskState {
	return &TaskState{
		Task:   task,
		Status: TaskStatusPending,
	}
}

// GetStatus returns the current status (thread-safe).
func (ts *TaskState) GetStatus() TaskStatus {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.Status
}

// SetStatus updates the status and timestamps (thread-safe).
func (ts *TaskState) SetStatus(status TaskStatus) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.Status = status
	now := time.Now()

	switch {
	case status == TaskStatusRunning:
		ts.StartedAt = &now
	case status.IsTerminal():
		ts.CompletedAt = &now
	}
}

// SetError sets the error (thread-safe).
func (ts *TaskState) SetError(err error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.Error = err
}

// GetError returns the error (thread-safe).
func (ts *TaskState) GetError() error {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.Error
}

// IncrementRetryCount bumps and returns the retry count (thread-safe).
func (ts *TaskState) IncrementRetryCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.RetryCount++
	return ts.RetryCount
}

// GetRetryCount returns the retry count (thread-safe).
func (ts *TaskState) GetRetryCount() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.RetryCount
}

// Snapshot returns an immutable copy of the task state.
func (ts *TaskState) Snapshot() TaskSnapshot {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	var errMsg string
	if ts.Error != nil {
		errMsg = ts.Error.Error()
	}

	return TaskSnapshot{
		ID:          ts.Task.ID(),
		Name:        ts.Task.Name(),
		Status:      ts.Status,
		RetryCount:  ts.RetryCount,
		StartedAt:   ts.StartedAt,
		CompletedAt: ts.CompletedAt,
		Error:       errMsg,
	}
}

// TaskSnapshot is an immutable view of task state for serialization.
type TaskSnapshot struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      TaskStatus `json:"status"`
	RetryCount  int        `json:"retry_count"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// BaseTask provides common task functionality.
// Embed this in concrete task implementations.
type BaseTask struct {
	id   string
	name string
}

// NewBaseTask creates a new base task.
func NewBaseTask(name string) BaseTask {
	return BaseTask{
		id:   uuid.New().String(),
		name: name,
	}
}

// ID returns the task ID.
func (t BaseTask) ID() string {
	return t.id
}

// Name returns the task name.
func (t BaseTask) Name() string {
	return t.name
}

// FuncTask adapts a plain function to Task.
type FuncTask struct {
	BaseTask
	fn func(ctx context.Context) error
}

// NewFuncTask wraps fn as a named task.
func NewFuncTask(name string, fn func(ctx context.Context) error) *FuncTask {
	return &FuncTask{BaseTask: NewBaseTask(name), fn: fn}
}

// Execute calls the wrapped function.
func (t *FuncTask) Execute(ctx context.Context, _ TaskEnqueuer) error {
	return t.fn(ctx)
}
