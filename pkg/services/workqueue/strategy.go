package workqueue

import "sync"

// ConcurrencyStrategy controls how many tasks may run at once.
// The queue calls it with its own lock held; implementations still guard
// their state so they can be shared or inspected from tests.
type ConcurrencyStrategy interface {
	// CanStart returns true if another task may start now.
	CanStart() bool
	// OnStart records that a task started.
	OnStart()
	// OnComplete records that a task finished, whatever the outcome.
	OnComplete()
}

// BoundedStrategy allows up to max tasks to run in parallel.
type BoundedStrategy struct {
	mu      sync.Mutex
	max     int
	running int
}

// NewBoundedStrategy creates a strategy with the given parallelism.
// Values below 1 are treated as 1.
func NewBoundedStrategy(max int) *BoundedStrategy {
	if max < 1 {
		max = 1
	}
	return &BoundedStrategy{max: max}
}

// NewSerializedStrategy runs one task at a time.
func NewSerializedStrategy() *BoundedStrategy {
	return NewBoundedStrategy(1)
}

func (s *BoundedStrategy) CanStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running < s.max
}

func (s *BoundedStrategy) OnStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running++
}

func (s *BoundedStrategy) OnComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running > 0 {
		s.running--
	}
}

// Running returns the number of tasks currently counted as running.
func (s *BoundedStrategy) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
