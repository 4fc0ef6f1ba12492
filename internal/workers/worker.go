package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Worker interface defines the contract for all workers
type Worker interface {
	// Start runs the worker until ctx is cancelled or Stop is called
	Start(ctx context.Context) error

	// Stop gracefully stops the worker
	Stop() error

	// GetWorkerID returns the unique identifier for this worker
	GetWorkerID() string
}

// BaseWorker provides common functionality for all workers
type BaseWorker struct {
	WorkerID string
	StopChan chan struct{}

	running  atomic.Bool
	stopOnce sync.Once
}

// NewBaseWorker creates a new base worker
func NewBaseWorker(workerID string) *BaseWorker {
	return &BaseWorker{
		WorkerID: workerID,
		StopChan: make(chan struct{}),
	}
}

// GetWorkerID returns the worker's unique identifier
func (w *BaseWorker) GetWorkerID() string {
	return w.WorkerID
}

// Stop gracefully stops the worker. Calling it more than once is a no-op.
func (w *BaseWorker) Stop() error {
	w.stopOnce.Do(func() {
		close(w.StopChan)
	})
	return nil
}

// IsRunning checks if the worker is currently running
func (w *BaseWorker) IsRunning() bool {
	return w.running.Load()
}

func (w *BaseWorker) setRunning(running bool) {
	w.running.Store(running)
}

// wait pauses for d, returning false when the worker should stop instead
func (w *BaseWorker) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-w.StopChan:
		return false
	case <-timer.C:
		return true
	}
}
