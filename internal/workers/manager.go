package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/alimgiray/opendev/pkg/logger"
)

// WorkerManager starts and stops a set of workers sharing one context
type WorkerManager struct {
	workers []Worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewWorkerManager creates a new worker manager for the given workers
func NewWorkerManager(workers ...Worker) *WorkerManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerManager{
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// StartAll starts every worker in its own goroutine
func (wm *WorkerManager) StartAll() error {
	for _, worker := range wm.workers {
		wm.startWorker(worker)
	}
	logger.Infof("Started %d workers", len(wm.workers))
	return nil
}

// StopAll gracefully stops all workers and waits for them to return
func (wm *WorkerManager) StopAll() error {
	logger.Info("Stopping all workers...")

	// Cancel the context to signal all workers to stop
	wm.cancel()

	for _, worker := range wm.workers {
		if err := worker.Stop(); err != nil {
			logger.WithError(err).WithField("worker_id", worker.GetWorkerID()).Errorf("Error stopping worker")
		}
	}

	wm.wg.Wait()

	logger.Info("All workers stopped")
	return nil
}

// startWorker starts a single worker in a goroutine
func (wm *WorkerManager) startWorker(worker Worker) {
	wm.wg.Add(1)
	go func() {
		defer wm.wg.Done()
		if err := worker.Start(wm.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).WithField("worker_id", worker.GetWorkerID()).Errorf("Worker stopped with error")
		}
	}()
}

// GetWorkerStatus returns whether each worker is running, keyed by worker ID
func (wm *WorkerManager) GetWorkerStatus() map[string]bool {
	status := make(map[string]bool)
	for _, worker := range wm.workers {
		if r, ok := worker.(interface{ IsRunning() bool }); ok {
			status[worker.GetWorkerID()] = r.IsRunning()
		} else {
			status[worker.GetWorkerID()] = false
		}
	}
	return status
}
