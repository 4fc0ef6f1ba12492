package workers

import (
	"context"
	"time"

	"github.com/alimgiray/opendev/internal/models"
	"github.com/alimgiray/opendev/internal/services"
	"github.com/alimgiray/opendev/pkg/logger"
	"github.com/sirupsen/logrus"
)

// RunQueue is the run bookkeeping the enrichment worker needs
type RunQueue interface {
	ClaimNext(workerID string) (*models.EnrichmentRun, error)
	RecordProgress(run *models.EnrichmentRun, progress models.EnrichmentProgress) error
	Complete(run *models.EnrichmentRun, progress models.EnrichmentProgress) error
	Fail(run *models.EnrichmentRun, progress models.EnrichmentProgress, cause error) error
	RecoverInterrupted() (int64, error)
}

// Enricher runs one pass of the enrichment job
type Enricher interface {
	EnrichWithProgress(ctx context.Context, token string, onProgress services.ProgressFunc) (models.EnrichmentProgress, error)
}

const defaultErrorDelay = 5 * time.Second

// EnrichmentWorker executes queued enrichment runs one at a time
type EnrichmentWorker struct {
	*BaseWorker
	runs         RunQueue
	enricher     Enricher
	token        string
	pollInterval time.Duration
	errorDelay   time.Duration
}

// NewEnrichmentWorker creates a new enrichment worker
func NewEnrichmentWorker(workerID string, runs RunQueue, enricher Enricher, token string, pollInterval time.Duration) *EnrichmentWorker {
	return &EnrichmentWorker{
		BaseWorker:   NewBaseWorker(workerID),
		runs:         runs,
		enricher:     enricher,
		token:        token,
		pollInterval: pollInterval,
		errorDelay:   defaultErrorDelay,
	}
}

// Start begins the enrichment worker process
func (w *EnrichmentWorker) Start(ctx context.Context) error {
	w.setRunning(true)
	defer w.setRunning(false)

	log := logger.WithField("worker_id", w.WorkerID)
	log.Info("Enrichment worker started")

	if n, err := w.runs.RecoverInterrupted(); err != nil {
		log.WithError(err).Warn("Failed to recover interrupted runs")
	} else if n > 0 {
		log.WithField("runs", n).Warn("Marked interrupted runs as failed")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("Enrichment worker stopping due to context cancellation")
			return ctx.Err()
		case <-w.StopChan:
			log.Info("Enrichment worker stopping")
			return nil
		default:
		}

		run, err := w.runs.ClaimNext(w.WorkerID)
		if err != nil {
			log.WithError(err).Error("Error claiming enrichment run")
			w.wait(ctx, w.errorDelay)
			continue
		}
		if run == nil {
			w.wait(ctx, w.pollInterval)
			continue
		}

		w.processRun(ctx, run)
	}
}

func (w *EnrichmentWorker) processRun(ctx context.Context, run *models.EnrichmentRun) {
	log := logger.WithFields(logrus.Fields{"worker_id": w.WorkerID, "run_id": run.ID})
	log.Info("Processing enrichment run")

	progress, err := w.enricher.EnrichWithProgress(ctx, w.token, func(p models.EnrichmentProgress) {
		if err := w.runs.RecordProgress(run, p); err != nil {
			log.WithError(err).Warn("Failed to record run progress")
		}
	})
	if err != nil {
		log.WithError(err).Error("Enrichment run failed")
		if err := w.runs.Fail(run, progress, err); err != nil {
			log.WithError(err).Error("Failed to mark run as failed")
		}
		return
	}

	if err := w.runs.Complete(run, progress); err != nil {
		log.WithError(err).Error("Failed to mark run as completed")
		return
	}
	log.WithFields(logrus.Fields{
		"total":     progress.Total,
		"processed": progress.Processed,
		"failed":    progress.Failed,
	}).Info("Enrichment run completed")
}
