package services

import (
	"errors"
	"fmt"

	"github.com/alimgiray/opendev/internal/models"
	"github.com/alimgiray/opendev/internal/repositories"
)

// ErrRunActive is returned when a run is requested while another is pending or in progress
var ErrRunActive = errors.New("an enrichment run is already pending or in progress")

// EnrichmentRunService queues enrichment runs and tracks their progress
type EnrichmentRunService struct {
	runRepo *repositories.EnrichmentRunRepository
}

// NewEnrichmentRunService creates a new enrichment run service
func NewEnrichmentRunService(runRepo *repositories.EnrichmentRunRepository) *EnrichmentRunService {
	return &EnrichmentRunService{
		runRepo: runRepo,
	}
}

// QueueRun creates a pending run. Only one run may be active at a time.
func (s *EnrichmentRunService) QueueRun() (*models.EnrichmentRun, error) {
	active, err := s.runRepo.GetActive()
	if err != nil {
		return nil, fmt.Errorf("failed to check existing runs: %w", err)
	}
	if active != nil {
		return active, ErrRunActive
	}

	run := models.NewEnrichmentRun()
	if err := s.runRepo.Create(run); err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun returns a run by id, nil when unknown
func (s *EnrichmentRunService) GetRun(id string) (*models.EnrichmentRun, error) {
	if id == "" {
		return nil, errors.New("run ID is required")
	}
	return s.runRepo.GetByID(id)
}

// ListRuns returns the most recent runs
func (s *EnrichmentRunService) ListRuns(limit int) ([]*models.EnrichmentRun, error) {
	return s.runRepo.ListRecent(limit)
}

// ClaimNext marks the oldest pending run as started by workerID
func (s *EnrichmentRunService) ClaimNext(workerID string) (*models.EnrichmentRun, error) {
	return s.runRepo.ClaimNextPending(workerID)
}

// RecordProgress persists the counters of a running run
func (s *EnrichmentRunService) RecordProgress(run *models.EnrichmentRun, progress models.EnrichmentProgress) error {
	run.ApplyProgress(progress)
	return s.runRepo.Update(run)
}

// Complete marks a run as completed with its final counters
func (s *EnrichmentRunService) Complete(run *models.EnrichmentRun, progress models.EnrichmentProgress) error {
	run.ApplyProgress(progress)
	run.MarkCompleted()
	return s.runRepo.Update(run)
}

// Fail marks a run as failed
func (s *EnrichmentRunService) Fail(run *models.EnrichmentRun, progress models.EnrichmentProgress, cause error) error {
	run.ApplyProgress(progress)
	run.MarkFailed(cause.Error())
	return s.runRepo.Update(run)
}

// RecoverInterrupted fails runs left in progress by a previous process
func (s *EnrichmentRunService) RecoverInterrupted() (int64, error) {
	return s.runRepo.FailInProgress("interrupted before completion")
}
