package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the status of an enrichment run
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusInProgress RunStatus = "in-progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// EnrichmentProgress is reported after every batch of an enrichment run
type EnrichmentProgress struct {
	Total        int            `json:"total"`
	Processed    int            `json:"processed"`
	Failed       int            `json:"failed"`
	Batch        int            `json:"batch"`
	TotalBatches int            `json:"total_batches"`
	RateLimit    RateLimitState `json:"rate_limit"`
}

// EnrichmentRun is a queued or executed run of the enrichment job
type EnrichmentRun struct {
	ID                 string     `json:"id"`
	Status             RunStatus  `json:"status"`
	Total              int        `json:"total"`
	Processed          int        `json:"processed"`
	Failed             int        `json:"failed"`
	RateLimitRemaining *int       `json:"rate_limit_remaining"`
	RateLimitResetAt   *int64     `json:"rate_limit_reset_at"`
	ErrorMessage       *string    `json:"error_message"`
	WorkerID           *string    `json:"worker_id"`
	StartedAt          *time.Time `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NewEnrichmentRun creates a pending run with a generated UUID
func NewEnrichmentRun() *EnrichmentRun {
	now := time.Now()
	return &EnrichmentRun{
		ID:        uuid.New().String(),
		Status:    RunStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive checks if the run is pending or in progress
func (r *EnrichmentRun) IsActive() bool {
	return r.Status == RunStatusPending || r.Status == RunStatusInProgress
}

// MarkStarted marks the run as picked up by a worker
func (r *EnrichmentRun) MarkStarted(workerID string) {
	now := time.Now()
	r.Status = RunStatusInProgress
	r.WorkerID = &workerID
	r.StartedAt = &now
}

// MarkCompleted marks the run as completed
func (r *EnrichmentRun) MarkCompleted() {
	now := time.Now()
	r.Status = RunStatusCompleted
	r.CompletedAt = &now
}

// MarkFailed marks the run as failed with the given error message
func (r *EnrichmentRun) MarkFailed(message string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.ErrorMessage = &message
	r.CompletedAt = &now
}

// ApplyProgress copies the counters of a progress report onto the run
func (r *EnrichmentRun) ApplyProgress(p EnrichmentProgress) {
	r.Total = p.Total
	r.Processed = p.Processed
	r.Failed = p.Failed
	remaining := p.RateLimit.Remaining
	resetAt := p.RateLimit.ResetAt
	r.RateLimitRemaining = &remaining
	r.RateLimitResetAt = &resetAt
}
