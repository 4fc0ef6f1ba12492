package repositories

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/alimgiray/opendev/internal/models"
)

const runColumns = `
	id, status, total, processed, failed, rate_limit_remaining, rate_limit_reset_at,
	error_message, worker_id, started_at, completed_at, created_at, updated_at`

// EnrichmentRunRepository handles database operations for enrichment runs
type EnrichmentRunRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewEnrichmentRunRepository creates a new EnrichmentRunRepository
func NewEnrichmentRunRepository(db *sql.DB) *EnrichmentRunRepository {
	return &EnrichmentRunRepository{db: db}
}

func scanRun(scanner interface{ Scan(...any) error }) (*models.EnrichmentRun, error) {
	run := &models.EnrichmentRun{}
	err := scanner.Scan(
		&run.ID,
		&run.Status,
		&run.Total,
		&run.Processed,
		&run.Failed,
		&run.RateLimitRemaining,
		&run.RateLimitResetAt,
		&run.ErrorMessage,
		&run.WorkerID,
		&run.StartedAt,
		&run.CompletedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Create inserts a new run
func (r *EnrichmentRunRepository) Create(run *models.EnrichmentRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO enrichment_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		run.ID,
		run.Status,
		run.Total,
		run.Processed,
		run.Failed,
		run.RateLimitRemaining,
		run.RateLimitResetAt,
		run.ErrorMessage,
		run.WorkerID,
		run.StartedAt,
		run.CompletedAt,
		run.CreatedAt,
		run.UpdatedAt,
	)
	return err
}

// GetByID retrieves a run by ID, nil when it does not exist
func (r *EnrichmentRunRepository) GetByID(id string) (*models.EnrichmentRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM enrichment_runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// ListRecent returns the most recent runs, newest first
func (r *EnrichmentRunRepository) ListRecent(limit int) ([]*models.EnrichmentRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT ` + runColumns + `
		FROM enrichment_runs
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, boundLimit(limit, 20))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*models.EnrichmentRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetActive returns the oldest pending or in-progress run, nil when idle
func (r *EnrichmentRunRepository) GetActive() (*models.EnrichmentRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT ` + runColumns + `
		FROM enrichment_runs
		WHERE status IN (?, ?)
		ORDER BY created_at ASC
		LIMIT 1
	`

	run, err := scanRun(r.db.QueryRow(query, models.RunStatusPending, models.RunStatusInProgress))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// ClaimNextPending marks the oldest pending run as in progress for workerID
// and returns it. Returns nil when nothing is pending.
func (r *EnrichmentRunRepository) ClaimNextPending(workerID string) (*models.EnrichmentRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `
		SELECT ` + runColumns + `
		FROM enrichment_runs
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT 1
	`

	run, err := scanRun(tx.QueryRow(query, models.RunStatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	run.MarkStarted(workerID)
	run.UpdatedAt = time.Now()
	_, err = tx.Exec(`
		UPDATE enrichment_runs
		SET status = ?, worker_id = ?, started_at = ?, updated_at = ?
		WHERE id = ?
	`, run.Status, run.WorkerID, run.StartedAt, run.UpdatedAt, run.ID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return run, nil
}

// Update persists the mutable fields of a run
func (r *EnrichmentRunRepository) Update(run *models.EnrichmentRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run.UpdatedAt = time.Now()
	query := `
		UPDATE enrichment_runs
		SET status = ?, total = ?, processed = ?, failed = ?, rate_limit_remaining = ?,
		    rate_limit_reset_at = ?, error_message = ?, worker_id = ?, started_at = ?,
		    completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.Exec(query,
		run.Status,
		run.Total,
		run.Processed,
		run.Failed,
		run.RateLimitRemaining,
		run.RateLimitResetAt,
		run.ErrorMessage,
		run.WorkerID,
		run.StartedAt,
		run.CompletedAt,
		run.UpdatedAt,
		run.ID,
	)
	return err
}

// FailInProgress marks runs left in progress by a previous process as failed.
// Returns the number of runs updated.
func (r *EnrichmentRunRepository) FailInProgress(message string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	res, err := r.db.Exec(`
		UPDATE enrichment_runs
		SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE status = ?
	`, models.RunStatusFailed, message, now, now, models.RunStatusInProgress)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
