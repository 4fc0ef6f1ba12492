package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alimgiray/opendev/internal/models"
	"github.com/alimgiray/opendev/internal/repositories"
	"github.com/alimgiray/opendev/pkg/logger"
	"github.com/sirupsen/logrus"
)

// BatchSize is the number of developers processed per GitHub request
const BatchSize = 100

// BatchSize must equal MaxNodesPerRequest
const _ = uint(BatchSize-MaxNodesPerRequest) + uint(MaxNodesPerRequest-BatchSize)

// batchErrorDelay is the pause after a failed batch
const batchErrorDelay = 5 * time.Second

// ProgressFunc receives the run counters after every batch
type ProgressFunc func(models.EnrichmentProgress)

// EnrichmentService fills user_info with GitHub profiles of canonical developers.
// It assumes it is the only writer of user_info for the duration of a run.
type EnrichmentService struct {
	userInfoRepo *repositories.UserInfoRepository
	apiURL       string
	maxRetries   int

	sleep SleepFunc
	now   func() time.Time
}

func NewEnrichmentService(userInfoRepo *repositories.UserInfoRepository, apiURL string) *EnrichmentService {
	return &EnrichmentService{
		userInfoRepo: userInfoRepo,
		apiURL:       apiURL,
		maxRetries:   DefaultMaxRetries,
		sleep:        sleepContext,
		now:          time.Now,
	}
}

// Enrich runs the enrichment job once
func (s *EnrichmentService) Enrich(ctx context.Context, token string) (models.EnrichmentProgress, error) {
	return s.EnrichWithProgress(ctx, token, nil)
}

// EnrichWithProgress runs the enrichment job once, reporting to onProgress
// after every batch. Developers of failed batches stay pending and are picked
// up by the next run. A *TransportError or a cancelled ctx aborts the run.
func (s *EnrichmentService) EnrichWithProgress(ctx context.Context, token string, onProgress ProgressFunc) (models.EnrichmentProgress, error) {
	var progress models.EnrichmentProgress
	if token == "" {
		return progress, ErrMissingToken
	}

	existing, err := s.userInfoRepo.Count()
	if err != nil {
		return progress, fmt.Errorf("failed to count user_info rows: %w", err)
	}
	logger.WithField("existing", existing).Info("Found existing developers in user_info")

	pending, err := s.userInfoRepo.PendingDevelopers()
	if err != nil {
		return progress, fmt.Errorf("failed to load pending developers: %w", err)
	}
	progress.Total = len(pending)
	progress.TotalBatches = (len(pending) + BatchSize - 1) / BatchSize
	progress.RateLimit = models.NewRateLimitState()

	if len(pending) == 0 {
		logger.Info("No new developers to process")
		return progress, nil
	}
	logger.WithFields(logrus.Fields{
		"pending": progress.Total,
		"batches": progress.TotalBatches,
	}).Info("Starting developer enrichment")

	gh, err := NewGitHubService(token, s.apiURL)
	if err != nil {
		return progress, err
	}
	gh.sleep, gh.now = s.sleep, s.now

	// Seeded on the first batch that calls GitHub
	state := models.NewRateLimitState()
	seeded := false

	for start := 0; start < len(pending); start += BatchSize {
		end := min(start+BatchSize, len(pending))
		batch := pending[start:end]
		progress.Batch++

		if !seeded && hasGitHubIDs(batch) {
			state = s.seedRateLimit(ctx, gh, state)
			seeded = true
		}

		written, next, err := s.processBatch(ctx, gh, batch, state)
		progress.Processed += written
		if err != nil {
			if IsFatal(err) || ctx.Err() != nil {
				progress.RateLimit = next
				return progress, fmt.Errorf("batch %d/%d: %w", progress.Batch, progress.TotalBatches, err)
			}

			progress.Failed += len(batch) - written
			logger.WithError(err).WithFields(logrus.Fields{
				"batch":   progress.Batch,
				"batches": progress.TotalBatches,
			}).Error("Error processing batch")
			if err := s.sleep(ctx, batchErrorDelay); err != nil {
				return progress, err
			}
		}
		state = next
		progress.RateLimit = state

		logger.WithFields(logrus.Fields{
			"batch":     progress.Batch,
			"batches":   progress.TotalBatches,
			"processed": progress.Processed,
			"failed":    progress.Failed,
			"remaining": state.Remaining,
			"reset_at":  state.ResetAt,
		}).Debugf("Batch done")
		if onProgress != nil {
			onProgress(progress)
		}
	}

	logger.WithFields(logrus.Fields{
		"total":     progress.Total,
		"processed": progress.Processed,
		"failed":    progress.Failed,
		"rate":      state.String(),
	}).Info("Completed developer enrichment")
	return progress, nil
}

func hasGitHubIDs(batch []models.Developer) bool {
	for _, dev := range batch {
		if dev.HasGitHubID() {
			return true
		}
	}
	return false
}

// seedRateLimit reads the current GraphQL budget, keeping state when that fails
func (s *EnrichmentService) seedRateLimit(ctx context.Context, gh *GitHubService, state models.RateLimitState) models.RateLimitState {
	seeded, err := gh.RateLimit(ctx)
	if err != nil {
		logger.WithError(err).Warnf("Could not read rate limit, assuming a full budget")
		return state
	}
	return seeded
}

// processBatch writes one user_info row per developer of batch. It returns the
// number of rows written and the rate limit state to carry into the next batch.
func (s *EnrichmentService) processBatch(ctx context.Context, gh *GitHubService, batch []models.Developer, state models.RateLimitState) (int, models.RateLimitState, error) {
	written := 0

	var ids []string
	for _, dev := range batch {
		if dev.HasGitHubID() {
			ids = append(ids, *dev.PrimaryGitHubUserID)
			continue
		}
		if err := s.insert(models.NewEnrichmentRecord(dev, nil), &written); err != nil {
			return written, state, err
		}
	}
	if len(ids) == 0 {
		return written, state, nil
	}

	if wait := state.PreflightWait(s.now()); wait > 0 {
		logger.WithFields(logrus.Fields{
			"remaining": state.Remaining,
			"wait":      wait.String(),
		}).Warnf("Rate limit low, waiting")
		if err := s.sleep(ctx, wait); err != nil {
			return written, state, err
		}
	}

	profiles, snapshot, err := gh.FetchProfiles(ctx, ids, s.maxRetries)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return written, snapshot, err
		}
		return written, state, err
	}
	state = snapshot

	byID := make(map[string]*models.GitHubProfile, len(profiles))
	for _, p := range profiles {
		if p.Resolved() {
			byID[p.PrimaryGitHubUserID] = p
		}
	}

	for _, dev := range batch {
		if !dev.HasGitHubID() {
			continue
		}
		record := models.NewEnrichmentRecord(dev, byID[*dev.PrimaryGitHubUserID])
		if err := s.insert(record, &written); err != nil {
			return written, state, err
		}
	}

	if err := s.sleep(ctx, state.PacingDelay()); err != nil {
		return written, state, err
	}
	return written, state, nil
}

func (s *EnrichmentService) insert(record *models.EnrichmentRecord, written *int) error {
	if _, err := s.userInfoRepo.Insert(record); err != nil {
		return err
	}
	*written++
	return nil
}
