package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/alimgiray/opendev/internal/models"
	"github.com/alimgiray/opendev/internal/repositories"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTopRepos     = 20
	overviewSeriesLimit = 90
)

type EcosystemService struct {
	ecosystemRepo *repositories.EcosystemRepository
}

func NewEcosystemService(ecosystemRepo *repositories.EcosystemRepository) *EcosystemService {
	return &EcosystemService{
		ecosystemRepo: ecosystemRepo,
	}
}

// ListEcosystems returns ecosystems ordered by name
func (s *EcosystemService) ListEcosystems(filter models.EcosystemFilter) ([]*models.Ecosystem, error) {
	if filter.NameContains != nil && strings.TrimSpace(*filter.NameContains) == "" {
		filter.NameContains = nil
	}
	return s.ecosystemRepo.List(filter)
}

// GetEcosystem returns an ecosystem, optionally with its latest metrics.
// Returns nil without error when the ecosystem does not exist.
func (s *EcosystemService) GetEcosystem(id int64, includeLatestMetrics bool) (*models.Ecosystem, error) {
	ecosystem, err := s.ecosystemRepo.GetByID(id)
	if err != nil || ecosystem == nil {
		return nil, err
	}

	if includeLatestMetrics {
		ecosystem.LatestMetrics, err = s.ecosystemRepo.LatestMetrics(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest metrics: %w", err)
		}
	}

	return ecosystem, nil
}

// Hierarchy returns the direct parents and children of an ecosystem
func (s *EcosystemService) Hierarchy(id int64) (*models.EcosystemHierarchy, error) {
	return s.ecosystemRepo.Hierarchy(id)
}

// ReposInEcosystem lists the repos of an ecosystem
func (s *EcosystemService) ReposInEcosystem(id int64, filter models.RepoFilter) ([]*models.Repo, error) {
	if filter.SortBy != models.RepoSortByName {
		filter.SortBy = models.RepoSortByStars
	}
	return s.ecosystemRepo.Repos(id, filter)
}

// TopRepos returns the most starred repos of an ecosystem
func (s *EcosystemService) TopRepos(id int64, recursive bool, limit int) ([]*models.Repo, error) {
	if limit <= 0 {
		limit = defaultTopRepos
	}
	return s.ecosystemRepo.Repos(id, models.RepoFilter{
		Recursive: recursive,
		SortBy:    models.RepoSortByStars,
		Limit:     limit,
	})
}

// MetricsSeries returns daily metrics, newest first
func (s *EcosystemService) MetricsSeries(id int64, dr models.DateRange) ([]*models.EcosystemMetrics, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	return s.ecosystemRepo.MetricsSeries(id, dr)
}

// SearchEcosystems returns ecosystems whose name contains q
func (s *EcosystemService) SearchEcosystems(q string, limit int) ([]*models.EcosystemSummary, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*models.EcosystemSummary{}, nil
	}
	return s.ecosystemRepo.Search(q, limit)
}

// Overview loads everything the ecosystem page shows. The queries are
// independent and run concurrently. Returns nil when the ecosystem does not exist.
func (s *EcosystemService) Overview(ctx context.Context, id int64) (*models.EcosystemOverview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	overview := &models.EcosystemOverview{}

	var g errgroup.Group
	g.Go(func() (err error) {
		overview.Ecosystem, err = s.ecosystemRepo.GetByID(id)
		return err
	})
	g.Go(func() (err error) {
		overview.Latest, err = s.ecosystemRepo.LatestMetrics(id)
		return err
	})
	g.Go(func() (err error) {
		overview.Series, err = s.ecosystemRepo.MetricsSeries(id, models.DateRange{Limit: overviewSeriesLimit})
		return err
	})
	g.Go(func() (err error) {
		overview.Hierarchy, err = s.ecosystemRepo.Hierarchy(id)
		return err
	})
	g.Go(func() (err error) {
		overview.TopRepos, err = s.TopRepos(id, true, 10)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if overview.Ecosystem == nil {
		return nil, nil
	}
	overview.Ecosystem.LatestMetrics = overview.Latest
	return overview, nil
}
