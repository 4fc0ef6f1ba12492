package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/alimgiray/opendev/internal/models"
	"github.com/alimgiray/opendev/internal/repositories"
)

type DeveloperService struct {
	developerRepo *repositories.DeveloperRepository
}

func NewDeveloperService(developerRepo *repositories.DeveloperRepository) *DeveloperService {
	return &DeveloperService{
		developerRepo: developerRepo,
	}
}

// DevelopersInEcosystem returns the ranked developers of an ecosystem
func (s *DeveloperService) DevelopersInEcosystem(ecosystemID int64, filter models.DeveloperFilter) ([]*models.DeveloperRank, error) {
	if filter.ContributionRank != nil && strings.TrimSpace(*filter.ContributionRank) == "" {
		filter.ContributionRank = nil
	}
	return s.developerRepo.InEcosystem(ecosystemID, filter)
}

// SearchDevelopers finds developers of an ecosystem by login or name
func (s *DeveloperService) SearchDevelopers(ecosystemID int64, q string, day *time.Time, limit, offset int) ([]*models.DeveloperSearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*models.DeveloperSearchResult{}, nil
	}
	return s.developerRepo.Search(ecosystemID, q, day, limit, offset)
}

// GetProfile returns a developer profile, nil when the developer has no user_info row
func (s *DeveloperService) GetProfile(developerID int64, includeLocations bool) (*models.DeveloperProfile, error) {
	profile, err := s.developerRepo.GetProfile(developerID)
	if err != nil || profile == nil {
		return nil, err
	}

	if includeLocations {
		profile.Locations, err = s.developerRepo.Locations(developerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load locations: %w", err)
		}
	}

	return profile, nil
}

// Activity returns the daily commits of a developer in an ecosystem, newest first
func (s *DeveloperService) Activity(ecosystemID, developerID int64, dr models.DateRange) ([]*models.DeveloperActivity, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	return s.developerRepo.Activity(ecosystemID, developerID, dr)
}

// Tenure returns the tenure snapshots of a developer in an ecosystem
func (s *DeveloperService) Tenure(ecosystemID, developerID int64) ([]*models.DeveloperTenure, error) {
	return s.developerRepo.Tenure(ecosystemID, developerID)
}
