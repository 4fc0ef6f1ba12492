// Package opendev opens an ecosystem analytics database file and exposes its
// read queries and the developer enrichment job as a library.
package opendev

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/alimgiray/opendev/internal/models"
	"github.com/alimgiray/opendev/internal/repositories"
	"github.com/alimgiray/opendev/internal/services"
	"github.com/alimgiray/opendev/pkg/database"
)

// ErrConnectionClosed is returned by every method called after Close
var ErrConnectionClosed = errors.New("connection is closed")

type (
	Ecosystem             = models.Ecosystem
	EcosystemFilter       = models.EcosystemFilter
	EcosystemSummary      = models.EcosystemSummary
	EcosystemMetrics      = models.EcosystemMetrics
	EcosystemHierarchy    = models.EcosystemHierarchy
	DateRange             = models.DateRange
	Repo                  = models.Repo
	RepoFilter            = models.RepoFilter
	DeveloperRank         = models.DeveloperRank
	DeveloperFilter       = models.DeveloperFilter
	DeveloperSearchResult = models.DeveloperSearchResult
	DeveloperProfile      = models.DeveloperProfile
	DeveloperActivity     = models.DeveloperActivity
	DeveloperTenure       = models.DeveloperTenure
	EnrichmentProgress    = models.EnrichmentProgress
)

// Client is a handle on one database file. It is safe for concurrent use.
type Client struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool

	ecosystemService  *services.EcosystemService
	developerService  *services.DeveloperService
	enrichmentService *services.EnrichmentService
	userInfoRepo      *repositories.UserInfoRepository
}

// Option configures a Client
type Option func(*options)

type options struct {
	apiURL string
}

// WithGitHubAPIURL points the enrichment job at another GitHub API endpoint
func WithGitHubAPIURL(url string) Option {
	return func(o *options) {
		o.apiURL = url
	}
}

// Open opens (creating if needed) the database file filename inside folder
func Open(folder, filename string, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.Open(filepath.Join(folder, filename))
	if err != nil {
		return nil, err
	}

	userInfoRepo := repositories.NewUserInfoRepository(db)
	ecosystemService := services.NewEcosystemService(repositories.NewEcosystemRepository(db))
	developerService := services.NewDeveloperService(repositories.NewDeveloperRepository(db))

	return &Client{
		db:                db,
		ecosystemService:  ecosystemService,
		developerService:  developerService,
		enrichmentService: services.NewEnrichmentService(userInfoRepo, o.apiURL),
		userInfoRepo:      userInfoRepo,
	}, nil
}

// Close releases the database. Calling it again is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

// acquire holds the read lock for the duration of a call
func (c *Client) acquire() (func(), error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ErrConnectionClosed
	}
	return c.mu.RUnlock, nil
}

func (c *Client) ListEcosystems(filter EcosystemFilter) ([]*Ecosystem, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.ecosystemService.ListEcosystems(filter)
}

// GetEcosystem returns nil when the ecosystem does not exist
func (c *Client) GetEcosystem(id int64, includeLatestMetrics bool) (*Ecosystem, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.ecosystemService.GetEcosystem(id, includeLatestMetrics)
}

func (c *Client) SearchEcosystems(q string, limit int) ([]*EcosystemSummary, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.ecosystemService.SearchEcosystems(q, limit)
}

func (c *Client) EcosystemHierarchy(id int64) (*EcosystemHierarchy, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.ecosystemService.Hierarchy(id)
}

func (c *Client) ReposInEcosystem(id int64, filter RepoFilter) ([]*Repo, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.ecosystemService.ReposInEcosystem(id, filter)
}

func (c *Client) TopRepos(id int64, recursive bool, limit int) ([]*Repo, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.ecosystemService.TopRepos(id, recursive, limit)
}

// EcosystemMetrics returns the eco_mads series, newest first
func (c *Client) EcosystemMetrics(id int64, dr DateRange) ([]*EcosystemMetrics, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.ecosystemService.MetricsSeries(id, dr)
}

func (c *Client) DevelopersInEcosystem(id int64, filter DeveloperFilter) ([]*DeveloperRank, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.developerService.DevelopersInEcosystem(id, filter)
}

func (c *Client) SearchDevelopers(id int64, q string, day *time.Time, limit, offset int) ([]*DeveloperSearchResult, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.developerService.SearchDevelopers(id, q, day, limit, offset)
}

// DeveloperProfile returns nil when the developer has no user_info row
func (c *Client) DeveloperProfile(developerID int64, includeLocations bool) (*DeveloperProfile, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.developerService.GetProfile(developerID, includeLocations)
}

func (c *Client) DeveloperActivity(id, developerID int64, dr DateRange) ([]*DeveloperActivity, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.developerService.Activity(id, developerID, dr)
}

func (c *Client) DeveloperTenure(id, developerID int64) ([]*DeveloperTenure, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.developerService.Tenure(id, developerID)
}

// CreateUserInfoTable runs the enrichment job, filling user_info for every
// canonical developer that has no row yet. Close blocks until it returns.
func (c *Client) CreateUserInfoTable(ctx context.Context, token string) (EnrichmentProgress, error) {
	release, err := c.acquire()
	if err != nil {
		return EnrichmentProgress{}, err
	}
	defer release()

	progress, err := c.enrichmentService.Enrich(ctx, token)
	if err != nil {
		return progress, fmt.Errorf("failed to create user_info table: %w", err)
	}
	return progress, nil
}

// ResetUserInfo removes every enriched profile so the next run starts over
func (c *Client) ResetUserInfo() error {
	release, err := c.acquire()
	if err != nil {
		return err
	}
	defer release()
	return c.userInfoRepo.Reset()
}
