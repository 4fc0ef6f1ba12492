package handlers

import (
	"net/http"
	"time"

	"github.com/alimgiray/opendev/internal/models"
	"github.com/alimgiray/opendev/internal/services"
	"github.com/alimgiray/opendev/pkg/logger"
	"github.com/gin-gonic/gin"
)

// contributionRanks are the values offered by the roster filter
var contributionRanks = []string{"full_time", "part_time", "one_time"}

// DashboardHandler renders the ecosystem pages
type DashboardHandler struct {
	ecosystemService *services.EcosystemService
	developerService *services.DeveloperService
}

func NewDashboardHandler(ecosystemService *services.EcosystemService, developerService *services.DeveloperService) *DashboardHandler {
	return &DashboardHandler{
		ecosystemService: ecosystemService,
		developerService: developerService,
	}
}

// Ecosystem handles the overview page of an ecosystem
func (h *DashboardHandler) Ecosystem(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		renderNotFound(c)
		return
	}

	overview, err := h.ecosystemService.Overview(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	if overview == nil {
		renderNotFound(c)
		return
	}

	// Chart reads oldest to newest
	series := make([]*models.EcosystemMetrics, len(overview.Series))
	for i, m := range overview.Series {
		series[len(series)-1-i] = m
	}

	c.HTML(http.StatusOK, "ecosystem", gin.H{
		"Title":     overview.Ecosystem.Name,
		"Ecosystem": overview.Ecosystem,
		"Latest":    overview.Latest,
		"Series":    series,
		"Hierarchy": overview.Hierarchy,
		"TopRepos":  overview.TopRepos,
		"Tab":       "overview",
	})
}

// Repos handles the repo list of an ecosystem
func (h *DashboardHandler) Repos(c *gin.Context) {
	ecosystem, ok := h.loadEcosystem(c)
	if !ok {
		return
	}

	filter, err := repoFilterFromQuery(c)
	if err != nil {
		filter = models.DefaultRepoFilter()
	}
	repos, err := h.ecosystemService.ReposInEcosystem(ecosystem.ID, filter)
	if err != nil {
		renderError(c, err)
		return
	}

	c.HTML(http.StatusOK, "repos", gin.H{
		"Title":     ecosystem.Name + " repos",
		"Ecosystem": ecosystem,
		"Repos":     repos,
		"Filter":    filter,
		"Tab":       "repos",
	})
}

// Developers handles the developer roster of an ecosystem
func (h *DashboardHandler) Developers(c *gin.Context) {
	ecosystem, ok := h.loadEcosystem(c)
	if !ok {
		return
	}

	filter, err := developerFilterFromQuery(c)
	if err != nil {
		filter = models.DefaultDeveloperFilter()
	}
	filter.IncludeUserInfo = true

	developers, err := h.developerService.DevelopersInEcosystem(ecosystem.ID, filter)
	if err != nil {
		renderError(c, err)
		return
	}

	rank := ""
	if filter.ContributionRank != nil {
		rank = *filter.ContributionRank
	}
	c.HTML(http.StatusOK, "developers", gin.H{
		"Title":      ecosystem.Name + " developers",
		"Ecosystem":  ecosystem,
		"Developers": developers,
		"Ranks":      contributionRanks,
		"Rank":       rank,
		"Tab":        "developers",
	})
}

// Developer handles the profile page of a developer within an ecosystem
func (h *DashboardHandler) Developer(c *gin.Context) {
	ecosystem, ok := h.loadEcosystem(c)
	if !ok {
		return
	}
	devID, err := paramID(c, "dev_id")
	if err != nil {
		renderNotFound(c)
		return
	}

	profile, err := h.developerService.GetProfile(devID, true)
	if err != nil {
		renderError(c, err)
		return
	}
	activity, err := h.developerService.Activity(ecosystem.ID, devID, models.DateRange{Limit: 365})
	if err != nil {
		renderError(c, err)
		return
	}
	tenure, err := h.developerService.Tenure(ecosystem.ID, devID)
	if err != nil {
		renderError(c, err)
		return
	}
	if profile == nil && len(activity) == 0 && len(tenure) == 0 {
		renderNotFound(c)
		return
	}

	chart := make([]*models.DeveloperActivity, len(activity))
	for i, a := range activity {
		chart[len(chart)-1-i] = a
	}
	if len(activity) > 15 {
		activity = activity[:15]
	}
	if len(tenure) > 10 {
		tenure = tenure[:10]
	}

	c.HTML(http.StatusOK, "developer", gin.H{
		"Title":       "Developer " + c.Param("dev_id"),
		"Ecosystem":   ecosystem,
		"DeveloperID": devID,
		"Profile":     profile,
		"Activity":    activity,
		"Chart":       chart,
		"Tenure":      tenure,
		"Tab":         "developers",
	})
}

// loadEcosystem renders the 404 page and returns false when the ecosystem is unknown
func (h *DashboardHandler) loadEcosystem(c *gin.Context) (*models.Ecosystem, bool) {
	id, err := paramID(c, "id")
	if err != nil {
		renderNotFound(c)
		return nil, false
	}

	ecosystem, err := h.ecosystemService.GetEcosystem(id, false)
	if err != nil {
		renderError(c, err)
		return nil, false
	}
	if ecosystem == nil {
		renderNotFound(c)
		return nil, false
	}
	return ecosystem, true
}

func renderError(c *gin.Context, err error) {
	logger.WithError(err).WithField("path", c.Request.URL.Path).Errorf("Failed to render page")
	c.HTML(http.StatusInternalServerError, "error", gin.H{
		"Title":   "Error",
		"Message": "Something went wrong while loading this page.",
	})
}

func renderNotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "404", gin.H{
		"Title":         "404 - Page Not Found",
		"RequestedPath": c.Request.URL.Path,
		"Timestamp":     time.Now().Format("2006-01-02 15:04:05"),
	})
}
