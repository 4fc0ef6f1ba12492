package handlers

import (
	"net/http"

	"github.com/alimgiray/opendev/internal/models"
	"github.com/alimgiray/opendev/internal/services"
	"github.com/gin-gonic/gin"
)

// EcosystemAPIHandler serves the ecosystem JSON endpoints
type EcosystemAPIHandler struct {
	ecosystemService *services.EcosystemService
}

func NewEcosystemAPIHandler(ecosystemService *services.EcosystemService) *EcosystemAPIHandler {
	return &EcosystemAPIHandler{
		ecosystemService: ecosystemService,
	}
}

// List handles GET /api/ecosystems
func (h *EcosystemAPIHandler) List(c *gin.Context) {
	filter := models.EcosystemFilter{NameContains: queryString(c, "q")}

	var err error
	if filter.IsCrypto, err = queryBool(c, "is_crypto"); err != nil {
		badRequest(c, err)
		return
	}
	if filter.IsChain, err = queryBool(c, "is_chain"); err != nil {
		badRequest(c, err)
		return
	}
	if filter.IncludeRepoCount, err = queryBoolDefault(c, "include_repo_count", false); err != nil {
		badRequest(c, err)
		return
	}
	if filter.Limit, filter.Offset, err = queryPage(c, 50); err != nil {
		badRequest(c, err)
		return
	}

	ecosystems, err := h.ecosystemService.ListEcosystems(filter)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, ecosystems)
}

// Search handles GET /api/ecosystems/search
func (h *EcosystemAPIHandler) Search(c *gin.Context) {
	limit, err := queryInt(c, "limit", 30)
	if err != nil {
		badRequest(c, err)
		return
	}

	results, err := h.ecosystemService.SearchEcosystems(c.Query("q"), limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// Get handles GET /api/ecosystems/:id
func (h *EcosystemAPIHandler) Get(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	includeLatest, err := queryBoolDefault(c, "include_latest_mads", false)
	if err != nil {
		badRequest(c, err)
		return
	}

	ecosystem, err := h.ecosystemService.GetEcosystem(id, includeLatest)
	if err != nil {
		internalError(c, err)
		return
	}
	if ecosystem == nil {
		notFound(c, "ecosystem")
		return
	}
	c.JSON(http.StatusOK, ecosystem)
}

// Hierarchy handles GET /api/ecosystems/:id/hierarchy
func (h *EcosystemAPIHandler) Hierarchy(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}

	hierarchy, err := h.ecosystemService.Hierarchy(id)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, hierarchy)
}

// Repos handles GET /api/ecosystems/:id/repos
func (h *EcosystemAPIHandler) Repos(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	filter, err := repoFilterFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	repos, err := h.ecosystemService.ReposInEcosystem(id, filter)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, repos)
}

func repoFilterFromQuery(c *gin.Context) (models.RepoFilter, error) {
	filter := models.DefaultRepoFilter()
	var err error
	if filter.Recursive, err = queryBoolDefault(c, "recursive", true); err != nil {
		return filter, err
	}
	if sortBy := c.Query("sort_by"); sortBy != "" {
		filter.SortBy = sortBy
	}
	filter.Limit, filter.Offset, err = queryPage(c, filter.Limit)
	return filter, err
}

// TopRepos handles GET /api/ecosystems/:id/repos/top
func (h *EcosystemAPIHandler) TopRepos(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	recursive, err := queryBoolDefault(c, "recursive", true)
	if err != nil {
		badRequest(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		badRequest(c, err)
		return
	}

	repos, err := h.ecosystemService.TopRepos(id, recursive, limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, repos)
}

// Metrics handles GET /api/ecosystems/:id/metrics
func (h *EcosystemAPIHandler) Metrics(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	dr, err := queryDateRange(c)
	if err == nil {
		err = dr.Validate()
	}
	if err != nil {
		badRequest(c, err)
		return
	}

	series, err := h.ecosystemService.MetricsSeries(id, dr)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}
