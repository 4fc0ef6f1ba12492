package handlers

import (
	"net/http"

	"github.com/alimgiray/opendev/internal/models"
	"github.com/alimgiray/opendev/internal/services"
	"github.com/gin-gonic/gin"
)

// DeveloperAPIHandler serves the developer JSON endpoints
type DeveloperAPIHandler struct {
	developerService *services.DeveloperService
}

func NewDeveloperAPIHandler(developerService *services.DeveloperService) *DeveloperAPIHandler {
	return &DeveloperAPIHandler{
		developerService: developerService,
	}
}

func developerFilterFromQuery(c *gin.Context) (models.DeveloperFilter, error) {
	filter := models.DefaultDeveloperFilter()
	var err error
	if filter.Day, err = queryDate(c, "day"); err != nil {
		return filter, err
	}
	filter.ContributionRank = queryString(c, "contribution_rank")
	if filter.IncludeUserInfo, err = queryBoolDefault(c, "include_user_info", true); err != nil {
		return filter, err
	}
	filter.Limit, filter.Offset, err = queryPage(c, filter.Limit)
	return filter, err
}

// InEcosystem handles GET /api/ecosystems/:id/developers
func (h *DeveloperAPIHandler) InEcosystem(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	filter, err := developerFilterFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	developers, err := h.developerService.DevelopersInEcosystem(id, filter)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, developers)
}

// Search handles GET /api/ecosystems/:id/developers/search
func (h *DeveloperAPIHandler) Search(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	day, err := queryDate(c, "day")
	if err != nil {
		badRequest(c, err)
		return
	}
	limit, offset, err := queryPage(c, 30)
	if err != nil {
		badRequest(c, err)
		return
	}

	results, err := h.developerService.SearchDevelopers(id, c.Query("q"), day, limit, offset)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// Profile handles GET /api/developers/:dev_id
func (h *DeveloperAPIHandler) Profile(c *gin.Context) {
	devID, err := paramID(c, "dev_id")
	if err != nil {
		badRequest(c, err)
		return
	}
	includeLocations, err := queryBoolDefault(c, "include_locations", false)
	if err != nil {
		badRequest(c, err)
		return
	}

	profile, err := h.developerService.GetProfile(devID, includeLocations)
	if err != nil {
		internalError(c, err)
		return
	}
	if profile == nil {
		notFound(c, "developer")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Activity handles GET /api/ecosystems/:id/developers/:dev_id/activity
func (h *DeveloperAPIHandler) Activity(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	devID, err := paramID(c, "dev_id")
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

	activity, err := h.developerService.Activity(id, devID, dr)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, activity)
}

// Tenure handles GET /api/ecosystems/:id/developers/:dev_id/tenure
func (h *DeveloperAPIHandler) Tenure(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	devID, err := paramID(c, "dev_id")
	if err != nil {
		badRequest(c, err)
		return
	}

	tenure, err := h.developerService.Tenure(id, devID)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenure)
}
