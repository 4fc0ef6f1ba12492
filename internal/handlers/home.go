package handlers

import (
	"net/http"
	"strings"

	"github.com/alimgiray/opendev/internal/models"
	"github.com/alimgiray/opendev/internal/services"
	"github.com/gin-gonic/gin"
)

type HomeHandler struct {
	ecosystemService *services.EcosystemService
}

func NewHomeHandler(ecosystemService *services.EcosystemService) *HomeHandler {
	return &HomeHandler{
		ecosystemService: ecosystemService,
	}
}

// Index handles the ecosystem picker page
func (h *HomeHandler) Index(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))

	data := gin.H{
		"Title": "Ecosystems",
		"Query": q,
	}

	if q != "" {
		results, err := h.ecosystemService.SearchEcosystems(q, 30)
		if err != nil {
			renderError(c, err)
			return
		}
		data["Results"] = results
	} else {
		ecosystems, err := h.ecosystemService.ListEcosystems(models.EcosystemFilter{IncludeRepoCount: true, Limit: 200})
		if err != nil {
			renderError(c, err)
			return
		}
		data["Ecosystems"] = ecosystems
	}

	c.HTML(http.StatusOK, "index", data)
}
