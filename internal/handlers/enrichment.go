package handlers

import (
	"errors"
	"net/http"

	"github.com/alimgiray/opendev/internal/services"
	"github.com/gin-gonic/gin"
)

// EnrichmentHandler exposes enrichment runs over HTTP. Runs are executed by
// the enrichment worker, these endpoints only queue and report them.
type EnrichmentHandler struct {
	runService *services.EnrichmentRunService
	enabled    bool
}

func NewEnrichmentHandler(runService *services.EnrichmentRunService, enabled bool) *EnrichmentHandler {
	return &EnrichmentHandler{
		runService: runService,
		enabled:    enabled,
	}
}

// CreateRun handles POST /api/enrichment/runs
func (h *EnrichmentHandler) CreateRun(c *gin.Context) {
	if !h.enabled {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "enrichment worker is disabled"})
		return
	}

	run, err := h.runService.QueueRun()
	if errors.Is(err, services.ErrRunActive) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "run": run})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// ListRuns handles GET /api/enrichment/runs
func (h *EnrichmentHandler) ListRuns(c *gin.Context) {
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		badRequest(c, err)
		return
	}

	runs, err := h.runService.ListRuns(limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

// GetRun handles GET /api/enrichment/runs/:id
func (h *EnrichmentHandler) GetRun(c *gin.Context) {
	run, err := h.runService.GetRun(c.Param("id"))
	if err != nil {
		internalError(c, err)
		return
	}
	if run == nil {
		notFound(c, "run")
		return
	}
	c.JSON(http.StatusOK, run)
}
