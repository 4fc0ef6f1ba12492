package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alimgiray/opendev/internal/handlers"
	"github.com/alimgiray/opendev/internal/middleware"
	"github.com/alimgiray/opendev/internal/repositories"
	"github.com/alimgiray/opendev/internal/services"
	"github.com/alimgiray/opendev/internal/workers"
	"github.com/alimgiray/opendev/pkg/config"
	"github.com/alimgiray/opendev/pkg/database"
	"github.com/alimgiray/opendev/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	if err := config.Load(); err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.AppConfig
	logger.Init(cfg.LogLevel)
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	if err := database.Init(cfg.Database.Path()); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Initialize dependencies
	ecosystemService := services.NewEcosystemService(repositories.NewEcosystemRepository(database.DB))
	developerService := services.NewDeveloperService(repositories.NewDeveloperRepository(database.DB))
	runService := services.NewEnrichmentRunService(repositories.NewEnrichmentRunRepository(database.DB))
	enrichmentService := services.NewEnrichmentService(repositories.NewUserInfoRepository(database.DB), cfg.GitHub.APIURL)
	exportService := services.NewExportService(ecosystemService, developerService)

	// Enrichment must run sequentially, so at most one worker
	workerEnabled := cfg.Enrichment.WorkerEnabled && cfg.GitHub.Token != ""
	if cfg.Enrichment.WorkerEnabled && !workerEnabled {
		logger.Warnf("GITHUB_TOKEN not set, enrichment worker disabled")
	}
	var workerManager *workers.WorkerManager
	if workerEnabled {
		workerManager = workers.NewWorkerManager(
			workers.NewEnrichmentWorker("enrichment-1", runService, enrichmentService, cfg.GitHub.Token, cfg.Enrichment.PollInterval),
		)
	} else {
		workerManager = workers.NewWorkerManager()
	}

	// Initialize router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())

	router.Static("/static", "./web/static")
	loadTemplates(router)

	setupRoutes(router, ecosystemService, developerService, runService, exportService, workerEnabled)

	// Start workers
	if err := workerManager.StartAll(); err != nil {
		logger.Fatalf("Failed to start workers: %v", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Infof("Server starting on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	workerManager.StopAll()
	logger.Info("Server stopped")
}

func setupRoutes(
	router *gin.Engine,
	ecosystemService *services.EcosystemService,
	developerService *services.DeveloperService,
	runService *services.EnrichmentRunService,
	exportService *services.ExportService,
	workerEnabled bool,
) {
	// Initialize handlers
	homeHandler := handlers.NewHomeHandler(ecosystemService)
	dashboardHandler := handlers.NewDashboardHandler(ecosystemService, developerService)
	exportHandler := handlers.NewExportHandler(exportService)
	ecosystemAPI := handlers.NewEcosystemAPIHandler(ecosystemService)
	developerAPI := handlers.NewDeveloperAPIHandler(developerService)
	enrichmentHandler := handlers.NewEnrichmentHandler(runService, workerEnabled)
	healthHandler := handlers.NewHealthHandler(database.DB)
	notFoundHandler := handlers.NewNotFoundHandler()

	// Dashboard
	router.GET("/", homeHandler.Index)
	ecosystems := router.Group("/ecosystems/:id")
	{
		ecosystems.GET("", dashboardHandler.Ecosystem)
		ecosystems.GET("/repos", dashboardHandler.Repos)
		ecosystems.GET("/repos/export.xlsx", exportHandler.Repos)
		ecosystems.GET("/developers", dashboardHandler.Developers)
		ecosystems.GET("/developers/export.xlsx", exportHandler.Developers)
		ecosystems.GET("/developers/:dev_id", dashboardHandler.Developer)
	}

	// JSON API
	api := router.Group("/api")
	{
		api.GET("/ecosystems", ecosystemAPI.List)
		api.GET("/ecosystems/search", ecosystemAPI.Search)
		api.GET("/ecosystems/:id", ecosystemAPI.Get)
		api.GET("/ecosystems/:id/hierarchy", ecosystemAPI.Hierarchy)
		api.GET("/ecosystems/:id/repos", ecosystemAPI.Repos)
		api.GET("/ecosystems/:id/repos/top", ecosystemAPI.TopRepos)
		api.GET("/ecosystems/:id/metrics", ecosystemAPI.Metrics)
		api.GET("/ecosystems/:id/developers", developerAPI.InEcosystem)
		api.GET("/ecosystems/:id/developers/search", developerAPI.Search)
		api.GET("/ecosystems/:id/developers/:dev_id/activity", developerAPI.Activity)
		api.GET("/ecosystems/:id/developers/:dev_id/tenure", developerAPI.Tenure)
		api.GET("/developers/:dev_id", developerAPI.Profile)

		api.POST("/enrichment/runs", enrichmentHandler.CreateRun)
		api.GET("/enrichment/runs", enrichmentHandler.ListRuns)
		api.GET("/enrichment/runs/:id", enrichmentHandler.GetRun)
	}

	// Health check endpoint
	router.GET("/health", healthHandler.HealthCheck)

	router.NoRoute(notFoundHandler.NotFound)
}

func loadTemplates(router *gin.Engine) {
	cwd, err := os.Getwd()
	if err != nil {
		logger.Fatalf("Couldn't get working directory: %v", err)
	}
	logger.WithField("cwd", cwd).Debugf("Loading templates")

	router.SetFuncMap(handlers.TemplateFuncs())
	router.LoadHTMLFiles(handlers.TemplateFiles(filepath.Join(cwd, "web", "templates"))...)
}
