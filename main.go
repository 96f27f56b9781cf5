package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"report-service/config"
	"report-service/database"
	"report-service/handlers"
	"report-service/middleware"
	"report-service/storage"
	"report-service/version"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	EndPointHealth        = "/health"
	EndPointReports       = "/reports"
	EndPointUserReports   = "/reports/user/:userId"
	EndPointUserStats     = "/reports/user/:userId/stats"
	EndPointNearbyReports = "/reports/nearby"
	EndPointMapReports    = "/reports/map"
	EndPointReportByID    = "/reports/:reportId"
	EndPointResolveReport = "/reports/:reportId/resolve"
	EndPointMediaUpload   = "/reports/media"
	EndPointSingleUpload  = "/reports/media/single"
)

func main() {
	// Load .env file if present (ignored in production containers)
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	cfg := config.Load()

	log.Info("Starting the report service...")

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize database schema
	if err := database.InitSchema(db); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}

	// Initialize object storage
	mediaStore, err := storage.NewMediaStore(cfg)
	if err != nil {
		log.Fatalf("Failed to create media store: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mediaStore.EnsureBucket(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to prepare media bucket: %v", err)
	}
	cancel()

	// Initialize services
	reportService := database.NewReportService(db)

	// Initialize handlers
	reportsHandler := handlers.NewReportsHandler(reportService)
	mediaHandler := handlers.NewMediaHandler(mediaStore)

	// Setup router
	router := gin.Default()
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/version", func(c *gin.Context) {
		c.JSON(200, version.Get("report-service"))
	})

	// Register health endpoint (outside API group)
	router.GET(EndPointHealth, reportsHandler.HealthCheck)

	uploadWindow := time.Duration(cfg.UploadRateWindow) * time.Second

	// Create API v3 router group
	apiV3 := router.Group("/api/v3")
	{
		apiV3.POST(EndPointReports, reportsHandler.CreateReport)
		apiV3.GET(EndPointUserReports, reportsHandler.GetUserReports)
		apiV3.GET(EndPointUserStats, reportsHandler.GetUserStats)
		apiV3.GET(EndPointNearbyReports, reportsHandler.GetNearbyReports)
		apiV3.GET(EndPointMapReports, reportsHandler.GetMapReports)
		apiV3.GET(EndPointReportByID, reportsHandler.GetReportByID)
		apiV3.PATCH(EndPointReportByID, reportsHandler.UpdateReport)
		apiV3.POST(EndPointResolveReport, reportsHandler.ResolveReport)
		apiV3.DELETE(EndPointReportByID, reportsHandler.DeleteReport)
		apiV3.POST(EndPointMediaUpload,
			middleware.UploadRateLimit(cfg.UploadRateLimit, uploadWindow),
			mediaHandler.UploadReportMedia)
		apiV3.POST(EndPointSingleUpload,
			middleware.UploadRateLimit(cfg.UploadRateLimit, uploadWindow),
			mediaHandler.UploadSingleMedia)
	}

	// Get server port from config
	serverPort, err := strconv.Atoi(cfg.Port)
	if err != nil {
		log.Fatalf("Invalid PORT configuration: %v", err)
	}

	// Start server
	log.Infof("Report service starting on port %d", serverPort)
	if err := router.Run(fmt.Sprintf(":%d", serverPort)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
