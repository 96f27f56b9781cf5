package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"report-service/database"
	"report-service/models"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	geojson "github.com/paulmach/go.geojson"
)

type ReportsHandler struct {
	reportService *database.ReportService
}

func NewReportsHandler(reportService *database.ReportService) *ReportsHandler {
	return &ReportsHandler{
		reportService: reportService,
	}
}

// HealthCheck returns a simple health status
func (h *ReportsHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "report-service",
	})
}

func (h *ReportsHandler) CreateReport(c *gin.Context) {
	args := &models.CreateReportRequest{}
	if err := c.ShouldBindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in create report call: %v", err)
		badRequest(c, "Invalid JSON input")
		return
	}
	if args.UserID == "" || args.Title == "" {
		badRequest(c, "User ID and title are required")
		return
	}

	report, err := h.reportService.CreateReport(c.Request.Context(), args)
	if err != nil {
		log.Errorf("Error creating report: %v", err)
		respondError(c, err, "creating report")
		return
	}

	c.JSON(http.StatusCreated, models.ReportResponse{
		Success: true,
		Message: "Report created successfully",
		Report:  report,
	})
}

func (h *ReportsHandler) GetUserReports(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		badRequest(c, "User ID is required")
		return
	}

	filters := models.ReportFilters{
		Category: c.Query("category"),
		Priority: c.Query("priority"),
	}
	if v, ok := c.GetQuery("isResolved"); ok {
		resolved := v == "true"
		filters.IsResolved = &resolved
	}
	limit := intQuery(c, "limit", database.DefaultListLimit)
	offset := intQuery(c, "offset", 0)

	reports, err := h.reportService.GetUserReports(c.Request.Context(), userID, filters, limit, offset)
	if err != nil {
		log.Errorf("Error fetching reports for user %s: %v", userID, err)
		respondError(c, err, "fetching reports")
		return
	}

	c.JSON(http.StatusOK, models.ReportsResponse{
		Success: true,
		Reports: reports,
		Pagination: models.Pagination{
			Limit:  limit,
			Offset: offset,
			Total:  len(reports),
		},
	})
}

func (h *ReportsHandler) GetReportByID(c *gin.Context) {
	reportID := c.Param("reportId")
	if reportID == "" {
		badRequest(c, "Report ID is required")
		return
	}

	report, err := h.reportService.GetReportByID(c.Request.Context(), reportID, c.Query("userId"))
	if err != nil {
		log.Errorf("Error fetching report %s: %v", reportID, err)
		respondError(c, err, "fetching report")
		return
	}

	c.JSON(http.StatusOK, models.ReportResponse{
		Success: true,
		Report:  report,
	})
}

func (h *ReportsHandler) UpdateReport(c *gin.Context) {
	reportID := c.Param("reportId")
	if reportID == "" {
		badRequest(c, "Report ID is required")
		return
	}

	args := &models.UpdateReportRequest{}
	if err := c.ShouldBindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in update report call: %v", err)
		badRequest(c, "Invalid JSON input")
		return
	}

	report, err := h.reportService.UpdateReport(c.Request.Context(), reportID, args)
	if err != nil {
		log.Errorf("Error updating report %s: %v", reportID, err)
		respondError(c, err, "updating report")
		return
	}

	c.JSON(http.StatusOK, models.ReportResponse{
		Success: true,
		Message: "Report updated successfully",
		Report:  report,
	})
}

func (h *ReportsHandler) ResolveReport(c *gin.Context) {
	reportID := c.Param("reportId")
	if reportID == "" {
		badRequest(c, "Report ID is required")
		return
	}

	var args struct {
		UserID string `json:"userId"`
	}
	// The body is optional on resolve.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&args); err != nil {
			log.Errorf("Failed to get the argument in resolve report call: %v", err)
			badRequest(c, "Invalid JSON input")
			return
		}
	}

	report, err := h.reportService.ResolveReport(c.Request.Context(), reportID, args.UserID)
	if err != nil {
		log.Errorf("Error resolving report %s: %v", reportID, err)
		respondError(c, err, "resolving report")
		return
	}

	c.JSON(http.StatusOK, models.ReportResponse{
		Success: true,
		Message: "Report marked as resolved",
		Report:  report,
	})
}

func (h *ReportsHandler) DeleteReport(c *gin.Context) {
	reportID := c.Param("reportId")
	if reportID == "" {
		badRequest(c, "Report ID is required")
		return
	}

	if err := h.reportService.DeleteReport(c.Request.Context(), reportID, c.Query("userId")); err != nil {
		log.Errorf("Error deleting report %s: %v", reportID, err)
		respondError(c, err, "deleting report")
		return
	}

	c.JSON(http.StatusOK, models.DeleteResponse{
		Success:         true,
		Message:         "Report deleted successfully",
		DeletedReportID: reportID,
	})
}

func (h *ReportsHandler) GetNearbyReports(c *gin.Context) {
	latStr, hasLat := c.GetQuery("latitude")
	lonStr, hasLon := c.GetQuery("longitude")
	if !hasLat || !hasLon {
		badRequest(c, "Latitude and longitude are required")
		return
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		badRequest(c, "Invalid latitude")
		return
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		badRequest(c, "Invalid longitude")
		return
	}
	radius := floatQuery(c, "radius", database.DefaultRadiusKm)
	limit := intQuery(c, "limit", database.DefaultNearbyLimit)
	offset := intQuery(c, "offset", 0)

	reports, err := h.reportService.GetNearbyReports(c.Request.Context(), lat, lon, radius, limit, offset)
	if err != nil {
		log.Errorf("Error fetching nearby reports at (%f, %f): %v", lat, lon, err)
		respondError(c, err, "fetching nearby reports")
		return
	}

	c.JSON(http.StatusOK, models.NearbyReportsResponse{
		Success: true,
		Reports: reports,
		Pagination: models.NearbyPagination{
			Limit:  limit,
			Offset: offset,
			Radius: radius,
		},
	})
}

func (h *ReportsHandler) GetUserStats(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		badRequest(c, "User ID is required")
		return
	}

	stats, err := h.reportService.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		log.Errorf("Error fetching report statistics for user %s: %v", userID, err)
		respondError(c, err, "fetching statistics")
		return
	}

	c.JSON(http.StatusOK, models.StatsResponse{
		Success: true,
		Stats:   stats,
	})
}

// GetMapReports renders located reports within a viewport as a GeoJSON
// FeatureCollection for the client map screen.
func (h *ReportsHandler) GetMapReports(c *gin.Context) {
	vp := &models.ViewPort{}
	var err error
	if vp.LatMin, err = strconv.ParseFloat(c.Query("sw_lat"), 64); err != nil {
		badRequest(c, "Invalid or missing sw_lat")
		return
	}
	if vp.LonMin, err = strconv.ParseFloat(c.Query("sw_lon"), 64); err != nil {
		badRequest(c, "Invalid or missing sw_lon")
		return
	}
	if vp.LatMax, err = strconv.ParseFloat(c.Query("ne_lat"), 64); err != nil {
		badRequest(c, "Invalid or missing ne_lat")
		return
	}
	if vp.LonMax, err = strconv.ParseFloat(c.Query("ne_lon"), 64); err != nil {
		badRequest(c, "Invalid or missing ne_lon")
		return
	}

	reports, err := h.reportService.GetMapReports(c.Request.Context(), vp)
	if err != nil {
		log.Errorf("Error fetching map reports for viewport %v: %v", vp, err)
		respondError(c, err, "fetching map reports")
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, r := range reports {
		f := geojson.NewPointFeature([]float64{*r.Longitude, *r.Latitude})
		f.SetProperty("id", r.ID)
		f.SetProperty("title", r.Title)
		f.SetProperty("category", r.Category)
		f.SetProperty("priority", r.Priority)
		f.SetProperty("isResolved", r.IsResolved)
		f.SetProperty("createdAt", r.CreatedAt)
		fc.AddFeature(f)
	}
	c.JSON(http.StatusOK, fc)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Message: message,
	})
}

// respondError maps service errors onto the HTTP surface. Everything
// not in the known taxonomy turns into a 500 with the action message.
func respondError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Success: false, Message: "User not found"})
	case errors.Is(err, models.ErrReportNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Success: false, Message: "Report not found"})
	case errors.Is(err, models.ErrAlreadyResolved):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Success: false, Message: "Report is already resolved"})
	case errors.Is(err, models.ErrResolvedImmutable):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Success: false, Message: "Cannot update a resolved report"})
	case errors.Is(err, models.ErrNotOwner):
		c.JSON(http.StatusForbidden, models.ErrorResponse{Success: false, Message: "Access denied: You can only delete your own reports"})
	case errors.Is(err, models.ErrNoFields):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Success: false, Message: "No fields to update"})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Message: "Server error while " + action,
			Error:   err.Error(),
		})
	}
}

func intQuery(c *gin.Context, key string, defaultValue int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return defaultValue
}

func floatQuery(c *gin.Context, key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(c.Query(key), 64); err == nil {
		return v
	}
	return defaultValue
}
