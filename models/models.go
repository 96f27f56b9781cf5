package models

import (
	"errors"
	"time"
)

// Report priorities accepted at creation and update time.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Defaults applied when a creation request leaves a field empty.
const (
	DefaultCategory   = "other"
	DefaultPriority   = PriorityMedium
	DefaultDepartment = "General"
)

// Sentinel errors returned by the database layer. Handlers translate
// them into HTTP statuses.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrReportNotFound    = errors.New("report not found")
	ErrAlreadyResolved   = errors.New("report is already resolved")
	ErrResolvedImmutable = errors.New("cannot update a resolved report")
	ErrNotOwner          = errors.New("access denied: you can only delete your own reports")
	ErrNoFields          = errors.New("no fields to update")
)

// Report is the external representation of a single civic issue record.
// Field names follow the mobile client's camelCase convention.
type Report struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"userId"`
	UserName           string     `json:"userName,omitempty"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Category           string     `json:"category"`
	Priority           string     `json:"priority"`
	MediaURLs          []string   `json:"mediaUrls"`
	AudioURL           *string    `json:"audioUrl"`
	Latitude           *float64   `json:"latitude"`
	Longitude          *float64   `json:"longitude"`
	Address            string     `json:"address"`
	Department         string     `json:"department"`
	IsResolved         bool       `json:"isResolved"`
	CreatedAt          time.Time  `json:"createdAt"`
	ResolvedAt         *time.Time `json:"resolvedAt"`
	TimeTakenToResolve *string    `json:"timeTakenToResolve"`
	Distance           *float64   `json:"distance,omitempty"`
}

type CreateReportRequest struct {
	UserID      string   `json:"userId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Priority    string   `json:"priority"`
	MediaURLs   []string `json:"mediaUrls"`
	AudioURL    *string  `json:"audioUrl"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Address     string   `json:"address"`
	Department  string   `json:"department"`
}

// UpdateReportRequest carries PATCH semantics: a nil pointer means
// "leave unchanged", a non-nil pointer to a zero value is a real update.
type UpdateReportRequest struct {
	UserID      string    `json:"userId"`
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Priority    *string   `json:"priority"`
	MediaURLs   *[]string `json:"mediaUrls"`
	AudioURL    *string   `json:"audioUrl"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Address     *string   `json:"address"`
	Department  *string   `json:"department"`
}

// HasUpdates reports whether at least one field is present.
func (r *UpdateReportRequest) HasUpdates() bool {
	return r.Title != nil || r.Description != nil || r.Category != nil ||
		r.Priority != nil || r.MediaURLs != nil || r.AudioURL != nil ||
		r.Latitude != nil || r.Longitude != nil || r.Address != nil ||
		r.Department != nil
}

// ReportFilters narrows a per-user listing. All present filters are
// combined with AND.
type ReportFilters struct {
	IsResolved *bool
	Category   string
	Priority   string
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type NearbyPagination struct {
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Radius float64 `json:"radius"`
}

// ReportStats aggregates a user's reporting activity.
// AvgResolutionTimeHours is nil when the user has no resolved reports.
type ReportStats struct {
	TotalReports           int      `json:"totalReports"`
	ResolvedReports        int      `json:"resolvedReports"`
	PendingReports         int      `json:"pendingReports"`
	CriticalReports        int      `json:"criticalReports"`
	HighPriorityReports    int      `json:"highPriorityReports"`
	ReportsLast30Days      int      `json:"reportsLast30Days"`
	AvgResolutionTimeHours *float64 `json:"avgResolutionTimeHours"`
}

// ViewPort is a lat/lon bounding box for the map export.
type ViewPort struct {
	LatMin float64
	LonMin float64
	LatMax float64
	LonMax float64
}

type ReportResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
	Report  *Report `json:"report,omitempty"`
}

type ReportsResponse struct {
	Success    bool       `json:"success"`
	Reports    []Report   `json:"reports"`
	Pagination Pagination `json:"pagination"`
}

type NearbyReportsResponse struct {
	Success    bool             `json:"success"`
	Reports    []Report         `json:"reports"`
	Pagination NearbyPagination `json:"pagination"`
}

type StatsResponse struct {
	Success bool         `json:"success"`
	Stats   *ReportStats `json:"stats"`
}

type DeleteResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	DeletedReportID string `json:"deletedReportId"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// MediaUploadResponse reports the outcome of a bulk upload. Uploads are
// best effort: Uploaded may be smaller than Attempted.
type MediaUploadResponse struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	MediaURLs []string `json:"mediaUrls"`
	AudioURL  *string  `json:"audioUrl"`
	Attempted int      `json:"attempted"`
	Uploaded  int      `json:"uploaded"`
}

type SingleUploadResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	MediaURL string `json:"mediaUrl"`
}
