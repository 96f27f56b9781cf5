package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"report-service/geo"
	"report-service/models"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// MaxPageSize caps limit on listing queries to avoid unbounded scans.
	MaxPageSize = 200

	DefaultListLimit   = 50
	DefaultNearbyLimit = 20
	DefaultRadiusKm    = 10.0
)

const reportColumns = `id, user_id, title, description, category, priority,
	media_urls, audio_url, latitude, longitude, address, department,
	is_resolved, created_at, resolved_at`

// Spherical distance in km between the bound point and a report row.
// Must stay in sync with geo.DistanceKm.
const distanceExpr = `(6371 * ACOS(
	COS(RADIANS(?)) * COS(RADIANS(r.latitude)) *
	COS(RADIANS(r.longitude) - RADIANS(?)) +
	SIN(RADIANS(?)) * SIN(RADIANS(r.latitude))))`

type ReportService struct {
	db *sql.DB
}

func NewReportService(db *sql.DB) *ReportService {
	return &ReportService{db: db}
}

// CreateReport inserts a new report and bumps the owner's total_reports
// counter in the same transaction.
func (s *ReportService) CreateReport(ctx context.Context, req *models.CreateReportRequest) (*models.Report, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		log.Errorf("Error creating transaction: %v", err)
		return nil, err
	}
	defer tx.Rollback()

	exists, err := userExists(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.ErrUserNotFound
	}

	category := req.Category
	if category == "" {
		category = models.DefaultCategory
	}
	priority := req.Priority
	if priority == "" {
		priority = models.DefaultPriority
	}
	department := req.Department
	if department == "" {
		department = models.DefaultDepartment
	}
	mediaURLs := req.MediaURLs
	if mediaURLs == nil {
		mediaURLs = []string{}
	}
	mediaJSON, err := json.Marshal(mediaURLs)
	if err != nil {
		return nil, err
	}

	reportID := uuid.NewString()
	result, err := tx.ExecContext(ctx, `INSERT
		INTO reports (id, user_id, title, description, category, priority,
			media_urls, audio_url, latitude, longitude, address, department)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reportID, req.UserID, req.Title, req.Description, category, priority,
		string(mediaJSON), req.AudioURL, req.Latitude, req.Longitude,
		req.Address, department)
	logResult("insertReport", result, err, true)
	if err != nil {
		return nil, err
	}

	result, err = tx.ExecContext(ctx, `UPDATE users
		SET total_reports = total_reports + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, req.UserID)
	logResult("incrementTotalReports", result, err, true)
	if err != nil {
		return nil, err
	}

	report, err := getReport(ctx, tx, reportID, "")
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Infof("Created report %s for user %s", reportID, req.UserID)
	return report, nil
}

// GetUserReports lists the user's reports, newest first.
func (s *ReportService) GetUserReports(ctx context.Context, userID string, f models.ReportFilters, limit, offset int) ([]models.Report, error) {
	limit, offset = clampPage(limit, offset, DefaultListLimit)

	sqlStr := `SELECT ` + reportColumns + ` FROM reports WHERE user_id = ?`
	params := []any{userID}

	if f.IsResolved != nil {
		sqlStr += ` AND is_resolved = ?`
		params = append(params, *f.IsResolved)
	}
	if f.Category != "" {
		sqlStr += ` AND category = ?`
		params = append(params, f.Category)
	}
	if f.Priority != "" {
		sqlStr += ` AND priority = ?`
		params = append(params, f.Priority)
	}
	sqlStr += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	params = append(params, limit, offset)

	rows, err := s.db.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// GetReportByID fetches one report. A non-empty userID additionally
// filters by ownership; a mismatch is indistinguishable from a missing
// report so that other users' reports are not disclosed.
func (s *ReportService) GetReportByID(ctx context.Context, reportID, userID string) (*models.Report, error) {
	return getReport(ctx, s.db, reportID, userID)
}

// UpdateReport applies the present fields of req to an unresolved
// report. Resolved reports are immutable.
func (s *ReportService) UpdateReport(ctx context.Context, reportID string, req *models.UpdateReportRequest) (*models.Report, error) {
	if !req.HasUpdates() {
		return nil, models.ErrNoFields
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		log.Errorf("Error creating transaction: %v", err)
		return nil, err
	}
	defer tx.Rollback()

	existing, err := getReport(ctx, tx, reportID, req.UserID)
	if err != nil {
		return nil, err
	}
	if existing.IsResolved {
		return nil, models.ErrResolvedImmutable
	}

	fields := []string{}
	params := []any{}
	appendField := func(name string, value any) {
		fields = append(fields, name+" = ?")
		params = append(params, value)
	}
	if req.Title != nil {
		appendField("title", *req.Title)
	}
	if req.Description != nil {
		appendField("description", *req.Description)
	}
	if req.Category != nil {
		appendField("category", *req.Category)
	}
	if req.Priority != nil {
		appendField("priority", *req.Priority)
	}
	if req.MediaURLs != nil {
		mediaJSON, err := json.Marshal(*req.MediaURLs)
		if err != nil {
			return nil, err
		}
		appendField("media_urls", string(mediaJSON))
	}
	if req.AudioURL != nil {
		appendField("audio_url", *req.AudioURL)
	}
	if req.Latitude != nil {
		appendField("latitude", *req.Latitude)
	}
	if req.Longitude != nil {
		appendField("longitude", *req.Longitude)
	}
	if req.Address != nil {
		appendField("address", *req.Address)
	}
	if req.Department != nil {
		appendField("department", *req.Department)
	}
	params = append(params, reportID)

	// The is_resolved guard re-checks under the transaction so a
	// concurrent resolve cannot slip an update into a resolved report.
	result, err := tx.ExecContext(ctx, fmt.Sprintf(
		`UPDATE reports SET %s WHERE id = ? AND is_resolved = FALSE`,
		strings.Join(fields, ", ")), params...)
	logResult("updateReport", result, err, false)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, models.ErrResolvedImmutable
	}

	report, err := getReport(ctx, tx, reportID, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Infof("Updated report %s", reportID)
	return report, nil
}

// ResolveReport marks a report resolved exactly once and bumps the
// owner's resolved_reports counter in the same transaction. Under two
// concurrent calls the is_resolved = FALSE condition lets only one win.
func (s *ReportService) ResolveReport(ctx context.Context, reportID, userID string) (*models.Report, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		log.Errorf("Error creating transaction: %v", err)
		return nil, err
	}
	defer tx.Rollback()

	existing, err := getReport(ctx, tx, reportID, userID)
	if err != nil {
		return nil, err
	}
	if existing.IsResolved {
		return nil, models.ErrAlreadyResolved
	}

	result, err := tx.ExecContext(ctx, `UPDATE reports
		SET is_resolved = TRUE, resolved_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_resolved = FALSE`, reportID)
	logResult("resolveReport", result, err, false)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, models.ErrAlreadyResolved
	}

	result, err = tx.ExecContext(ctx, `UPDATE users
		SET resolved_reports = resolved_reports + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, existing.UserID)
	logResult("incrementResolvedReports", result, err, true)
	if err != nil {
		return nil, err
	}

	report, err := getReport(ctx, tx, reportID, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Infof("Resolved report %s", reportID)
	return report, nil
}

// DeleteReport removes a report and reconciles the owner's counters.
// Unlike reads, an ownership mismatch is disclosed as ErrNotOwner so
// the client can show a meaningful message on its delete button.
func (s *ReportService) DeleteReport(ctx context.Context, reportID, userID string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		log.Errorf("Error creating transaction: %v", err)
		return err
	}
	defer tx.Rollback()

	existing, err := getReport(ctx, tx, reportID, "")
	if err != nil {
		return err
	}
	if userID != "" && existing.UserID != userID {
		return models.ErrNotOwner
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, reportID)
	logResult("deleteReport", result, err, true)
	if err != nil {
		return err
	}

	result, err = tx.ExecContext(ctx, `UPDATE users
		SET total_reports = GREATEST(total_reports - 1, 0),
			resolved_reports = CASE
				WHEN ? THEN GREATEST(resolved_reports - 1, 0)
				ELSE resolved_reports
			END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, existing.IsResolved, existing.UserID)
	logResult("reconcileCounters", result, err, true)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Infof("Deleted report %s", reportID)
	return nil
}

// GetNearbyReports returns located reports within radiusKm of the given
// point, closest first, each carrying the computed distance and the
// reporter's display name. A bounding-rect prefilter keeps the exact
// distance expression off rows that cannot qualify.
func (s *ReportService) GetNearbyReports(ctx context.Context, lat, lon, radiusKm float64, limit, offset int) ([]models.Report, error) {
	limit, offset = clampPage(limit, offset, DefaultNearbyLimit)
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}

	rect := geo.BoundingRect(lat, lon, radiusKm)

	sqlStr := `SELECT r.id, r.user_id, u.full_name, r.title, r.description,
		r.category, r.priority, r.media_urls, r.audio_url, r.latitude,
		r.longitude, r.address, r.department, r.is_resolved, r.created_at,
		r.resolved_at, ` + distanceExpr + ` AS distance
		FROM reports r
		JOIN users u ON r.user_id = u.id
		WHERE r.latitude IS NOT NULL AND r.longitude IS NOT NULL
		AND r.latitude BETWEEN ? AND ?`
	params := []any{lat, lon, lat, rect.LatMin, rect.LatMax}
	if !rect.FullLon {
		sqlStr += ` AND r.longitude BETWEEN ? AND ?`
		params = append(params, rect.LonMin, rect.LonMax)
	}
	sqlStr += ` HAVING distance <= ?
		ORDER BY distance ASC, r.created_at DESC
		LIMIT ? OFFSET ?`
	params = append(params, radiusKm, limit, offset)

	rows, err := s.db.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		var (
			userName sql.NullString
			distance float64
		)
		r, err := scanReportWith(rows, &userName, &distance)
		if err != nil {
			return nil, err
		}
		r.UserName = userName.String
		d, _ := decimal.NewFromFloat(distance).Round(2).Float64()
		r.Distance = &d
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// GetUserStats aggregates the user's report counts and mean resolution
// time. AvgResolutionTimeHours stays nil with no resolved reports.
func (s *ReportService) GetUserStats(ctx context.Context, userID string) (*models.ReportStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(is_resolved), 0),
		COALESCE(SUM(NOT is_resolved), 0),
		COALESCE(SUM(priority = 'critical'), 0),
		COALESCE(SUM(priority = 'high'), 0),
		COALESCE(SUM(created_at >= DATE_SUB(NOW(), INTERVAL 30 DAY)), 0),
		AVG(CASE WHEN is_resolved
			THEN TIMESTAMPDIFF(SECOND, created_at, resolved_at) / 3600.0
		END)
		FROM reports
		WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &models.ReportStats{}
	if !rows.Next() {
		return stats, rows.Err()
	}
	var avg sql.NullFloat64
	if err := rows.Scan(&stats.TotalReports, &stats.ResolvedReports,
		&stats.PendingReports, &stats.CriticalReports,
		&stats.HighPriorityReports, &stats.ReportsLast30Days, &avg); err != nil {
		return nil, err
	}
	if avg.Valid {
		h, _ := decimal.NewFromFloat(avg.Float64).Round(2).Float64()
		stats.AvgResolutionTimeHours = &h
	}
	return stats, nil
}

// GetMapReports returns located reports inside the viewport, for the
// map export.
func (s *ReportService) GetMapReports(ctx context.Context, vp *models.ViewPort) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+reportColumns+`
		FROM reports
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		AND latitude BETWEEN ? AND ?
		AND longitude BETWEEN ? AND ?
		ORDER BY created_at DESC`,
		vp.LatMin, vp.LatMax, vp.LonMin, vp.LonMax)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func userExists(ctx context.Context, q querier, userID string) (bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM users WHERE id = ?`, userID)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

func getReport(ctx context.Context, q querier, reportID, userID string) (*models.Report, error) {
	sqlStr := `SELECT ` + reportColumns + ` FROM reports WHERE id = ?`
	params := []any{reportID}
	if userID != "" {
		sqlStr += ` AND user_id = ?`
		params = append(params, userID)
	}

	rows, err := q.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, models.ErrReportNotFound
	}
	return scanReport(rows)
}

func scanReport(rows *sql.Rows) (*models.Report, error) {
	return scanReportWith(rows)
}

// scanReportWith scans one report row; extras are appended scan targets
// for queries that select additional columns after resolved_at.
func scanReportWith(rows *sql.Rows, extras ...any) (*models.Report, error) {
	var (
		r           models.Report
		description sql.NullString
		mediaJSON   sql.NullString
		audioURL    sql.NullString
		latitude    sql.NullFloat64
		longitude   sql.NullFloat64
		createdAt   string
		resolvedAt  sql.NullString
	)

	// Column order matches reportColumns; nearby inserts user_name after
	// user_id and appends distance, handled via the extras targets.
	dest := []any{&r.ID, &r.UserID}
	if len(extras) > 0 {
		dest = append(dest, extras[0])
	}
	dest = append(dest, &r.Title, &description, &r.Category, &r.Priority,
		&mediaJSON, &audioURL, &latitude, &longitude, &r.Address,
		&r.Department, &r.IsResolved, &createdAt, &resolvedAt)
	if len(extras) > 1 {
		dest = append(dest, extras[1:]...)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	r.Description = description.String
	r.MediaURLs = []string{}
	if mediaJSON.Valid && mediaJSON.String != "" {
		if err := json.Unmarshal([]byte(mediaJSON.String), &r.MediaURLs); err != nil {
			return nil, fmt.Errorf("bad media_urls for report %s: %w", r.ID, err)
		}
	}
	if audioURL.Valid {
		r.AudioURL = &audioURL.String
	}
	if latitude.Valid {
		r.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		r.Longitude = &longitude.Float64
	}

	created, err := time.Parse(time.DateTime, createdAt)
	if err != nil {
		return nil, fmt.Errorf("bad created_at for report %s: %w", r.ID, err)
	}
	r.CreatedAt = created
	if resolvedAt.Valid {
		resolved, err := time.Parse(time.DateTime, resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("bad resolved_at for report %s: %w", r.ID, err)
		}
		r.ResolvedAt = &resolved
		taken := resolved.Sub(created).String()
		r.TimeTakenToResolve = &taken
	}
	return &r, nil
}

func clampPage(limit, offset, defaultLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func logResult(operation string, result sql.Result, err error, expectOne bool) {
	if err != nil {
		log.Errorf("Error in %s: %v", operation, err)
		return
	}
	rowsAffected, _ := result.RowsAffected()
	if expectOne && rowsAffected != 1 {
		log.Warnf("%s: expected to affect 1 row, affected %d", operation, rowsAffected)
		return
	}
	log.Infof("%s: %d rows affected", operation, rowsAffected)
}
