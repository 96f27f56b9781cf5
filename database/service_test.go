package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"report-service/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
	svc  *ReportService
)

func setUp() {
	db, mock, _ = sqlmock.New()
	svc = NewReportService(db)
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

const allColumns = "id, user_id, title, description, category, priority, media_urls, audio_url, latitude, longitude, address, department, is_resolved, created_at, resolved_at"

func reportRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "title", "description", "category", "priority",
		"media_urls", "audio_url", "latitude", "longitude", "address",
		"department", "is_resolved", "created_at", "resolved_at",
	})
}

func pendingRow(id, userID, title string) *sqlmock.Rows {
	return reportRows().AddRow(id, userID, title, "", "other", "medium",
		"[]", nil, nil, nil, "", "General", false, "2026-08-01 10:00:00", nil)
}

func resolvedRow(id, userID, title string) *sqlmock.Rows {
	return reportRows().AddRow(id, userID, title, "", "other", "medium",
		"[]", nil, nil, nil, "", "General", true, "2026-08-01 10:00:00", "2026-08-02 12:30:00")
}

func TestCreateReport(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM users WHERE id = \\?").
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
		mock.ExpectExec("INSERT\\s+INTO reports").
			WithArgs(sqlmock.AnyArg(), "u1", "Pothole", "", "other", "medium",
				"[]", nil, nil, nil, "", "General").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE users\\s+SET total_reports = total_reports \\+ 1").
			WithArgs("u1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT " + allColumns + " FROM reports WHERE id = \\?").
			WillReturnRows(pendingRow("r1", "u1", "Pothole"))
		mock.ExpectCommit()

		report, err := svc.CreateReport(context.Background(), &models.CreateReportRequest{
			UserID: "u1",
			Title:  "Pothole",
		})
		if err != nil {
			t.Fatalf("CreateReport: unexpected error: %v", err)
		}
		if report.Category != "other" || report.Priority != "medium" || report.Department != "General" {
			t.Errorf("CreateReport: defaults not applied: %+v", report)
		}
		if report.IsResolved {
			t.Errorf("CreateReport: new report must not be resolved")
		}
		if len(report.MediaURLs) != 0 {
			t.Errorf("CreateReport: expected empty mediaUrls, got %v", report.MediaURLs)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestCreateReportUserMissing(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM users WHERE id = \\?").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, err := svc.CreateReport(context.Background(), &models.CreateReportRequest{
			UserID: "ghost",
			Title:  "Pothole",
		})
		if !errors.Is(err, models.ErrUserNotFound) {
			t.Errorf("CreateReport: expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestResolveReport(t *testing.T) {
	testCases := []struct {
		name string

		existing     *sqlmock.Rows
		casExpected  bool
		casAffected  int64
		expectedErr  error
		counterBumps bool
	}{
		{
			name:         "Resolves a pending report",
			existing:     pendingRow("r1", "u1", "Pothole"),
			casExpected:  true,
			casAffected:  1,
			counterBumps: true,
		},
		{
			name:        "Already resolved",
			existing:    resolvedRow("r1", "u1", "Pothole"),
			expectedErr: models.ErrAlreadyResolved,
		},
		{
			name:        "Lost the race to a concurrent resolve",
			existing:    pendingRow("r1", "u1", "Pothole"),
			casExpected: true,
			casAffected: 0,
			expectedErr: models.ErrAlreadyResolved,
		},
	}

	for _, testCase := range testCases {
		setUp()
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT " + allColumns + " FROM reports WHERE id = \\?").
			WithArgs("r1").
			WillReturnRows(testCase.existing)
		if testCase.casExpected {
			mock.ExpectExec("UPDATE reports\\s+SET is_resolved = TRUE, resolved_at = CURRENT_TIMESTAMP\\s+WHERE id = \\? AND is_resolved = FALSE").
				WithArgs("r1").
				WillReturnResult(sqlmock.NewResult(0, testCase.casAffected))
		}
		if testCase.counterBumps {
			mock.ExpectExec("UPDATE users\\s+SET resolved_reports = resolved_reports \\+ 1").
				WithArgs("u1").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery("SELECT " + allColumns + " FROM reports WHERE id = \\?").
				WithArgs("r1").
				WillReturnRows(resolvedRow("r1", "u1", "Pothole"))
			mock.ExpectCommit()
		} else {
			mock.ExpectRollback()
		}

		report, err := svc.ResolveReport(context.Background(), "r1", "")
		if !errors.Is(err, testCase.expectedErr) {
			t.Errorf("%s: expected error %v, got %v", testCase.name, testCase.expectedErr, err)
		}
		if testCase.expectedErr == nil {
			if !report.IsResolved || report.ResolvedAt == nil || report.TimeTakenToResolve == nil {
				t.Errorf("%s: resolved report not fully populated: %+v", testCase.name, report)
			}
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("%s: unmet expectations: %v", testCase.name, err)
		}
		tearDown()
	}
}

func TestUpdateReport(t *testing.T) {
	it(func() {
		newTitle := "Broken streetlight"

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT " + allColumns + " FROM reports WHERE id = \\?").
			WithArgs("r1").
			WillReturnRows(pendingRow("r1", "u1", "Pothole"))
		mock.ExpectExec("UPDATE reports SET title = \\? WHERE id = \\? AND is_resolved = FALSE").
			WithArgs(newTitle, "r1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT " + allColumns + " FROM reports WHERE id = \\?").
			WithArgs("r1").
			WillReturnRows(pendingRow("r1", "u1", newTitle))
		mock.ExpectCommit()

		report, err := svc.UpdateReport(context.Background(), "r1", &models.UpdateReportRequest{
			Title: &newTitle,
		})
		if err != nil {
			t.Fatalf("UpdateReport: unexpected error: %v", err)
		}
		if report.Title != newTitle {
			t.Errorf("UpdateReport: title not updated, got %q", report.Title)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestUpdateReportResolvedConflict(t *testing.T) {
	it(func() {
		newTitle := "nope"

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT " + allColumns + " FROM reports WHERE id = \\?").
			WithArgs("r1").
			WillReturnRows(resolvedRow("r1", "u1", "Pothole"))
		mock.ExpectRollback()

		_, err := svc.UpdateReport(context.Background(), "r1", &models.UpdateReportRequest{
			Title: &newTitle,
		})
		if !errors.Is(err, models.ErrResolvedImmutable) {
			t.Errorf("UpdateReport: expected ErrResolvedImmutable, got %v", err)
		}
	})
}

func TestUpdateReportNoFields(t *testing.T) {
	it(func() {
		_, err := svc.UpdateReport(context.Background(), "r1", &models.UpdateReportRequest{})
		if !errors.Is(err, models.ErrNoFields) {
			t.Errorf("UpdateReport: expected ErrNoFields, got %v", err)
		}
	})
}

func TestDeleteReport(t *testing.T) {
	testCases := []struct {
		name        string
		userID      string
		existing    *sqlmock.Rows
		wasResolved bool
		deleted     bool
		expectedErr error
	}{
		{
			name:     "Owner deletes a pending report",
			userID:   "u1",
			existing: pendingRow("r1", "u1", "Pothole"),
			deleted:  true,
		},
		{
			name:        "Owner deletes a resolved report",
			userID:      "u1",
			existing:    resolvedRow("r1", "u1", "Pothole"),
			wasResolved: true,
			deleted:     true,
		},
		{
			name:        "Foreign user is rejected",
			userID:      "u2",
			existing:    pendingRow("r1", "u1", "Pothole"),
			expectedErr: models.ErrNotOwner,
		},
		{
			name:        "Missing report",
			userID:      "u1",
			existing:    reportRows(),
			expectedErr: models.ErrReportNotFound,
		},
	}

	for _, testCase := range testCases {
		setUp()
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT " + allColumns + " FROM reports WHERE id = \\?").
			WithArgs("r1").
			WillReturnRows(testCase.existing)
		if testCase.deleted {
			mock.ExpectExec("DELETE FROM reports WHERE id = \\?").
				WithArgs("r1").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec("UPDATE users\\s+SET total_reports = GREATEST\\(total_reports - 1, 0\\)").
				WithArgs(testCase.wasResolved, "u1").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()
		} else {
			mock.ExpectRollback()
		}

		err := svc.DeleteReport(context.Background(), "r1", testCase.userID)
		if !errors.Is(err, testCase.expectedErr) {
			t.Errorf("%s: expected error %v, got %v", testCase.name, testCase.expectedErr, err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("%s: unmet expectations: %v", testCase.name, err)
		}
		tearDown()
	}
}

func TestGetUserReportsFilters(t *testing.T) {
	it(func() {
		resolved := true
		mock.ExpectQuery("SELECT "+allColumns+" FROM reports WHERE user_id = \\? AND is_resolved = \\? AND category = \\? ORDER BY created_at DESC LIMIT \\? OFFSET \\?").
			WithArgs("u1", true, "roads", 50, 0).
			WillReturnRows(resolvedRow("r1", "u1", "Pothole"))

		reports, err := svc.GetUserReports(context.Background(), "u1",
			models.ReportFilters{IsResolved: &resolved, Category: "roads"}, 0, 0)
		if err != nil {
			t.Fatalf("GetUserReports: unexpected error: %v", err)
		}
		if len(reports) != 1 {
			t.Errorf("GetUserReports: expected 1 report, got %d", len(reports))
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestGetUserReportsClampsLimit(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT "+allColumns+" FROM reports WHERE user_id = \\? ORDER BY created_at DESC LIMIT \\? OFFSET \\?").
			WithArgs("u1", MaxPageSize, 0).
			WillReturnRows(reportRows())

		if _, err := svc.GetUserReports(context.Background(), "u1",
			models.ReportFilters{}, 100000, -5); err != nil {
			t.Fatalf("GetUserReports: unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestGetUserStats(t *testing.T) {
	testCases := []struct {
		name     string
		avg      any
		expected *float64
	}{
		{
			name:     "No resolved reports leaves the average nil",
			avg:      nil,
			expected: nil,
		},
		{
			name:     "Average rounded to two decimals",
			avg:      26.50166,
			expected: floatPtr(26.5),
		},
	}

	for _, testCase := range testCases {
		setUp()
		mock.ExpectQuery("SELECT\\s+COUNT\\(\\*\\),").
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{
				"total", "resolved", "pending", "critical", "high", "recent", "avg",
			}).AddRow(3, 1, 2, 1, 0, 3, testCase.avg))

		stats, err := svc.GetUserStats(context.Background(), "u1")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", testCase.name, err)
		}
		if stats.PendingReports != stats.TotalReports-stats.ResolvedReports {
			t.Errorf("%s: pending must equal total minus resolved: %+v", testCase.name, stats)
		}
		if (stats.AvgResolutionTimeHours == nil) != (testCase.expected == nil) {
			t.Errorf("%s: avg presence mismatch: %v", testCase.name, stats.AvgResolutionTimeHours)
		} else if testCase.expected != nil && *stats.AvgResolutionTimeHours != *testCase.expected {
			t.Errorf("%s: expected avg %v, got %v", testCase.name, *testCase.expected, *stats.AvgResolutionTimeHours)
		}
		tearDown()
	}
}

func TestGetNearbyReports(t *testing.T) {
	it(func() {
		rows := sqlmock.NewRows([]string{
			"id", "user_id", "full_name", "title", "description", "category",
			"priority", "media_urls", "audio_url", "latitude", "longitude",
			"address", "department", "is_resolved", "created_at", "resolved_at",
			"distance",
		}).AddRow("r1", "u1", "Asha", "Pothole", "", "other", "medium", "[]",
			nil, 12.97, 77.59, "", "General", false, "2026-08-01 10:00:00", nil, 3.004567)

		mock.ExpectQuery("6371 \\* ACOS").
			WillReturnRows(rows)

		reports, err := svc.GetNearbyReports(context.Background(), 12.97, 77.59, 5, 20, 0)
		if err != nil {
			t.Fatalf("GetNearbyReports: unexpected error: %v", err)
		}
		if len(reports) != 1 {
			t.Fatalf("GetNearbyReports: expected 1 report, got %d", len(reports))
		}
		if reports[0].UserName != "Asha" {
			t.Errorf("GetNearbyReports: expected reporter name, got %q", reports[0].UserName)
		}
		if reports[0].Distance == nil || *reports[0].Distance != 3.0 {
			t.Errorf("GetNearbyReports: expected distance 3.00, got %v", reports[0].Distance)
		}
	})
}

func floatPtr(f float64) *float64 {
	return &f
}
