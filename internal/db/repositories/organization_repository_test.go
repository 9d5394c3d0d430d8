package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/logfold/logfold/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var orgCols = []string{
	"id", "name", "api_key_hash", "num_logs_sent_in_period", "log_limit_for_period",
	"cycle_starts", "cycle_ends", "log_retention_in_days", "sent_last_usage_email_at",
	"created_at", "updated_at",
}

func sampleOrgRow() *sqlmock.Rows {
	return sqlmock.NewRows(orgCols).
		AddRow("org-1", "acme", "$2a$12$hash", int64(42), int64(1000),
			time.Now().AddDate(0, 0, -10), time.Now().AddDate(0, 0, 20), 30, nil,
			time.Now(), time.Now())
}

func newOrgRepo(t *testing.T) (*OrganizationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewOrganizationRepository(db), mock
}

// ---------------------------------------------------------------------------
// GetByID / GetByName
// ---------------------------------------------------------------------------

func TestGetOrganizationByID_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE id").
		WithArgs("org-1").
		WillReturnRows(sampleOrgRow())

	org, err := repo.GetByID(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org == nil {
		t.Fatal("expected org, got nil")
	}
	if org.NumLogsSentInPeriod != 42 {
		t.Errorf("NumLogsSentInPeriod = %d, want 42", org.NumLogsSentInPeriod)
	}
}

func TestGetOrganizationByID_NotFound(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE id").
		WillReturnRows(sqlmock.NewRows(orgCols))

	org, err := repo.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org != nil {
		t.Error("expected nil, got non-nil")
	}
}

func TestGetOrganizationByName_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE name").
		WithArgs("acme").
		WillReturnRows(sampleOrgRow())

	org, err := repo.GetByName(context.Background(), "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org == nil || org.Name != "acme" {
		t.Fatalf("org = %+v, want acme", org)
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreateOrganization(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("INSERT INTO organizations").
		WithArgs("acme", "", int64(1000), 30).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("org-new", time.Now(), time.Now()))

	org := &models.Organization{Name: "acme", LogLimitForPeriod: 1000, LogRetentionInDays: 30}
	if err := repo.Create(context.Background(), org); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.ID != "org-new" {
		t.Errorf("ID = %s, want org-new", org.ID)
	}
}

// ---------------------------------------------------------------------------
// Cycle accounting
// ---------------------------------------------------------------------------

func TestIncrementLogsSent(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectExec("UPDATE organizations.*num_logs_sent_in_period \\+ 1").
		WithArgs("org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.IncrementLogsSent(context.Background(), "org-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResetCycle_ZeroesCounterAndInstallsWindow(t *testing.T) {
	repo, mock := newOrgRepo(t)
	starts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ends := starts.AddDate(0, 0, 30)
	mock.ExpectExec("UPDATE organizations.*num_logs_sent_in_period = 0").
		WithArgs("org-1", starts, ends).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ResetCycle(context.Background(), "org-1", starts, ends); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
