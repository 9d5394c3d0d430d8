package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/logfold/logfold/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var logCols = []string{"id", "organization_id", "folder_id", "content", "reference_id", "external_link", "additional_context", "created_at"}

func sampleLogRow() *sqlmock.Rows {
	return sqlmock.NewRows(logCols).
		AddRow("log-1", "org-1", "folder-1", "payment failed", "order-9", nil, []byte(`{"userId":"u-7"}`), time.Now())
}

func newLogRepo(t *testing.T) (*LogRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewLogRepository(db), mock
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreateLog_SerializesContext(t *testing.T) {
	repo, mock := newLogRepo(t)
	mock.ExpectQuery("INSERT INTO logs").
		WithArgs("org-1", "folder-1", "payment failed", nil, nil, []byte(`{"userId":"u-7"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("log-new", time.Now()))

	log := &models.Log{
		OrganizationID:    "org-1",
		FolderID:          "folder-1",
		Content:           "payment failed",
		AdditionalContext: map[string]any{"userId": "u-7"},
	}
	if err := repo.Create(context.Background(), log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.ID != "log-new" {
		t.Errorf("ID = %s, want log-new", log.ID)
	}
}

func TestCreateLog_NilContextStoredAsNull(t *testing.T) {
	repo, mock := newLogRepo(t)
	mock.ExpectQuery("INSERT INTO logs").
		WithArgs("org-1", "folder-1", "msg", nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("log-new", time.Now()))

	log := &models.Log{OrganizationID: "org-1", FolderID: "folder-1", Content: "msg"}
	if err := repo.Create(context.Background(), log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// GetByID
// ---------------------------------------------------------------------------

func TestGetLogByID_Found(t *testing.T) {
	repo, mock := newLogRepo(t)
	mock.ExpectQuery("SELECT.*FROM logs.*WHERE id").
		WithArgs("log-1").
		WillReturnRows(sampleLogRow())

	log, err := repo.GetByID(context.Background(), "log-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log == nil {
		t.Fatal("expected log, got nil")
	}
	if log.AdditionalContext["userId"] != "u-7" {
		t.Errorf("context = %v, want parsed userId", log.AdditionalContext)
	}
}

func TestGetLogByID_NotFound(t *testing.T) {
	repo, mock := newLogRepo(t)
	mock.ExpectQuery("SELECT.*FROM logs.*WHERE id").
		WillReturnRows(sqlmock.NewRows(logCols))

	log, err := repo.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log != nil {
		t.Error("expected nil, got non-nil")
	}
}

// ---------------------------------------------------------------------------
// Window queries
// ---------------------------------------------------------------------------

func TestCountInWindow(t *testing.T) {
	repo, mock := newLogRepo(t)
	floor := time.Now().Add(-time.Hour)
	ceiling := time.Now()
	mock.ExpectQuery("SELECT COUNT.*FROM logs").
		WithArgs("folder-1", floor, ceiling).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountInWindow(context.Background(), "folder-1", floor, ceiling)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
}

func TestOldestCreatedAt_EmptyFolderYieldsNil(t *testing.T) {
	repo, mock := newLogRepo(t)
	// MIN over zero rows comes back as a NULL value in a single row.
	mock.ExpectQuery("SELECT MIN").
		WillReturnRows(sqlmock.NewRows([]string{"min"}).AddRow(nil))

	oldest, err := repo.OldestCreatedAt(context.Background(), "folder-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if oldest != nil {
		t.Errorf("oldest = %v, want nil", oldest)
	}
}

func TestOldestCreatedAt_QueryFailureSurfaces(t *testing.T) {
	repo, mock := newLogRepo(t)
	// A real database failure must not be mistaken for an empty folder.
	mock.ExpectQuery("SELECT MIN").
		WillReturnError(errors.New("connection reset"))

	oldest, err := repo.OldestCreatedAt(context.Background(), "folder-1")
	if err == nil {
		t.Fatal("query failure reported as success")
	}
	if oldest != nil {
		t.Errorf("oldest = %v on error, want nil", oldest)
	}
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

func TestSearchByContent_EscapesLikeMetacharacters(t *testing.T) {
	repo, mock := newLogRepo(t)
	mock.ExpectQuery("SELECT.*FROM logs.*content ILIKE").
		WithArgs("org-1", `%100\% done\_now%`, nil, 300).
		WillReturnRows(sampleLogRow())

	logs, err := repo.SearchByContent(context.Background(), "org-1", "100% done_now", nil, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("got %d logs, want 1", len(logs))
	}
}

func TestSearchByContextValue_BuildsContainmentProbe(t *testing.T) {
	repo, mock := newLogRepo(t)
	mock.ExpectQuery("SELECT.*FROM logs.*additional_context @>").
		WithArgs("org-1", []byte(`{"retries":3}`), nil, 300).
		WillReturnRows(sampleLogRow())

	logs, err := repo.SearchByContextValue(context.Background(), "org-1", "retries", float64(3), nil, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("got %d logs, want 1", len(logs))
	}
}

// ---------------------------------------------------------------------------
// DeleteOlderThan
// ---------------------------------------------------------------------------

func TestDeleteOlderThan(t *testing.T) {
	repo, mock := newLogRepo(t)
	cutoff := time.Now().AddDate(0, 0, -30)
	mock.ExpectExec("DELETE FROM logs").
		WithArgs("org-1", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	deleted, err := repo.DeleteOlderThan(context.Background(), "org-1", cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 42 {
		t.Errorf("deleted = %d, want 42", deleted)
	}
}
