package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

var userCols = []string{"id", "organization_id", "email", "phone_number", "password_hash", "created_at", "updated_at"}

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

func TestGetOwnerByOrganization(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u-1", "org-1", "owner@example.com", nil, "hash", time.Now(), time.Now()))

	owner, err := repo.GetOwnerByOrganization(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner == nil || owner.Email != "owner@example.com" {
		t.Errorf("owner = %+v, want owner@example.com", owner)
	}
}

func TestGetOwnerByOrganization_NoUsersYieldsNil(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("org-empty").
		WillReturnRows(sqlmock.NewRows(userCols))

	owner, err := repo.GetOwnerByOrganization(context.Background(), "org-empty")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner != nil {
		t.Errorf("owner = %+v, want nil", owner)
	}
}
