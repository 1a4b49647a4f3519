package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"loginus/internal/errs"
	"loginus/internal/role/domain"
)

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreateMapsUniqueViolationToConflict(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO roles")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	role := &domain.Role{
		ID:        "11111111-1111-1111-1111-111111111111",
		Name:      "editor",
		Scope:     domain.GlobalScope(),
		Level:     40,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	err := repo.Create(context.Background(), role)
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetByIDMissingReturnsNilNil(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	role, err := repo.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if role != nil {
		t.Fatalf("want nil role, got %+v", role)
	}
}

func TestGetByIDScansScope(t *testing.T) {
	repo, mock := newMock(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "name", "description", "scope_type", "organization_id", "team_id",
		"level", "is_system", "created_at", "updated_at",
	}).AddRow("r1", "editor", "can edit", "organization", "org-1", nil, 40, false, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name")).WithArgs("r1").WillReturnRows(rows)

	role, err := repo.GetByID(context.Background(), "r1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	want := domain.OrganizationScope("org-1")
	if !role.Scope.Equal(want) {
		t.Fatalf("scope = %s, want %s", role.Scope, want)
	}
}

func TestReplacePermissionsDiffsInsteadOfRewriting(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT permission_id FROM role_permissions")).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"permission_id"}).AddRow("keep").AddRow("drop"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO role_permissions")).
		WithArgs("r1", "add", "admin-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM role_permissions")).
		WithArgs("r1", "drop").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE roles SET updated_at")).
		WithArgs("r1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplacePermissions(context.Background(), "r1", []string{"keep", "add"}, "admin-1")
	if err != nil {
		t.Fatalf("ReplacePermissions: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestReplacePermissionsUnchangedSetWritesNothing(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT permission_id FROM role_permissions")).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"permission_id"}).AddRow("a").AddRow("b"))
	// No insert, no delete, and no updated_at bump.
	mock.ExpectCommit()

	err := repo.ReplacePermissions(context.Background(), "r1", []string{"b", "a"}, "admin-1")
	if err != nil {
		t.Fatalf("ReplacePermissions: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM roles")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "gone"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
